package workflow

import (
	"fmt"

	"github.com/frahmantamala/docflow/internal"
)

type PlacementType string

const (
	PlacementSignature PlacementType = "signature"
	PlacementStamp     PlacementType = "stamp"
	PlacementText      PlacementType = "text"
	PlacementQRCode    PlacementType = "qr_code"
	PlacementBarcode   PlacementType = "barcode"
)

func (t PlacementType) Valid() bool {
	switch t {
	case PlacementSignature, PlacementStamp, PlacementText, PlacementQRCode, PlacementBarcode:
		return true
	}
	return false
}

// MachineVerifiable types are scanned by third parties, so they must be vetted by reviewers.
func (t PlacementType) MachineVerifiable() bool {
	return t == PlacementQRCode || t == PlacementBarcode
}

// Placement positions a visual element on a page of the letter.
type Placement struct {
	Type   PlacementType `json:"type"`
	Page   int           `json:"page"`
	X      float64       `json:"x"`
	Y      float64       `json:"y"`
	Width  float64       `json:"width,omitempty"`
	Height float64       `json:"height,omitempty"`
	Value  string        `json:"value,omitempty"`
}

func (p Placement) Validate() error {
	if !p.Type.Valid() {
		return fmt.Errorf("unknown placement type %q", p.Type)
	}
	if p.Page < 1 {
		return fmt.Errorf("placement page must be >= 1")
	}
	if p.X < 0 || p.Y < 0 || p.Width < 0 || p.Height < 0 {
		return fmt.Errorf("placement coordinates must not be negative")
	}
	return nil
}

func (p Placement) sameSlot(o Placement) bool {
	return p.Type == o.Type && p.Page == o.Page && p.X == o.X && p.Y == o.Y
}

// ValidateFinalPlacements applies the final-approval payload policy: every
// placement must be well formed, and machine-verifiable placements must match
// one the reviewers already saw.
func ValidateFinalPlacements(reviewed, final []Placement) error {
	for i, p := range final {
		if err := p.Validate(); err != nil {
			return internal.NewValidationFieldError(fmt.Sprintf("placements[%d]", i), err.Error(), internal.ErrCodeInvalidPlacement)
		}
		if !p.Type.MachineVerifiable() {
			continue
		}
		vetted := false
		for _, r := range reviewed {
			if p.sameSlot(r) && p.Value == r.Value {
				vetted = true
				break
			}
		}
		if !vetted {
			return internal.NewValidationFieldError(fmt.Sprintf("placements[%d]", i),
				fmt.Sprintf("%s placement was not part of the reviewed letter", p.Type), internal.ErrCodeInvalidPlacement)
		}
	}
	return nil
}
