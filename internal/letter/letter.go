package letter

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	letterDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/letter"
	workflowDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/workflow"
	"github.com/frahmantamala/docflow/internal/permission"
	"github.com/frahmantamala/docflow/internal/workflow"
)

type Letter struct {
	ID                   int64                `json:"id"`
	OrganizationID       int64                `json:"organization_id"`
	SpaceID              int64                `json:"space_id"`
	Subject              string               `json:"subject"`
	Body                 string               `json:"body,omitempty"`
	FileURL              string               `json:"file_url,omitempty"`
	FileName             string               `json:"file_name,omitempty"`
	Placements           []workflow.Placement `json:"placements,omitempty"`
	FinalPlacements      []workflow.Placement `json:"final_placements,omitempty"`
	Approvers            []workflow.Approver  `json:"approvers"`
	CurrentApproverIndex int                  `json:"current_approver_index"`
	FinalApproverID      int64                `json:"final_approver_id"`
	Status               workflow.Status      `json:"status"`
	CreatorID            int64                `json:"creator_id"`
	RejectionReason      *string              `json:"rejection_reason,omitempty"`
	Version              int64                `json:"version"`
	SubmittedAt          *time.Time           `json:"submitted_at,omitempty"`
	DecidedAt            *time.Time           `json:"decided_at,omitempty"`
	DeletedAt            *time.Time           `json:"deleted_at,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

// Published reports whether the letter has an anonymous read view.
func (l *Letter) Published() bool {
	return l.Status == workflow.StatusApproved && l.DeletedAt == nil
}

// Target is the members-only view of the letter.
func (l *Letter) Target() permission.Target {
	return permission.Target{
		Kind:           permission.KindLetter,
		ID:             l.ID,
		OrganizationID: l.OrganizationID,
		OwnerID:        l.CreatorID,
		CreatorID:      l.CreatorID,
	}
}

// PublicTarget is Target opened to non-members once the letter is published.
// Only the public view may authorize against it.
func (l *Letter) PublicTarget() permission.Target {
	t := l.Target()
	t.Public = l.Published()
	return t
}

// PublicView is what anyone holding the link to an approved letter sees.
type PublicView struct {
	ID              int64                `json:"id"`
	Subject         string               `json:"subject"`
	Body            string               `json:"body,omitempty"`
	FileName        string               `json:"file_name,omitempty"`
	HasFile         bool                 `json:"has_file"`
	FinalPlacements []workflow.Placement `json:"final_placements,omitempty"`
	ApprovedAt      *time.Time           `json:"approved_at,omitempty"`
}

func NewPublicView(l *Letter) PublicView {
	return PublicView{
		ID:              l.ID,
		Subject:         l.Subject,
		Body:            l.Body,
		FileName:        l.FileName,
		HasFile:         l.FileURL != "",
		FinalPlacements: l.FinalPlacements,
		ApprovedAt:      l.DecidedAt,
	}
}

type Upload struct {
	Name        string
	ContentType string
	Body        io.Reader
}

func ToDataModel(l *Letter) (*letterDatamodel.Letter, error) {
	placements, err := encode(l.Placements)
	if err != nil {
		return nil, err
	}
	final, err := encode(l.FinalPlacements)
	if err != nil {
		return nil, err
	}
	row := &letterDatamodel.Letter{
		ID:                   l.ID,
		OrganizationID:       l.OrganizationID,
		SpaceID:              l.SpaceID,
		Subject:              l.Subject,
		Body:                 l.Body,
		FileURL:              l.FileURL,
		FileName:             l.FileName,
		Placements:           placements,
		FinalPlacements:      final,
		CurrentApproverIndex: l.CurrentApproverIndex,
		FinalApproverID:      l.FinalApproverID,
		ApprovalState: workflowDatamodel.ApprovalState{
			Status:          string(l.Status),
			CreatorID:       l.CreatorID,
			RejectionReason: l.RejectionReason,
			SubmittedAt:     l.SubmittedAt,
			DecidedAt:       l.DecidedAt,
			Version:         l.Version,
		},
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
	for _, a := range l.Approvers {
		row.Approvers = append(row.Approvers, letterDatamodel.Approver{LetterID: l.ID, UserID: a.UserID, Order: a.Order})
	}
	if l.DeletedAt != nil {
		row.DeletedAt = gorm.DeletedAt{Time: *l.DeletedAt, Valid: true}
	}
	return row, nil
}

func FromDataModel(row *letterDatamodel.Letter) (*Letter, error) {
	l := &Letter{
		ID:                   row.ID,
		OrganizationID:       row.OrganizationID,
		SpaceID:              row.SpaceID,
		Subject:              row.Subject,
		Body:                 row.Body,
		FileURL:              row.FileURL,
		FileName:             row.FileName,
		CurrentApproverIndex: row.CurrentApproverIndex,
		FinalApproverID:      row.FinalApproverID,
		Status:               workflow.Status(row.Status),
		CreatorID:            row.CreatorID,
		RejectionReason:      row.RejectionReason,
		Version:              row.Version,
		SubmittedAt:          row.SubmittedAt,
		DecidedAt:            row.DecidedAt,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
		Approvers:            []workflow.Approver{},
	}
	if err := decode(row.Placements, &l.Placements); err != nil {
		return nil, err
	}
	if err := decode(row.FinalPlacements, &l.FinalPlacements); err != nil {
		return nil, err
	}
	for _, a := range row.Approvers {
		l.Approvers = append(l.Approvers, workflow.Approver{UserID: a.UserID, Order: a.Order})
	}
	if row.DeletedAt.Valid {
		t := row.DeletedAt.Time
		l.DeletedAt = &t
	}
	return l, nil
}

func encode(p []workflow.Placement) (datatypes.JSON, error) {
	if len(p) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode placements: %w", err)
	}
	return datatypes.JSON(b), nil
}

func decode(b datatypes.JSON, dst *[]workflow.Placement) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode placements: %w", err)
	}
	return nil
}
