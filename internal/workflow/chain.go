package workflow

import (
	"fmt"
	"sort"

	"github.com/frahmantamala/docflow/internal"
)

type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
)

// Chain coordinates the ordered reviewers of a letter followed by its final approver.
type Chain struct {
	approvers       []Approver
	index           int
	finalApproverID int64
}

// ChainState is where a chain stands after Advance.
type ChainState struct {
	Index     int
	Exhausted bool
	Rejected  bool
	// Next is the user who must act next. Zero once the chain is rejected.
	Next int64
}

// ValidateApprovers checks a chain definition at creation time.
func ValidateApprovers(approvers []Approver, finalApproverID int64) error {
	if len(approvers) == 0 {
		return internal.NewValidationFieldError("approvers", "at least one reviewer is required", internal.ErrCodeValidationFailed)
	}
	if finalApproverID == 0 {
		return internal.NewValidationFieldError("final_approver_id", "final approver is required", internal.ErrCodeValidationFailed)
	}
	orders := make(map[int]bool, len(approvers))
	users := make(map[int64]bool, len(approvers))
	for _, a := range approvers {
		if a.UserID == 0 {
			return internal.NewValidationFieldError("approvers", "reviewer user id is required", internal.ErrCodeValidationFailed)
		}
		if orders[a.Order] {
			return internal.NewValidationFieldError("approvers", fmt.Sprintf("duplicate reviewer order %d", a.Order), internal.ErrCodeValidationFailed)
		}
		if users[a.UserID] {
			return internal.NewValidationFieldError("approvers", fmt.Sprintf("user %d appears twice in the chain", a.UserID), internal.ErrCodeValidationFailed)
		}
		orders[a.Order] = true
		users[a.UserID] = true
	}
	return nil
}

func NewChain(approvers []Approver, index int, finalApproverID int64) (*Chain, error) {
	sorted := append([]Approver(nil), approvers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	if index < 0 || index > len(sorted) {
		return nil, fmt.Errorf("chain index %d out of range [0,%d]", index, len(sorted))
	}
	return &Chain{approvers: sorted, index: index, finalApproverID: finalApproverID}, nil
}

func (c *Chain) Index() int { return c.index }

func (c *Chain) Approvers() []Approver {
	return append([]Approver(nil), c.approvers...)
}

func (c *Chain) FinalApproverID() int64 { return c.finalApproverID }

func (c *Chain) Exhausted() bool {
	return c.index >= len(c.approvers)
}

// Current returns the reviewer at the current index.
func (c *Chain) Current() (int64, bool) {
	if c.Exhausted() {
		return 0, false
	}
	return c.approvers[c.index].UserID, true
}

// Active is the current reviewer, or the final approver once reviewers are done.
func (c *Chain) Active() int64 {
	if id, ok := c.Current(); ok {
		return id
	}
	return c.finalApproverID
}

// Advance records a reviewer verdict. Only the reviewer at the current index
// may act; the final approver acts through the state machine directly.
func (c *Chain) Advance(reviewerID int64, verdict Verdict) (ChainState, error) {
	current, ok := c.Current()
	if !ok {
		return ChainState{}, internal.ErrInvalidTransition
	}
	if reviewerID != current {
		return ChainState{}, internal.ErrNotAuthorized.WithMessage("reviewer is not next in the chain")
	}

	switch verdict {
	case VerdictApprove:
		c.index++
		return ChainState{Index: c.index, Exhausted: c.Exhausted(), Next: c.Active()}, nil
	case VerdictReject:
		return ChainState{Index: c.index, Rejected: true}, nil
	default:
		return ChainState{}, fmt.Errorf("unknown verdict %q", verdict)
	}
}

// Swap replaces whoever holds the active slot. The index does not move.
// It returns the chain position that changed, -1 for the final approver.
func (c *Chain) Swap(from, to int64) (int, error) {
	if to == 0 || to == from {
		return 0, internal.NewValidationFieldError("new_approver_id", "new approver must differ from the current one", internal.ErrCodeValidationFailed)
	}
	if c.Exhausted() {
		if c.finalApproverID != from {
			return 0, internal.ErrConflict
		}
		for _, a := range c.approvers {
			if a.UserID == to {
				return 0, internal.NewValidationFieldError("new_approver_id", "a reviewer cannot also give final approval", internal.ErrCodeValidationFailed)
			}
		}
		c.finalApproverID = to
		return -1, nil
	}
	if c.approvers[c.index].UserID != from {
		return 0, internal.ErrConflict
	}
	if to == c.finalApproverID {
		return 0, internal.NewValidationFieldError("new_approver_id", "the final approver cannot also review", internal.ErrCodeValidationFailed)
	}
	for i, a := range c.approvers {
		if i != c.index && a.UserID == to {
			return 0, internal.NewValidationFieldError("new_approver_id", "user already reviews this letter", internal.ErrCodeValidationFailed)
		}
	}
	c.approvers[c.index].UserID = to
	return c.index, nil
}

// Reset moves the chain back to the first reviewer.
func (c *Chain) Reset() {
	c.index = 0
}
