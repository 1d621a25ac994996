package workflow

import (
	"sort"
	"time"

	"github.com/frahmantamala/docflow/internal/permission"
)

// Approver is one reviewer slot in a letter's chain.
type Approver struct {
	UserID int64 `json:"user_id"`
	Order  int   `json:"order"`
}

// Content is the replaceable part of a resource. Empty fields mean "keep".
type Content struct {
	Title      string      `json:"title,omitempty"`
	Body       string      `json:"body,omitempty"`
	FileURL    string      `json:"file_url,omitempty"`
	FileName   string      `json:"file_name,omitempty"`
	Placements []Placement `json:"placements,omitempty"`
}

func (c Content) IsZero() bool {
	return c.Title == "" && c.Body == "" && c.FileURL == "" && c.FileName == "" && c.Placements == nil
}

// merge returns base with every non-empty field of c swapped in.
func (c Content) merge(base Content) Content {
	out := base
	if c.Title != "" {
		out.Title = c.Title
	}
	if c.Body != "" {
		out.Body = c.Body
	}
	if c.FileURL != "" {
		out.FileURL = c.FileURL
	}
	if c.FileName != "" {
		out.FileName = c.FileName
	}
	if c.Placements != nil {
		out.Placements = append([]Placement(nil), c.Placements...)
	}
	return out
}

// Resource is the approvable shape shared by every kind. The state machine
// reads and returns it; it never touches storage.
type Resource struct {
	Kind           Kind
	ID             int64
	OrganizationID int64
	SpaceID        int64
	CabinetID      int64

	Status    Status
	CreatorID int64
	// ApproverID is the single approver of space, cabinet and record. Zero means
	// none was designated and the manager fallback applies.
	ApproverID int64

	Approvers       []Approver
	ChainIndex      int
	FinalApproverID int64

	RejectionReason *string
	RejectedBy      int64

	Content         Content
	FinalPlacements []Placement

	SubmittedAt *time.Time
	DecidedAt   *time.Time
	DeletedAt   *time.Time
	Version     int64
}

func (r Resource) Deleted() bool {
	return r.DeletedAt != nil
}

// Clone deep-copies the slices and pointers so the machine can mutate freely.
func (r Resource) Clone() Resource {
	out := r
	out.Approvers = append([]Approver(nil), r.Approvers...)
	out.FinalPlacements = append([]Placement(nil), r.FinalPlacements...)
	out.Content.Placements = append([]Placement(nil), r.Content.Placements...)
	if r.RejectionReason != nil {
		s := *r.RejectionReason
		out.RejectionReason = &s
	}
	out.SubmittedAt = copyTime(r.SubmittedAt)
	out.DecidedAt = copyTime(r.DecidedAt)
	out.DeletedAt = copyTime(r.DeletedAt)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// SortedApprovers returns the chain ordered by Order.
func (r Resource) SortedApprovers() []Approver {
	out := append([]Approver(nil), r.Approvers...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Target is the permission view of the resource.
func (r Resource) Target() permission.Target {
	return permission.Target{
		Kind:           r.Kind.PermissionKind(),
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		CabinetID:      r.CabinetID,
		OwnerID:        r.CreatorID,
		CreatorID:      r.CreatorID,
	}
}

// authorityTarget is Target without the owner and creator, for gates that
// identity alone must not open.
func (r Resource) authorityTarget() permission.Target {
	t := r.Target()
	t.OwnerID = 0
	t.CreatorID = 0
	return t
}

// CurrentReviewer is whoever must act next, or zero when nobody is pending.
func (r Resource) CurrentReviewer() int64 {
	switch r.Status {
	case StatusPending:
		return r.ApproverID
	case StatusPendingReview:
		approvers := r.SortedApprovers()
		if r.ChainIndex >= 0 && r.ChainIndex < len(approvers) {
			return approvers[r.ChainIndex].UserID
		}
	case StatusPendingFinalApproval:
		return r.FinalApproverID
	}
	return 0
}
