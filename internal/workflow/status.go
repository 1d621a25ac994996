package workflow

import (
	"fmt"

	"github.com/frahmantamala/docflow/internal/permission"
)

// Kind is an approvable resource kind.
type Kind string

const (
	KindSpace   Kind = "space"
	KindCabinet Kind = "cabinet"
	KindRecord  Kind = "record"
	KindLetter  Kind = "letter"
)

var Kinds = []Kind{KindSpace, KindCabinet, KindRecord, KindLetter}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}

func (k Kind) PermissionKind() permission.ResourceKind {
	return permission.ResourceKind(k)
}

// Chained reports whether the kind uses an ordered reviewer chain.
func (k Kind) Chained() bool {
	return k == KindLetter
}

type Status string

const (
	StatusDraft                Status = "draft"
	StatusPending              Status = "pending"
	StatusPendingReview        Status = "pending_review"
	StatusPendingFinalApproval Status = "pending_final_approval"
	StatusApproved             Status = "approved"
	StatusRejected             Status = "rejected"
	StatusFinalRejected        Status = "final_rejected"
)

// kindStatuses is the closed status set of each kind.
var kindStatuses = map[Kind][]Status{
	KindSpace:   {StatusDraft, StatusPending, StatusApproved, StatusRejected},
	KindCabinet: {StatusDraft, StatusPending, StatusApproved, StatusRejected},
	KindRecord:  {StatusDraft, StatusPending, StatusApproved, StatusRejected},
	KindLetter:  {StatusDraft, StatusPendingReview, StatusPendingFinalApproval, StatusApproved, StatusRejected, StatusFinalRejected},
}

// ParseStatus accepts only statuses that belong to kind.
func ParseStatus(kind Kind, s string) (Status, error) {
	for _, st := range kindStatuses[kind] {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("status %q is not valid for %s", s, kind)
}

func (k Kind) HasStatus(s Status) bool {
	for _, st := range kindStatuses[k] {
		if st == s {
			return true
		}
	}
	return false
}

// InFlight reports whether the status is waiting on a reviewer.
func (s Status) InFlight() bool {
	switch s {
	case StatusPending, StatusPendingReview, StatusPendingFinalApproval:
		return true
	}
	return false
}

func (s Status) Rejected() bool {
	return s == StatusRejected || s == StatusFinalRejected
}

// Terminal statuses end a review cycle. Rejected ones can still be resubmitted.
func (s Status) Terminal() bool {
	return s == StatusApproved || s.Rejected()
}

// Restorable statuses may leave the soft-deleted state without elevated rights.
func (s Status) Restorable() bool {
	return s == StatusDraft || s.Terminal()
}

// PendingStatus is where submit and resubmit land for kind.
func PendingStatus(kind Kind) Status {
	if kind.Chained() {
		return StatusPendingReview
	}
	return StatusPending
}
