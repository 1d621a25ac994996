package workflow

// Action is a client-initiated lifecycle operation.
type Action string

const (
	ActionSubmit       Action = "submit"
	ActionApprove      Action = "approve"
	ActionReject       Action = "reject"
	ActionResubmit     Action = "resubmit"
	ActionReassign     Action = "reassign"
	ActionFinalApprove Action = "final_approve"
	ActionCancel       Action = "cancel"
	ActionDelete       Action = "delete"
	ActionRestore      Action = "restore"
)

// reviewActions are the ones a stale reviewer may retry after the resource closed.
var reviewActions = map[Action]bool{
	ActionApprove:      true,
	ActionReject:       true,
	ActionFinalApprove: true,
	ActionReassign:     true,
}

type edge struct {
	from   Status
	action Action
}

// transitions is the single source of legal status changes. delete and restore
// are not listed: soft deletion is a guard on top of any status.
var transitions = map[Kind]map[edge][]Status{
	KindSpace:   singleApproverTable(),
	KindCabinet: singleApproverTable(),
	KindRecord:  singleApproverTable(),
	KindLetter: {
		{StatusDraft, ActionSubmit}:                      {StatusPendingReview},
		{StatusPendingReview, ActionApprove}:             {StatusPendingReview, StatusPendingFinalApproval},
		{StatusPendingReview, ActionReject}:              {StatusRejected},
		{StatusPendingReview, ActionReassign}:            {StatusPendingReview},
		{StatusPendingReview, ActionCancel}:              {StatusDraft},
		{StatusPendingFinalApproval, ActionFinalApprove}: {StatusApproved},
		{StatusPendingFinalApproval, ActionApprove}:      {StatusApproved},
		{StatusPendingFinalApproval, ActionReject}:       {StatusFinalRejected},
		{StatusPendingFinalApproval, ActionReassign}:     {StatusPendingFinalApproval},
		{StatusPendingFinalApproval, ActionCancel}:       {StatusDraft},
		{StatusRejected, ActionResubmit}:                 {StatusPendingReview},
		{StatusFinalRejected, ActionResubmit}:            {StatusPendingReview},
	},
}

func singleApproverTable() map[edge][]Status {
	return map[edge][]Status{
		{StatusDraft, ActionSubmit}:      {StatusPending},
		{StatusPending, ActionApprove}:   {StatusApproved},
		{StatusPending, ActionReject}:    {StatusRejected},
		{StatusPending, ActionReassign}:  {StatusPending},
		{StatusPending, ActionCancel}:    {StatusDraft},
		{StatusRejected, ActionResubmit}: {StatusPending},
	}
}

// Allowed reports whether action may be taken from status for kind.
func Allowed(kind Kind, from Status, action Action) bool {
	_, ok := transitions[kind][edge{from, action}]
	return ok
}

// Permits reports whether from --action--> to is in the table.
func Permits(kind Kind, from Status, action Action, to Status) bool {
	for _, s := range transitions[kind][edge{from, action}] {
		if s == to {
			return true
		}
	}
	return false
}

// AvailableActions lists what can be attempted from status, for UIs.
func AvailableActions(kind Kind, from Status, deleted bool) []Action {
	if deleted {
		return []Action{ActionRestore}
	}
	var out []Action
	for _, a := range []Action{ActionSubmit, ActionApprove, ActionFinalApprove, ActionReject, ActionReassign, ActionResubmit, ActionCancel} {
		if Allowed(kind, from, a) {
			out = append(out, a)
		}
	}
	return append(out, ActionDelete)
}
