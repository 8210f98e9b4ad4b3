package models

// Status is the lifecycle status of registry objects. Deleted rows
// remain in the database for audit.
type Status string

const (
	StatusOK      Status = "ok"
	StatusDeleted Status = "deleted"
)

// Action is a reconciliation decision for one member connection.
type Action string

const (
	ActionAdd    Action = "add"
	ActionModify Action = "modify"
	ActionDelete Action = "delete"
	ActionNoop   Action = "noop"
)

// IsValid checks if the action is a known Action.
func (a Action) IsValid() bool {
	switch a {
	case ActionAdd, ActionModify, ActionDelete, ActionNoop:
		return true
	}
	return false
}

// ProposalState is the state of a pending reconciliation proposal.
//
// Transitions are driven only by subsequent import runs:
//
//	open -> resolved   the live state matches the proposal's ask,
//	                   or the ask is gone from the feed
//	open -> conflicted applying the proposal raised a validation error
type ProposalState string

const (
	ProposalOpen       ProposalState = "open"
	ProposalResolved   ProposalState = "resolved"
	ProposalConflicted ProposalState = "conflicted"
)

// proposalTransitions is the table of permitted state transitions.
var proposalTransitions = map[ProposalState][]ProposalState{
	ProposalOpen:       {ProposalResolved, ProposalConflicted},
	ProposalConflicted: {ProposalResolved, ProposalOpen},
	ProposalResolved:   {},
}

// CanTransition reports whether a proposal may move from its current
// state to the target state.
func (s ProposalState) CanTransition(to ProposalState) bool {
	for _, next := range proposalTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
