package usecase

import "pasarlive/internal/domain/entity"

type TransitionAction int

const (
	TransitionInsert TransitionAction = iota
	TransitionMerge
	TransitionReject
)

func (a TransitionAction) String() string {
	switch a {
	case TransitionInsert:
		return "insert"
	case TransitionMerge:
		return "merge"
	case TransitionReject:
		return "reject"
	default:
		return "unknown"
	}
}

const (
	ReasonMarkedForDeletion = "cannot modify an entity marked for deletion"
	ReasonAlreadyPending    = "an operation is already pending for this entity"
	reasonUnsupported       = "unsupported operation"
)

type Transition struct {
	Action TransitionAction
	Reason string
}

var (
	insert = Transition{Action: TransitionInsert}
	merge  = Transition{Action: TransitionMerge}
)

func reject(reason string) Transition {
	return Transition{Action: TransitionReject, Reason: reason}
}

// transitions is keyed by the most recent pending operation on an entity,
// then by the incoming operation.
var transitions = map[entity.SyncOperation]map[entity.SyncOperation]Transition{
	entity.SyncOperationCreate: {
		entity.SyncOperationCreate: reject(ReasonAlreadyPending),
		entity.SyncOperationUpdate: insert,
		entity.SyncOperationDelete: insert,
	},
	entity.SyncOperationUpdate: {
		entity.SyncOperationCreate: reject(ReasonAlreadyPending),
		entity.SyncOperationUpdate: merge,
		entity.SyncOperationDelete: insert,
	},
	entity.SyncOperationDelete: {
		entity.SyncOperationCreate: reject(ReasonMarkedForDeletion),
		entity.SyncOperationUpdate: reject(ReasonMarkedForDeletion),
		entity.SyncOperationDelete: reject(ReasonMarkedForDeletion),
	},
}

// DecideTransition resolves an incoming operation against the latest pending
// operation for the same entity.
func DecideTransition(existing, incoming entity.SyncOperation) Transition {
	row, ok := transitions[existing]
	if !ok {
		return reject(reasonUnsupported)
	}
	t, ok := row[incoming]
	if !ok {
		return reject(reasonUnsupported)
	}
	return t
}
