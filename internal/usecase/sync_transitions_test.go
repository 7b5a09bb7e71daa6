package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pasarlive/internal/domain/entity"
)

func TestDecideTransition(t *testing.T) {
	create, update, del := entity.SyncOperationCreate, entity.SyncOperationUpdate, entity.SyncOperationDelete

	tests := []struct {
		existing entity.SyncOperation
		incoming entity.SyncOperation
		action   TransitionAction
		reason   string
	}{
		{create, create, TransitionReject, ReasonAlreadyPending},
		{create, update, TransitionInsert, ""},
		{create, del, TransitionInsert, ""},
		{update, create, TransitionReject, ReasonAlreadyPending},
		{update, update, TransitionMerge, ""},
		{update, del, TransitionInsert, ""},
		{del, create, TransitionReject, ReasonMarkedForDeletion},
		{del, update, TransitionReject, ReasonMarkedForDeletion},
		{del, del, TransitionReject, ReasonMarkedForDeletion},
	}

	for _, tt := range tests {
		t.Run(string(tt.existing)+"_then_"+string(tt.incoming), func(t *testing.T) {
			got := DecideTransition(tt.existing, tt.incoming)
			assert.Equal(t, tt.action, got.Action)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestDecideTransitionUnknownOperation(t *testing.T) {
	got := DecideTransition("upsert", entity.SyncOperationUpdate)
	assert.Equal(t, TransitionReject, got.Action)

	got = DecideTransition(entity.SyncOperationUpdate, "upsert")
	assert.Equal(t, TransitionReject, got.Action)
}
