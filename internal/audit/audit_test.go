package audit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Veraticus/clawback/internal/audit"
	"github.com/Veraticus/clawback/internal/audit/mock_audit"
	"github.com/Veraticus/clawback/internal/model"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock_audit.NewMockAppender(ctrl)

	var got *model.AuditEvent
	store.EXPECT().
		AppendAuditEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event *model.AuditEvent) error {
			got = event
			return nil
		})

	err := audit.Record(context.Background(), store, "case-1", audit.ActionDocumentProcessed,
		audit.EntityDocument, int64(42), map[string]any{"inserted": 3})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "case-1", got.CaseID)
	assert.Equal(t, model.ActorSystem, got.Actor)
	assert.Equal(t, "document.processed", got.Action)
	assert.Equal(t, "42", got.EntityID)
	assert.Equal(t, 3, got.Payload["inserted"])
}

func TestRecord_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock_audit.NewMockAppender(ctrl)
	boom := errors.New("disk full")
	store.EXPECT().AppendAuditEvent(gomock.Any(), gomock.Any()).Return(boom)

	err := audit.Record(context.Background(), store, "case-1", audit.ActionTaskFailed, audit.EntityTask, "job", nil)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "task.failed")
}
