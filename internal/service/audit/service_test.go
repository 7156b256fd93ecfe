package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jwalitptl/dentallab-api/internal/model"
)

func TestLogWritesStructuredEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	svc := NewService(zap.New(core))

	lab := model.LabAccount(&model.Laboratory{Base: model.Base{ID: uuid.New()}})
	jobID := uuid.New()
	ctx := WithRequestID(context.Background(), "req-1")

	svc.Log(ctx, lab, "transition", "job", jobID, zap.String("to", "InProduction"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "transition", fields["action"])
	assert.Equal(t, jobID.String(), fields["entity_id"])
	assert.Equal(t, "lab", fields["actor_kind"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "InProduction", fields["to"])
}

func TestLogWithoutActor(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	NewService(zap.New(core)).Log(context.Background(), nil, "normalize", "job", uuid.Nil)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "system", logs.All()[0].ContextMap()["actor_kind"])
}
