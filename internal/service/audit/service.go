package audit

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jwalitptl/dentallab-api/internal/model"
)

// Service writes the audit trail of domain mutations as structured zap entries.
type Service struct {
	logger *zap.Logger
}

func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger.Named("audit")}
}

// NewProduction builds a JSON audit logger.
func NewProduction() (*Service, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return NewService(logger), nil
}

// Log records that actor performed action on the entity. A nil actor is
// recorded as the system.
func (s *Service) Log(ctx context.Context, actor *model.Account, action, entityType string, entityID uuid.UUID, fields ...zap.Field) {
	entry := []zap.Field{
		zap.String("action", action),
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID.String()),
	}
	if actor != nil {
		entry = append(entry,
			zap.String("actor_kind", string(actor.Kind)),
			zap.String("actor_id", actor.ID().String()),
		)
	} else {
		entry = append(entry, zap.String("actor_kind", "system"))
	}
	if rid, ok := ctx.Value(RequestIDKey{}).(string); ok && rid != "" {
		entry = append(entry, zap.String("request_id", rid))
	}

	s.logger.Info("audit", append(entry, fields...)...)
}

func (s *Service) Sync() error {
	return s.logger.Sync()
}

// RequestIDKey carries the HTTP request id into service calls.
type RequestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey{}, id)
}
