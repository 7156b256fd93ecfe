package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/internal/repository"
)

const inviteColumns = `id, lab_id, email, created_at, expires_at, used`

type inviteRepository struct {
	BaseRepository
}

func NewInviteRepository(db *sqlx.DB) repository.InviteRepository {
	return &inviteRepository{NewBaseRepository(db)}
}

func (r *inviteRepository) Create(ctx context.Context, invite *model.InviteToken) error {
	query := `INSERT INTO invite_tokens (` + inviteColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.exec(ctx, query, invite.ID, invite.LabID, invite.Email, invite.CreatedAt, invite.ExpiresAt, invite.Used); err != nil {
		return fmt.Errorf("failed to store invite: %w", err)
	}
	return nil
}

func (r *inviteRepository) Get(ctx context.Context, id uuid.UUID) (*model.InviteToken, error) {
	var invite model.InviteToken
	if err := r.get(ctx, "invite", &invite, `SELECT `+inviteColumns+` FROM invite_tokens WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &invite, nil
}

// MarkUsed is a conditional update so that concurrent redemptions of the same
// token are serialised by the row lock: only one caller sees a changed row.
func (r *inviteRepository) MarkUsed(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.exec(ctx, `UPDATE invite_tokens SET used = ? WHERE id = ? AND used = ?`, true, id, false)
	if err != nil {
		return false, fmt.Errorf("failed to invalidate invite: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *inviteRepository) ListByLab(ctx context.Context, labID uuid.UUID) ([]*model.InviteToken, error) {
	var invites []*model.InviteToken
	query := `SELECT ` + inviteColumns + ` FROM invite_tokens WHERE lab_id = ? ORDER BY created_at DESC`
	if err := r.selectAll(ctx, &invites, query, labID); err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	return invites, nil
}
