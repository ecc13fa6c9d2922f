package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/EduardooSodre/zarife-sub000/internal/entity"
	"github.com/EduardooSodre/zarife-sub000/internal/repository"
)

type webhookEventRepository struct {
	db *sql.DB
}

// NewWebhookEventRepository creates the webhook audit store backed by Postgres.
func NewWebhookEventRepository(db *sql.DB) repository.WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Record(ctx context.Context, rec entity.WebhookRecord) (bool, error) {
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now()
	}

	var inserted bool
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO webhook_events (provider, remote_event_id, event_type, payload, signature_valid, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, remote_event_id) WHERE remote_event_id <> '' DO NOTHING
		RETURNING true`,
		rec.Provider, rec.RemoteEventID, rec.EventType, rec.Payload, rec.SignatureValid, rec.ReceivedAt,
	).Scan(&inserted)
	if err == sql.ErrNoRows {
		// Redelivery of an already-recorded event.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}
	return true, nil
}
