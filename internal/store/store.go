package store

import (
	"context"
	"errors"

	"wahook/internal/model"
)

// Store is the session registry used by the API server and the webhook engine.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, ownerID string, in model.SessionIn) (model.Session, error)
	GetSession(ctx context.Context, id string) (model.Session, error)
	// ListSessions returns every session when ownerID is empty.
	ListSessions(ctx context.Context, ownerID string) ([]model.Session, error)
	DeleteSession(ctx context.Context, id string) error

	// Webhook configuration
	PutSessionWebhook(ctx context.Context, id string, cfg model.WebhookConfig) (model.Session, error)
	SessionWebhookConfig(ctx context.Context, id string) (model.WebhookConfig, error)

	Ping(ctx context.Context) error
	Close() error
}

var (
	ErrNotFound = model.ErrNotFound
	ErrConflict = errors.New("already exists")
)
