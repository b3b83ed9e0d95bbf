package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"wahook/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]model.Session // id -> session
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{sessions: map[string]model.Session{}, now: time.Now}
}

func (m *Memory) CreateSession(ctx context.Context, ownerID string, in model.SessionIn) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	if _, ok := m.sessions[id]; ok {
		return model.Session{}, ErrConflict
	}
	now := m.now().UTC()
	s := model.Session{
		ID:        id,
		OwnerID:   ownerID,
		Name:      in.Name,
		Status:    model.SessionStatusActive,
		Webhook:   cloneWebhook(in.Webhook),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.sessions[id] = s
	return clone(s), nil
}

func (m *Memory) GetSession(ctx context.Context, id string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return clone(s), nil
}

func (m *Memory) ListSessions(ctx context.Context, ownerID string) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Session{}
	for _, s := range m.sessions {
		if ownerID == "" || s.OwnerID == ownerID {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *Memory) PutSessionWebhook(ctx context.Context, id string, cfg model.WebhookConfig) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	s.Webhook = cloneWebhook(&cfg)
	s.UpdatedAt = m.now().UTC()
	m.sessions[id] = s
	return clone(s), nil
}

// SessionWebhookConfig returns a zero config for sessions without a webhook.
func (m *Memory) SessionWebhookConfig(ctx context.Context, id string) (model.WebhookConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return model.WebhookConfig{}, ErrNotFound
	}
	if s.Webhook == nil {
		return model.WebhookConfig{}, nil
	}
	return *cloneWebhook(s.Webhook), nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func cloneWebhook(c *model.WebhookConfig) *model.WebhookConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.Events = append([]string(nil), c.Events...)
	return &out
}

func clone(s model.Session) model.Session {
	s.Webhook = cloneWebhook(s.Webhook)
	return s
}
