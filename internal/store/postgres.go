package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"wahook/internal/model"
)

//go:embed schema.sql
var schemaSQL string

type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgresDB(db), nil
}

// NewPostgresDB wraps an open database handle.
func NewPostgresDB(db *sql.DB) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// Migrate creates the schema if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

const sessionColumns = `id, owner_id, name, status, webhook, created_at, updated_at`

func (p *Postgres) CreateSession(ctx context.Context, ownerID string, in model.SessionIn) (model.Session, error) {
	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	hook, err := webhookJSON(in.Webhook)
	if err != nil {
		return model.Session{}, err
	}
	now := p.now().UTC()
	res, err := p.db.ExecContext(ctx, `INSERT INTO sessions (id, owner_id, name, status, webhook, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$6) ON CONFLICT (id) DO NOTHING`,
		id, ownerID, in.Name, model.SessionStatusActive, hook, now)
	if err != nil {
		return model.Session{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.Session{}, ErrConflict
	}
	return model.Session{
		ID:        id,
		OwnerID:   ownerID,
		Name:      in.Name,
		Status:    model.SessionStatusActive,
		Webhook:   cloneWebhook(in.Webhook),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (p *Postgres) GetSession(ctx context.Context, id string) (model.Session, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id=$1`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	return s, err
}

func (p *Postgres) ListSessions(ctx context.Context, ownerID string) ([]model.Session, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE ($1 = '' OR owner_id = $1) ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []model.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSession(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) PutSessionWebhook(ctx context.Context, id string, cfg model.WebhookConfig) (model.Session, error) {
	hook, err := webhookJSON(&cfg)
	if err != nil {
		return model.Session{}, err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE sessions SET webhook=$2, updated_at=$3 WHERE id=$1`, id, hook, p.now().UTC())
	if err != nil {
		return model.Session{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.Session{}, ErrNotFound
	}
	return p.GetSession(ctx, id)
}

func (p *Postgres) SessionWebhookConfig(ctx context.Context, id string) (model.WebhookConfig, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx, `SELECT webhook FROM sessions WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WebhookConfig{}, ErrNotFound
	}
	if err != nil {
		return model.WebhookConfig{}, err
	}
	var cfg model.WebhookConfig
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return model.WebhookConfig{}, fmt.Errorf("session %s: decode webhook: %w", id, err)
	}
	return cfg, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (model.Session, error) {
	var (
		s   model.Session
		raw []byte
	)
	if err := r.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Status, &raw, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return model.Session{}, err
	}
	if len(raw) > 0 {
		var cfg model.WebhookConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return model.Session{}, fmt.Errorf("session %s: decode webhook: %w", s.ID, err)
		}
		s.Webhook = &cfg
	}
	return s, nil
}

// webhookJSON encodes the jsonb column; nil stays SQL NULL.
func webhookJSON(c *model.WebhookConfig) (any, error) {
	if c == nil {
		return nil, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
