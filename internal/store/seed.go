package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"wahook/internal/model"
)

type seedFile struct {
	Sessions []model.Session `yaml:"sessions"`
}

// LoadSeedFile reads sessions from a YAML file:
//
//	sessions:
//	  - id: sales
//	    ownerId: acme
//	    webhook:
//	      url: https://example.com/hook
//	      events: [message.received]
func LoadSeedFile(path string) ([]model.Session, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, s := range f.Sessions {
		if s.ID == "" || s.OwnerID == "" {
			return nil, fmt.Errorf("parse %s: session %d: id and ownerId are required", path, i)
		}
	}
	return f.Sessions, nil
}

// Seed creates missing sessions and refreshes the webhook of existing ones.
func Seed(ctx context.Context, s Store, sessions []model.Session) (created int, err error) {
	for _, sess := range sessions {
		_, err := s.CreateSession(ctx, sess.OwnerID, model.SessionIn{ID: sess.ID, Name: sess.Name, Webhook: sess.Webhook})
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrConflict):
			if sess.Webhook != nil {
				if _, err := s.PutSessionWebhook(ctx, sess.ID, *sess.Webhook); err != nil {
					return created, err
				}
			}
		default:
			return created, err
		}
	}
	return created, nil
}
