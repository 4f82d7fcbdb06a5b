package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jobkit/synccore/internal/domain/model"
	"github.com/jobkit/synccore/pkg/logger"
)

// The profile namespace keeps the last-known backend profile across reloads.
// It is only an id/email-hint source for session re-establishment and is
// never trusted as current truth.

// PutProfile stores the last-known profile.
func (s *Store) PutProfile(ctx context.Context, p model.Profile) error {
	val, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return s.setValue([]byte(profileKey), val)
}

// Profile returns the last-known profile, if any.
func (s *Store) Profile(ctx context.Context) (model.Profile, bool, error) {
	var p model.Profile
	found, err := s.getValue([]byte(profileKey), func(val []byte) error {
		return json.Unmarshal(val, &p)
	})
	return p, found, err
}

// DiscardProfile drops the stored profile hint.
func (s *Store) DiscardProfile(ctx context.Context) error {
	return s.deleteValue([]byte(profileKey))
}

// Hints adapts the profile namespace to the session machine's hint lookup.
type Hints struct {
	store *Store
	log   logger.Logger
}

// NewHints builds the session hint source over this store.
func (s *Store) NewHints() *Hints {
	return &Hints{store: s, log: s.log}
}

// Resolve returns the cached profile id when the stored email exactly
// matches the identity's email.
func (h *Hints) Resolve(email string) (int64, bool) {
	ctx := context.Background()
	p, found, err := h.store.Profile(ctx)
	if err != nil {
		h.log.Warn(ctx, "profile hint read failed", logger.Error(err))
		return 0, false
	}
	if !found || p.Email == "" || p.Email != email {
		return 0, false
	}
	return p.ID, true
}

// Discard drops the cached hint after a failed profile fetch.
func (h *Hints) Discard() {
	ctx := context.Background()
	if err := h.store.DiscardProfile(ctx); err != nil {
		h.log.Warn(ctx, "profile hint discard failed", logger.Error(err))
	}
}
