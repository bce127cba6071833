package calibration

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"tomgalvin.uk/labelle/internal/device"
)

// Repository persists user calibrations.
type Repository interface {
	List(ctx context.Context) ([]TapeCalibration, error)
	Upsert(ctx context.Context, c TapeCalibration) error
	// Location names the backing store in error messages.
	Location() string
}

// Store merges hardcoded and user calibrations. User entries shadow
// hardcoded ones for the same key entirely.
type Store struct {
	mu        sync.RWMutex
	hardcoded map[Key]TapeCalibration
	user      map[Key]TapeCalibration
	repo      Repository
}

// NewStore loads the user entries from repo. A nil repo keeps user entries
// in memory only.
func NewStore(ctx context.Context, repo Repository, hardcoded []TapeCalibration) (*Store, error) {
	s := &Store{
		hardcoded: make(map[Key]TapeCalibration, len(hardcoded)),
		user:      map[Key]TapeCalibration{},
		repo:      repo,
	}
	for _, c := range hardcoded {
		c.Source = SourceHardcoded
		s.hardcoded[c.Key()] = c
	}
	if repo == nil {
		return s, nil
	}

	entries, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("Couldn't load calibrations from %s:\n%w", repo.Location(), err)
	}
	for _, c := range entries {
		c.Source = SourceUser
		s.user[c.Key()] = c
	}
	slog.Debug("Loaded calibrations", "user", len(s.user), "hardcoded", len(s.hardcoded))
	return s, nil
}

// Lookup returns the user entry for the key, else the hardcoded entry, else
// the default for the profile.
func (s *Store) Lookup(p device.Profile, tapeMm int) TapeCalibration {
	key := Key{p.Model, tapeMm}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.user[key]; ok {
		return c
	}
	if c, ok := s.hardcoded[key]; ok {
		return c
	}
	return Default(p, tapeMm)
}

// CheckTape accepts the tapes p lists, and any other tape a user has
// calibrated for it.
func (s *Store) CheckTape(p device.Profile, tapeMm int) error {
	err := p.CheckTape(tapeMm)
	if err != nil && s.Lookup(p, tapeMm).Source == SourceUser {
		return nil
	}
	return err
}

// Save validates c against the profile and stores it as a user entry,
// replacing any previous user entry for the key. Readers see either the old
// or the new entry, never a mix.
func (s *Store) Save(ctx context.Context, p device.Profile, c TapeCalibration) error {
	c.Model = p.Model
	c.Source = SourceUser
	if err := c.Validate(p.HeadHeightPx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo != nil {
		if err := s.repo.Upsert(ctx, c); err != nil {
			return &PersistenceError{Path: s.repo.Location(), Entry: c, Err: err}
		}
	}
	s.user[c.Key()] = c
	slog.Info("Saved calibration", "model", c.Model, "tape", c.TapeMm, "offset", c.OffsetPx, "canvas", c.CanvasHeightPx)
	return nil
}

// List returns every effective entry, user entries replacing hardcoded
// ones, ordered by model then tape width.
func (s *Store) List() []TapeCalibration {
	s.mu.RLock()
	merged := maps.Clone(s.hardcoded)
	maps.Copy(merged, s.user)
	s.mu.RUnlock()

	out := slices.Collect(maps.Values(merged))
	slices.SortFunc(out, func(a, b TapeCalibration) int {
		if c := cmp.Compare(a.Model, b.Model); c != 0 {
			return c
		}
		return cmp.Compare(a.TapeMm, b.TapeMm)
	})
	return out
}
