package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/amishk599/jobscout/internal/model"
)

// ErrNoProfile is returned by operations that need a current profile.
var ErrNoProfile = errors.New("no candidate profile; run profile analyze first")

// Persister stores the profile between runs.
type Persister interface {
	SaveProfile(p model.Profile) error
	LoadProfile() (model.Profile, bool, error)
	ClearProfile() error
}

// Store holds at most one candidate profile. A profile is replaced
// wholesale; the returned value shares slices with the stored one and must
// not be modified.
type Store struct {
	persist  Persister
	analyzer model.ProfileAnalyzer
	logger   *slog.Logger

	mu      sync.RWMutex
	current *model.Profile
}

// NewStore creates an empty store.
func NewStore(persist Persister, analyzer model.ProfileAnalyzer, logger *slog.Logger) *Store {
	return &Store{persist: persist, analyzer: analyzer, logger: logger}
}

// Load restores the persisted profile, if any.
func (s *Store) Load() error {
	p, ok, err := s.persist.LoadProfile()
	if err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.current = &p
		s.logger.Debug("profile restored", "name", p.Name, "skills", len(p.Skills))
	} else {
		s.current = nil
	}
	return nil
}

// Current returns the profile and whether one is present.
func (s *Store) Current() (model.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return model.Profile{}, false
	}
	return *s.current, true
}

// Replace makes p the current profile and persists it.
func (s *Store) Replace(p model.Profile) error {
	if err := s.persist.SaveProfile(p); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	s.mu.Lock()
	s.current = &p
	s.mu.Unlock()
	return nil
}

// Clear removes the current profile.
func (s *Store) Clear() error {
	if err := s.persist.ClearProfile(); err != nil {
		return fmt.Errorf("clearing profile: %w", err)
	}
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	return nil
}

// Analyze sends the input to the profile backend and, on success, replaces
// the current profile with the result.
func (s *Store) Analyze(ctx context.Context, in model.AnalyzeInput) (model.Analysis, error) {
	a, err := s.analyzer.Analyze(ctx, in)
	if err != nil {
		return model.Analysis{}, fmt.Errorf("analyzing profile: %w", err)
	}
	if err := s.Replace(a.Profile); err != nil {
		return model.Analysis{}, err
	}
	s.logger.Info("profile analyzed",
		"name", a.Profile.Name,
		"skills", len(a.Profile.Skills),
		"recommendations", len(a.Recommendations),
	)
	return a, nil
}

// RecommendRoles asks the backend for up to limit roles suited to the
// current profile.
func (s *Store) RecommendRoles(ctx context.Context, limit int) ([]model.RoleRecommendation, error) {
	p, ok := s.Current()
	if !ok {
		return nil, ErrNoProfile
	}
	recs, err := s.analyzer.RecommendRoles(ctx, p, limit)
	if err != nil {
		return nil, fmt.Errorf("recommending roles: %w", err)
	}
	return recs, nil
}
