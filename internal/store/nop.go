package store

import "github.com/amishk599/jobscout/internal/model"

// NopStore is a no-op store used for ephemeral runs. Nothing is persisted,
// so every run starts without a profile.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) SaveProfile(model.Profile) error           { return nil }
func (s *NopStore) LoadProfile() (model.Profile, bool, error) { return model.Profile{}, false, nil }
func (s *NopStore) ClearProfile() error                       { return nil }
func (s *NopStore) Close() error                              { return nil }
