// Package settings supplies read-only snapshots of operator settings.
package settings

import (
	"context"
	"slices"

	"github.com/nstogner/butler/pkg/domain"
)

// Source yields the current settings. Callers take one snapshot at the start
// of an operation and use it throughout.
type Source interface {
	Snapshot(ctx context.Context) (domain.Settings, error)
}

// Static is a Source that always returns the same settings.
type Static struct {
	settings domain.Settings
}

var _ Source = (*Static)(nil)

// NewStatic returns a Source backed by s.
func NewStatic(s domain.Settings) *Static {
	s.EnabledPlatforms = slices.Clone(s.EnabledPlatforms)
	return &Static{settings: s}
}

func (s *Static) Snapshot(ctx context.Context) (domain.Settings, error) {
	out := s.settings
	out.EnabledPlatforms = slices.Clone(s.settings.EnabledPlatforms)
	return out, nil
}
