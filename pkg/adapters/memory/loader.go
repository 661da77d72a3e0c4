package memory

import (
	"context"
	"fmt"

	"github.com/openlms/sequent/pkg/domain"
)

// Loader implements ports.ManifestLoader from an in-memory manifest.
// Useful for tests and embedders that build manifests programmatically.
type Loader struct {
	manifest *domain.Manifest
}

// NewLoader wraps an already-built manifest.
func NewLoader(m *domain.Manifest) (*Loader, error) {
	if m == nil {
		return nil, fmt.Errorf("manifest must not be nil")
	}
	return &Loader{manifest: m}, nil
}

// Load returns the wrapped manifest.
func (l *Loader) Load(ctx context.Context) (*domain.Manifest, error) {
	return l.manifest, nil
}
