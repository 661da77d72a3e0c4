package ports

import (
	"context"

	"github.com/openlms/sequent/pkg/domain"
)

// ManifestLoader defines how the engine obtains the parsed course manifest.
// Parsing and schema validation of the declarative package format happens
// upstream; loaders only deliver the canonical structure.
type ManifestLoader interface {
	// Load returns the parsed manifest.
	Load(ctx context.Context) (*domain.Manifest, error)
}
