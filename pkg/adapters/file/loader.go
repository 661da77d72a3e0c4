package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/openlms/sequent/pkg/domain"
)

// Loader implements ports.ManifestLoader from a manifest document on disk.
// The document is the canonical parsed shape (organizations -> items), not
// the declarative package format itself; converting that format is the
// package layer's job.
type Loader struct {
	path string
}

// NewLoader creates a loader for the given manifest path (YAML or JSON).
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads and decodes the manifest document.
func (l *Loader) Load(ctx context.Context) (*domain.Manifest, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	raw := make(map[string]any)
	if strings.ToLower(filepath.Ext(l.path)) == ".json" {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse manifest JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
		}
	}

	return FromMap(raw)
}

// FromMap decodes a generic map into a manifest. Embedders that already hold
// a parsed document (e.g. converted from the XML package format upstream)
// can hand it over directly. Duration fields accept Go duration strings
// ("30m", "1h").
func FromMap(raw map[string]any) (*domain.Manifest, error) {
	var m domain.Manifest
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &m,
		TagName:    "mapstructure",
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build manifest decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}
