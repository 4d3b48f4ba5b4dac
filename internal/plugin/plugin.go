// Package plugin defines the Extractor/Loader contracts (spec.md §4.6):
// a small, typed abstraction over "pull data in" and "push data out",
// keyed by a `type` string discriminant read from the task's stored JSON
// config. Concrete implementations live in internal/plugin/extract/* and
// internal/plugin/load/*; this package only defines the contract and the
// static registry, matching the teacher's own preference for explicit,
// non-init()-based wiring (see internal/tools/registry.go).
package plugin

import (
	"context"
	"encoding/json"

	"github.com/nextlevelbuilder/eltorchestrator/internal/apperr"
)

// Dataset is a finite, fully materialized table passed between an
// Extractor and a Loader within one task. The transform layer is
// intentionally trivial (spec.md §4.6): a Loader must accept whatever
// shape the Extractor produced.
type Dataset struct {
	Columns []string
	Rows    [][]any
}

// NumRows reports how many rows the dataset holds.
func (d Dataset) NumRows() int { return len(d.Rows) }

// Extractor pulls data from an external source into a Dataset. config is
// the task's stored extractor_config, still containing the `type` field
// (factories typically ignore it; the registry already dispatched on it).
type Extractor interface {
	Extract(ctx context.Context, config json.RawMessage) (Dataset, error)
}

// Loader writes a Dataset to an external sink.
type Loader interface {
	Load(ctx context.Context, config json.RawMessage, ds Dataset) error
}

// ExtractorFactory builds a fresh Extractor instance. Factories are
// stateless constructors, not singletons, so registration never shares
// mutable state across concurrent task runs.
type ExtractorFactory func() Extractor

// LoaderFactory builds a fresh Loader instance.
type LoaderFactory func() Loader

// configType is the minimal shape every plugin config shares: the `type`
// discriminant used to select a factory from the Registry.
type configType struct {
	Type string `json:"type"`
}

func readType(raw json.RawMessage) (string, error) {
	var ct configType
	if err := json.Unmarshal(raw, &ct); err != nil {
		return "", apperr.NewValidationError("plugin config is not valid JSON: %v", err)
	}
	if ct.Type == "" {
		return "", apperr.NewValidationError("plugin config is missing required \"type\" field")
	}
	return ct.Type, nil
}

// Registry is the static type->factory mapping (spec.md §4.6). Built once
// at startup via explicit RegisterExtractor/RegisterLoader calls in
// cmd/registry.go — no package-level init() magic.
type Registry struct {
	extractors map[string]ExtractorFactory
	loaders    map[string]LoaderFactory
}

// NewRegistry returns an empty Registry ready for explicit registration.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[string]ExtractorFactory),
		loaders:    make(map[string]LoaderFactory),
	}
}

// RegisterExtractor associates pluginType with factory, overwriting any
// prior registration for the same type.
func (r *Registry) RegisterExtractor(pluginType string, factory ExtractorFactory) {
	r.extractors[pluginType] = factory
}

// RegisterLoader associates pluginType with factory, overwriting any
// prior registration for the same type.
func (r *Registry) RegisterLoader(pluginType string, factory LoaderFactory) {
	r.loaders[pluginType] = factory
}

// Extract reads the `type` discriminant from config, builds the
// registered Extractor, and runs it. Returns UnknownPluginError if no
// extractor is registered for that type.
func (r *Registry) Extract(ctx context.Context, config json.RawMessage) (Dataset, error) {
	pluginType, err := readType(config)
	if err != nil {
		return Dataset{}, err
	}
	factory, ok := r.extractors[pluginType]
	if !ok {
		return Dataset{}, apperr.UnknownPluginError("extractor", pluginType)
	}
	return factory().Extract(ctx, config)
}

// Load reads the `type` discriminant from config, builds the registered
// Loader, and runs it. Returns UnknownPluginError if no loader is
// registered for that type.
func (r *Registry) Load(ctx context.Context, config json.RawMessage, ds Dataset) error {
	pluginType, err := readType(config)
	if err != nil {
		return err
	}
	factory, ok := r.loaders[pluginType]
	if !ok {
		return apperr.UnknownPluginError("loader", pluginType)
	}
	return factory().Load(ctx, config, ds)
}
