// Package registry resolves extractor, transform and loader identifiers to
// stage instances.
//
// Connector packages register factories from init(); a binary links the
// connectors it wants with blank imports of the sources, transforms and
// destinations packages. Identifiers resolve as follows:
//
//   - extractor: an existing file by extension (.csv, .xlsx, .json, .ndjson,
//     optionally followed by a compression suffix), then an http(s) URL by
//     scheme, then a registered name.
//   - transform: a registered name.
//   - loader: a registered name (stdout), then a URL by scheme, then a file
//     path by extension.
package registry

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/streametl/pkg/compression"
	"github.com/ajitpratap0/streametl/pkg/config"
	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/logger"
)

// Options is everything a factory gets to build one stage.
type Options struct {
	// Identifier is the string the stage was resolved from.
	Identifier string
	// Path is set for file identifiers and includes any compression suffix.
	Path string
	// Format is the file extension below any compression suffix, e.g. ".csv".
	Format string
	// Compression is the codec implied by Path, or compression.None.
	Compression compression.Algorithm
	// URL is set for URL identifiers.
	URL      *url.URL
	Settings *config.Settings
	Logger   *zap.Logger
}

// SourceFactory creates an extractor.
type SourceFactory func(ctx context.Context, opts *Options) (core.Source, error)

// TransformFactory creates a transform.
type TransformFactory func(opts *Options) (core.Transform, error)

// SinkFactory creates a loader.
type SinkFactory func(ctx context.Context, opts *Options) (core.Sink, error)

// Registry manages connector registration and instantiation
type Registry struct {
	sources    map[string]SourceFactory
	transforms map[string]TransformFactory
	sinks      map[string]SinkFactory
	info       map[string]*ConnectorInfo
	mu         sync.RWMutex
}

// ConnectorInfo describes a registered key for listings.
type ConnectorInfo struct {
	Name        string         `json:"name"`
	Kind        core.StageType `json:"kind"`
	Description string         `json:"description"`
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new connector registry
func NewRegistry() *Registry {
	return &Registry{
		sources:    make(map[string]SourceFactory),
		transforms: make(map[string]TransformFactory),
		sinks:      make(map[string]SinkFactory),
		info:       make(map[string]*ConnectorInfo),
	}
}

func infoKey(kind core.StageType, name string) string {
	return string(kind) + "/" + name
}

func (r *Registry) describe(kind core.StageType, name, description string) {
	r.info[infoKey(kind, name)] = &ConnectorInfo{Name: name, Kind: kind, Description: description}
}

// RegisterSource registers an extractor factory. Keys are a file extension
// (".csv"), a URL scheme ("https:") or a plain name.
func (r *Registry) RegisterSource(key, description string, factory SourceFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[key]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "extractor %s already registered", key)
	}
	r.sources[key] = factory
	r.describe(core.StageTypeSource, key, description)
	return nil
}

// RegisterTransform registers a transform factory under name.
func (r *Registry) RegisterTransform(name, description string, factory TransformFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transforms[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "transform %s already registered", name)
	}
	r.transforms[name] = factory
	r.describe(core.StageTypeTransform, name, description)
	return nil
}

// RegisterSink registers a loader factory. Keys are a URL scheme
// ("s3:"), a file extension (".json") or a plain name ("stdout").
func (r *Registry) RegisterSink(key, description string, factory SinkFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sinks[key]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "loader %s already registered", key)
	}
	r.sinks[key] = factory
	r.describe(core.StageTypeSink, key, description)
	return nil
}

func (r *Registry) options(id string, settings *config.Settings, log *zap.Logger) *Options {
	if settings == nil {
		settings = config.Default()
	}
	if log == nil {
		log = logger.Get()
	}
	return &Options{
		Identifier:  id,
		Compression: compression.None,
		Settings:    settings,
		Logger:      log,
	}
}

// fileOptions fills in path, format and compression for a file identifier.
func fileOptions(opts *Options, path string) {
	opts.Path = path
	alg, base, ok := compression.FromExtension(path)
	if ok {
		opts.Compression = alg
	}
	opts.Format = strings.ToLower(filepath.Ext(base))
}

// parseURL returns the URL if id has a scheme of at least two letters, so
// that Windows drive letters are not taken for schemes.
func parseURL(id string) (*url.URL, bool) {
	u, err := url.Parse(id)
	if err != nil || len(u.Scheme) < 2 {
		return nil, false
	}
	return u, true
}

func schemeKey(u *url.URL) string {
	return strings.ToLower(u.Scheme) + ":"
}

// ResolveSource turns an extractor identifier into a source.
func (r *Registry) ResolveSource(ctx context.Context, id string, settings *config.Settings, log *zap.Logger) (core.Source, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "extractor identifier is blank")
	}
	opts := r.options(id, settings, log)

	var key string
	if st, err := os.Stat(id); err == nil && !st.IsDir() {
		fileOptions(opts, id)
		key = opts.Format
	} else if u, ok := parseURL(id); ok {
		opts.URL = u
		key = schemeKey(u)
	} else {
		key = id
	}

	r.mu.RLock()
	factory, exists := r.sources[key]
	r.mu.RUnlock()
	if !exists {
		return nil, errors.Newf(errors.ErrorTypeValidation, "unknown extractor %q", id).WithDetail("module", id)
	}

	src, err := factory(ctx, opts)
	if err != nil {
		return nil, wrapFactoryError(err, errors.ErrorTypeSource, "failed to create extractor", id)
	}
	return src, nil
}

// ResolveTransform turns a transform identifier into a transform.
func (r *Registry) ResolveTransform(id string, settings *config.Settings, log *zap.Logger) (core.Transform, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "transform identifier is blank")
	}
	opts := r.options(id, settings, log)

	r.mu.RLock()
	factory, exists := r.transforms[id]
	r.mu.RUnlock()
	if !exists {
		return nil, errors.Newf(errors.ErrorTypeValidation, "unknown transform %q", id).WithDetail("module", id)
	}

	t, err := factory(opts)
	if err != nil {
		return nil, wrapFactoryError(err, errors.ErrorTypeTransform, "failed to create transform", id)
	}
	return t, nil
}

// ResolveSink turns a loader identifier into a sink.
func (r *Registry) ResolveSink(ctx context.Context, id string, settings *config.Settings, log *zap.Logger) (core.Sink, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "loader identifier is blank")
	}
	opts := r.options(id, settings, log)

	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.sinks[id]
	if !exists {
		if u, ok := parseURL(id); ok {
			opts.URL = u
			factory, exists = r.sinks[schemeKey(u)]
		} else if filepath.Ext(id) != "" {
			fileOptions(opts, id)
			factory, exists = r.sinks[opts.Format]
			if !exists {
				factory, exists = r.sinks[FileKey]
			}
		}
	}
	if !exists {
		return nil, errors.Newf(errors.ErrorTypeValidation, "unknown loader %q", id).WithDetail("module", id)
	}

	sink, err := factory(ctx, opts)
	if err != nil {
		return nil, wrapFactoryError(err, errors.ErrorTypeSink, "failed to create loader", id)
	}
	return sink, nil
}

// FileKey is the sink key used for file paths whose extension has no
// dedicated loader.
const FileKey = "file"

func wrapFactoryError(err error, errType errors.ErrorType, message, id string) error {
	if errors.IsType(err, errors.ErrorTypeValidation) || errors.IsType(err, errors.ErrorTypeConfig) {
		return err
	}
	return errors.Wrap(err, errType, fmt.Sprintf("%s %q", message, id)).WithDetail("module", id)
}

// List returns every registered key sorted by kind and name.
func (r *Registry) List() []*ConnectorInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*ConnectorInfo, 0, len(r.info))
	for _, info := range r.info {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Kind != infos[j].Kind {
			return infos[i].Kind < infos[j].Kind
		}
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// Clear removes all registered connectors (mainly for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources = make(map[string]SourceFactory)
	r.transforms = make(map[string]TransformFactory)
	r.sinks = make(map[string]SinkFactory)
	r.info = make(map[string]*ConnectorInfo)
}

// Global registry functions

// RegisterSource registers an extractor in the global registry
func RegisterSource(key, description string, factory SourceFactory) error {
	return globalRegistry.RegisterSource(key, description, factory)
}

// RegisterTransform registers a transform in the global registry
func RegisterTransform(name, description string, factory TransformFactory) error {
	return globalRegistry.RegisterTransform(name, description, factory)
}

// RegisterSink registers a loader in the global registry
func RegisterSink(key, description string, factory SinkFactory) error {
	return globalRegistry.RegisterSink(key, description, factory)
}

// ResolveSource resolves an extractor from the global registry
func ResolveSource(ctx context.Context, id string, settings *config.Settings, log *zap.Logger) (core.Source, error) {
	return globalRegistry.ResolveSource(ctx, id, settings, log)
}

// ResolveTransform resolves a transform from the global registry
func ResolveTransform(id string, settings *config.Settings, log *zap.Logger) (core.Transform, error) {
	return globalRegistry.ResolveTransform(id, settings, log)
}

// ResolveSink resolves a loader from the global registry
func ResolveSink(ctx context.Context, id string, settings *config.Settings, log *zap.Logger) (core.Sink, error) {
	return globalRegistry.ResolveSink(ctx, id, settings, log)
}

// List returns everything registered in the global registry
func List() []*ConnectorInfo {
	return globalRegistry.List()
}

// GetRegistry returns the global registry instance.
func GetRegistry() *Registry {
	return globalRegistry
}
