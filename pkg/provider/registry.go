package provider

import (
	"fmt"
	"sync"
	"time"

	"github.com/rhuss/codesmith/pkg/api"
)

// Settings configures one backend.
type Settings struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration

	// Content is the fixed output of deterministic backends.
	Content string
}

// Factory builds a Completer from settings.
type Factory func(Settings) (Completer, error)

// Registry builds Completers by backend name. Completers built with the
// configured credentials are cached; per-call credential overrides always
// build a fresh instance.
type Registry struct {
	factories map[Backend]Factory
	settings  map[Backend]Settings

	mu    sync.Mutex
	cache map[Backend]Completer
}

// NewRegistry creates an empty Registry over the given settings.
func NewRegistry(settings map[Backend]Settings) *Registry {
	if settings == nil {
		settings = make(map[Backend]Settings)
	}
	return &Registry{
		factories: make(map[Backend]Factory),
		settings:  settings,
		cache:     make(map[Backend]Completer),
	}
}

// Register installs the factory for a backend.
func (r *Registry) Register(b Backend, f Factory) {
	r.factories[b] = f
}

// Settings returns the configured settings for a backend.
func (r *Registry) Settings(b Backend) Settings {
	return r.settings[b]
}

// Model returns the model to use for backend b: the explicit model if set,
// else the configured model, else the backend default.
func (r *Registry) Model(b Backend, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if m := r.settings[b].Model; m != "" {
		return m
	}
	return b.DefaultModel()
}

// Completer returns a Completer for the named backend. apiKey, when set,
// overrides the configured credential. Unknown backends and missing
// credentials are reported as configuration errors.
func (r *Registry) Completer(name, apiKey string) (Completer, error) {
	b, err := ParseBackend(name)
	if err != nil {
		return nil, api.NewConfigurationError(name, err.Error())
	}
	f, ok := r.factories[b]
	if !ok {
		return nil, api.NewConfigurationError(name, fmt.Sprintf("backend %q is not enabled", b))
	}

	s := r.settings[b]
	if apiKey != "" {
		s.APIKey = apiKey
	}
	if s.APIKey == "" && b.RequiresCredential(s) {
		return nil, api.NewMissingCredentialError(string(b))
	}

	if apiKey != "" {
		return r.build(b, f, s)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cache[b]; ok {
		return c, nil
	}
	c, err := r.build(b, f, s)
	if err != nil {
		return nil, err
	}
	r.cache[b] = c
	return c, nil
}

func (r *Registry) build(b Backend, f Factory, s Settings) (Completer, error) {
	c, err := f(s)
	if err != nil {
		return nil, &api.Error{Kind: api.ErrorKindConfiguration, Backend: string(b), Message: "initialize backend", Err: err}
	}
	return c, nil
}
