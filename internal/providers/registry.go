package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// retryConfigurable is implemented by clients whose retry policy can be
// swapped at runtime.
type retryConfigurable interface {
	SetRetryPolicy(RetryPolicy)
}

// Registry holds the translation client and speech synthesizers.
// It supports hot-reload of retry settings and provides thread-safe access.
type Registry struct {
	mu           sync.RWMutex
	translator   Translator
	synthesizers map[string]SpeechSynthesizer
	defaultTTS   string
	logger       *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		synthesizers: make(map[string]SpeechSynthesizer),
		logger:       logger,
	}
}

// SetTranslator installs the translation client.
func (r *Registry) SetTranslator(t Translator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translator = t
	r.logger.Info("registered translator", "name", t.Name())
}

// Translator returns the translation client.
func (r *Registry) Translator() (Translator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.translator == nil {
		return nil, fmt.Errorf("no translator registered")
	}
	return r.translator, nil
}

// RegisterSynthesizer registers a speech synthesizer by its name.
// The first one registered becomes the default.
func (r *Registry) RegisterSynthesizer(s SpeechSynthesizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synthesizers[s.Name()] = s
	if r.defaultTTS == "" {
		r.defaultTTS = s.Name()
	}
	r.logger.Info("registered speech synthesizer", "name", s.Name())
}

// SetDefaultSynthesizer selects the synthesizer returned for an empty name.
func (r *Registry) SetDefaultSynthesizer(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.synthesizers[name]; !ok {
		return fmt.Errorf("speech synthesizer not found: %s", name)
	}
	r.defaultTTS = name
	return nil
}

// Synthesizer returns a synthesizer by name, or the default for "".
func (r *Registry) Synthesizer(name string) (SpeechSynthesizer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.defaultTTS
	}
	s, ok := r.synthesizers[name]
	if !ok {
		return nil, fmt.Errorf("speech synthesizer not found: %q", name)
	}
	return s, nil
}

// ListSynthesizers returns registered synthesizer names, sorted.
func (r *Registry) ListSynthesizers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.synthesizers))
	for name := range r.synthesizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetRetryPolicy pushes a new policy to every client that supports it.
func (r *Registry) SetRetryPolicy(p RetryPolicy) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rc, ok := r.translator.(retryConfigurable); ok {
		rc.SetRetryPolicy(p)
	}
	for _, s := range r.synthesizers {
		if rc, ok := s.(retryConfigurable); ok {
			rc.SetRetryPolicy(p)
		}
	}
	r.logger.Info("retry policy updated",
		"max_attempts", p.MaxAttempts,
		"transport_delay", p.TransportDelay,
		"server_error_delay", p.ServerErrorDelay)
}

// RegistryStatus summarizes registered providers.
type RegistryStatus struct {
	Translator   string   `json:"translator,omitempty"`
	Synthesizers []string `json:"synthesizers"`
	DefaultTTS   string   `json:"default_tts,omitempty"`
}

// Status returns a snapshot of the registry.
func (r *Registry) Status() RegistryStatus {
	names := r.ListSynthesizers()
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := RegistryStatus{Synthesizers: names, DefaultTTS: r.defaultTTS}
	if r.translator != nil {
		st.Translator = r.translator.Name()
	}
	return st
}
