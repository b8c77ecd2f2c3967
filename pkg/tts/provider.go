// Package tts implements the TTS Subsystem (§4.5.1): provider-agnostic
// speech synthesis for a single chunk of text, with automatic splitting of
// over-limit chunks and ffmpeg-backed concatenation of the resulting
// segments.
package tts

import (
	"context"
)

// Provider produces a single speech audio file for text, writing it to
// outputPath. Implementations correspond to the provider field of a
// voice config entry (§6).
type Provider interface {
	// Name identifies the provider, matched against config.VoiceSettings.Provider.
	Name() string
	// Synthesize writes text as speech to outputPath using voice/speed.
	Synthesize(ctx context.Context, text, voiceName string, speed float64, outputPath string) error
}

// ErrUnsupportedProvider is returned by Registry.Get for an unknown provider name.
type ErrUnsupportedProvider struct {
	Provider string
}

func (e *ErrUnsupportedProvider) Error() string {
	return "unsupported TTS provider: " + e.Provider
}

// Registry resolves a provider name to its implementation.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a Registry from a set of providers, keyed by Name().
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get resolves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, &ErrUnsupportedProvider{Provider: name}
	}
	return p, nil
}
