// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package recommend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry maps model names to scoring variants. Models are registered at
// process start; once sealed the registry is read-only.
type Registry struct {
	mu     sync.RWMutex
	models map[string]Model
	order  []string
	sealed bool
	logger zerolog.Logger
}

// NewRegistry creates an empty registry.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		models: make(map[string]Model),
		logger: logger.With().Str("component", "registry").Logger(),
	}
}

// Register adds a model. It rejects duplicate names, variants outside the
// closed set, and target types a variant cannot score.
func (r *Registry) Register(m Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register %q: registry is sealed", m.Name())
	}
	if m.Name() == "" {
		return fmt.Errorf("register: model name is required")
	}
	if _, exists := r.models[m.Name()]; exists {
		return fmt.Errorf("register %q: already registered", m.Name())
	}

	switch m.Kind() {
	case KindSimilarity:
		if m.Target() != TargetItem {
			return fmt.Errorf("register %q: similarity models score items, got %s", m.Name(), m.Target())
		}
	case KindSampling:
		if !m.Target().Valid() {
			return fmt.Errorf("register %q: invalid target %q", m.Name(), m.Target())
		}
	default:
		return fmt.Errorf("register %q: unsupported model kind %d", m.Name(), m.Kind())
	}

	r.models[m.Name()] = m
	r.order = append(r.order, m.Name())

	r.logger.Info().
		Str("model", m.Name()).
		Str("kind", m.Kind().String()).
		Str("target", string(m.Target())).
		Msg("registered model")
	return nil
}

// MustRegister is Register for start-up wiring; it panics on error.
func (r *Registry) MustRegister(m Model) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Names returns registered model names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Get returns a model by name.
func (r *Registry) Get(name string) (Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Resolve maps requested names to models, preserving request order and
// dropping repeats. The first unknown name yields *UnknownModelError.
func (r *Registry) Resolve(names []string) ([]Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Model, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		m, ok := r.models[name]
		if !ok {
			return nil, &UnknownModelError{Name: name, Available: append([]string(nil), r.order...)}
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, m)
	}
	return out, nil
}
