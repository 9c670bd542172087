// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package provider

import (
	"fmt"
	"sync"

	"github.com/steveant/mgit/pkg/config"
)

// Factory constructs a Provider for a given profile.
type Factory func(profile config.ProviderProfile) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = map[config.Kind]Factory{}
)

// Register binds kind to factory. Called from each adapter package's
// init(), giving the engine a compile-time registry of variants rather
// than the dynamic provider discovery the distilled spec's original
// described.
func Register(kind config.Kind, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = factory
}

// New constructs the adapter registered for profile.Kind.
func New(profile config.ProviderProfile) (Provider, error) {
	registryMu.RLock()
	factory, ok := registry[profile.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider: no adapter registered for kind %q", profile.Kind)
	}
	return factory(profile)
}

// Kinds returns the set of currently registered provider kinds.
func Kinds() []config.Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]config.Kind, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}
