package goSession

import (
	"fmt"
	"maps"
	"strings"

	"github.com/MrEthical07/goSession/events"
)

// Plugin extends an engine during Build. Init runs once, in registration
// order, after the built-in routes exist.
type Plugin interface {
	ID() string
	Init(api *PluginAPI) error
}

// PluginAPI is the surface a plugin receives in Init.
type PluginAPI struct {
	engine *Engine
	id     string
}

// Engine returns the engine being built. Its procedural API is usable from
// plugin handlers.
func (p *PluginAPI) Engine() *Engine { return p.engine }

// ID returns the plugin's identifier.
func (p *PluginAPI) ID() string { return p.id }

// Route registers an additional endpoint relative to the base path. It
// goes through rate limiting and hooks like the built-in ones.
func (p *PluginAPI) Route(method, path string, h HandlerFunc) error {
	if h == nil {
		return fmt.Errorf("plugin %s: nil handler for %s %s", p.id, method, path)
	}
	return p.engine.router.Register(method, path, h)
}

// Hook subscribes to an endpoint hook topic such as "/sign-in/email:before".
// A before hook that returns a *Response short-circuits the request; an
// after hook that returns one replaces the response.
func (p *PluginAPI) Hook(topic string, h events.Handler) events.Subscription {
	return p.engine.hooks.On(topic, h)
}

// On subscribes to a domain event topic or pattern, e.g. "user:*".
func (p *PluginAPI) On(topic string, h events.Handler) events.Subscription {
	return p.engine.events.On(topic, h)
}

// Extend publishes a value under name for retrieval with [ExtensionOf].
// Names are global to the engine.
func (p *PluginAPI) Extend(name string, value any) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("plugin %s: empty extension name", p.id)
	}

	e := p.engine
	e.extMu.Lock()
	defer e.extMu.Unlock()

	if _, ok := e.extensions[name]; ok {
		return fmt.Errorf("%w: %s", ErrExtensionExists, name)
	}
	e.extensions[name] = value
	return nil
}

// Extensions returns a copy of every published extension.
func (e *Engine) Extensions() map[string]any {
	e.extMu.RLock()
	defer e.extMu.RUnlock()
	return maps.Clone(e.extensions)
}

// ExtensionOf returns the extension published under name when it has type T.
func ExtensionOf[T any](e *Engine, name string) (T, bool) {
	var zero T
	if e == nil {
		return zero, false
	}
	e.extMu.RLock()
	v, ok := e.extensions[name]
	e.extMu.RUnlock()
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
