// Package schema keeps JSON schemas for parley's file formats. Owning
// packages register a provider per format; the HTTP API serves the
// reflected schema so editors can validate config and manifest files.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
)

// ErrUnknown is returned by Resolve for names with no registered provider.
var ErrUnknown = errors.New("unknown schema")

// Provider builds the schema for a registered name. Providers run at
// most once; the result is cached until ClearCache.
type Provider func() *jsonschema.Schema

var (
	mu        sync.RWMutex
	providers = map[string]Provider{}

	cacheMu sync.RWMutex
	cache   = map[string]*jsonschema.Schema{}
)

// Register installs or replaces the provider under name.
func Register(name string, provider Provider) error {
	name = normalizeName(name)
	if name == "" {
		return fmt.Errorf("schema name is required for registration")
	}
	if provider == nil {
		return fmt.Errorf("schema provider is required")
	}

	mu.Lock()
	providers[name] = provider
	mu.Unlock()

	cacheMu.Lock()
	delete(cache, name)
	cacheMu.Unlock()
	return nil
}

// Resolve returns the cached schema for name, building it on first use.
func Resolve(name string) (*jsonschema.Schema, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, fmt.Errorf("schema name is required for lookup")
	}

	cacheMu.RLock()
	if s, ok := cache[name]; ok {
		cacheMu.RUnlock()
		return s, nil
	}
	cacheMu.RUnlock()

	mu.RLock()
	provider, ok := providers[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}

	s := provider()
	cacheMu.Lock()
	cache[name] = s
	cacheMu.Unlock()
	return s, nil
}

// Names lists the registered schema names sorted.
func Names() []string {
	mu.RLock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	mu.RUnlock()
	sort.Strings(names)
	return names
}

// ClearCache drops all cached schemas.
func ClearCache() {
	cacheMu.Lock()
	cache = map[string]*jsonschema.Schema{}
	cacheMu.Unlock()
}

// Reflect builds a schema for value with the settings shared by all
// parley schemas. nameTag selects the struct tag used for property
// names ("yaml" for file formats, empty for JSON wire types).
func Reflect(value any, nameTag string) *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
		FieldNameTag:              nameTag,
	}
	s := reflector.Reflect(value)
	if s.Version == "" {
		s.Version = jsonschema.Version
	}
	return s
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
