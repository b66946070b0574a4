package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/shopforge/shopforge/pkg/logger"
)

// Resolver maps entity types to storage addresses. Reads vastly outnumber
// writes: the registry is populated at schema load and only replaced wholesale
// on hot reload, so a single RWMutex is enough.
type Resolver struct {
	mu      sync.RWMutex
	configs map[string]TypeAddressConfig
	version uint64
	log     *zap.Logger
}

// NewResolver builds an empty address resolver.
func NewResolver() *Resolver {
	return &Resolver{
		configs: make(map[string]TypeAddressConfig),
		log:     logger.WithModule("schema"),
	}
}

// Configure registers or overwrites the address config for one type. The
// template is rescanned for placeholders so IsDynamic and Placeholders always
// reflect the stored template.
func (r *Resolver) Configure(typeName string, cfg TypeAddressConfig) {
	cfg.normalize(typeName)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[typeName] = cfg
	r.version++
}

// Reload replaces the whole registry in one step. Existing configs not present
// in the new set are dropped; in-flight requests keep whichever snapshot they
// already read.
func (r *Resolver) Reload(configs map[string]TypeAddressConfig) {
	next := make(map[string]TypeAddressConfig, len(configs))
	for typeName, cfg := range configs {
		cfg.normalize(typeName)
		next[typeName] = cfg
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = next
	r.version++
}

// Version identifies the current configuration generation. Cache keys embed it
// so a reload can never serve entries computed under an older address layout.
func (r *Resolver) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Lookup returns the config for a type and whether one is registered.
func (r *Resolver) Lookup(typeName string) (TypeAddressConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[typeName]
	return cfg, ok
}

// Types lists all registered configs sorted by type name.
func (r *Resolver) Types() []TypeAddressConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TypeAddressConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypeName < out[j].TypeName })
	return out
}

// ResolveAddress produces the concrete storage address for a type given the
// request arguments. Static templates pass through untouched. Dynamic
// templates substitute each placeholder with the sanitized argument value; a
// missing argument degrades to the literal placeholder name rather than
// failing the request, and is logged so the misconfiguration is visible.
func (r *Resolver) ResolveAddress(typeName string, args map[string]interface{}) string {
	cfg, ok := r.Lookup(typeName)
	if !ok {
		return DefaultAddress(typeName)
	}

	if !cfg.IsDynamic {
		return cfg.AddressTemplate
	}

	address := cfg.AddressTemplate
	for _, placeholder := range cfg.Placeholders {
		value, present := args[placeholder]
		substitution := placeholder
		if present && value != nil {
			substitution = sanitizeAddressPart(fmt.Sprintf("%v", value))
		}
		if !present || substitution == "" {
			substitution = placeholder
			r.log.Warn("address placeholder missing from arguments",
				zap.String("type", typeName),
				zap.String("placeholder", placeholder),
				zap.String("template", cfg.AddressTemplate),
			)
		}
		address = strings.ReplaceAll(address, "{"+placeholder+"}", substitution)
	}

	return address
}

// IDField returns the configured identifier field for a type, defaulting to "id".
func (r *Resolver) IDField(typeName string) string {
	if cfg, ok := r.Lookup(typeName); ok && cfg.IDField != "" {
		return cfg.IDField
	}
	return "id"
}

// IDAliases returns argument names that address the identifier through a
// natural key (empty when none are configured).
func (r *Resolver) IDAliases(typeName string) []string {
	if cfg, ok := r.Lookup(typeName); ok {
		return cfg.IDAliases
	}
	return nil
}

// SensitiveFields returns the fields stripped from read results for a type.
func (r *Resolver) SensitiveFields(typeName string) []string {
	if cfg, ok := r.Lookup(typeName); ok {
		return cfg.SensitiveFields
	}
	return nil
}

// sanitizeAddressPart strips every non-alphanumeric rune so argument values
// cannot smuggle arbitrary text into a storage address.
func sanitizeAddressPart(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}
