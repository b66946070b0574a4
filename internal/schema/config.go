package schema

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// TypeAddressConfig describes where documents of one entity type live and how
// they are identified. Configs are built once at schema-load time and treated
// as immutable; hot reload replaces the whole registry, never a single entry.
type TypeAddressConfig struct {
	TypeName        string
	AddressTemplate string
	IDField         string
	IDAliases       []string
	SensitiveFields []string
	IsDynamic       bool
	Placeholders    []string
}

// normalize scans the template for {word} placeholders and fills the derived
// fields. Called whenever a config enters the registry so callers never have
// to keep IsDynamic/Placeholders consistent by hand.
func (c *TypeAddressConfig) normalize(typeName string) {
	c.TypeName = typeName
	if c.AddressTemplate == "" {
		c.AddressTemplate = DefaultAddress(typeName)
	}

	c.Placeholders = nil
	for _, match := range placeholderPattern.FindAllStringSubmatch(c.AddressTemplate, -1) {
		c.Placeholders = append(c.Placeholders, match[1])
	}
	c.IsDynamic = len(c.Placeholders) > 0
}

// DefaultAddress derives a storage address for an unconfigured type by
// lowercasing and pluralizing its name: Widget -> widgets, Category ->
// categories. Deterministic and total: any input yields a usable address.
func DefaultAddress(typeName string) string {
	name := strings.ToLower(strings.TrimSpace(typeName))
	if name == "" {
		return "documents"
	}

	switch {
	case strings.HasSuffix(name, "s"), strings.HasSuffix(name, "x"),
		strings.HasSuffix(name, "z"), strings.HasSuffix(name, "ch"),
		strings.HasSuffix(name, "sh"):
		return name + "es"
	case strings.HasSuffix(name, "y") && len(name) > 1 && !isVowel(name[len(name)-2]):
		return name[:len(name)-1] + "ies"
	default:
		return name + "s"
	}
}

func isVowel(b byte) bool {
	switch b {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}
