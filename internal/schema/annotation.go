package schema

import (
	"fmt"
	"strings"
)

// ParseAnnotation parses a storage annotation attached to a type declaration:
//
//	@index items-{tenant} idField=sku sensitiveFields=cost,supplierRef idAliases=handle
//
// The address template is the first token after @index; the remaining tokens
// are key=value options. Parse failures are returned so schema loading can
// abort at startup instead of silently ignoring a bad annotation.
func ParseAnnotation(typeName, annotation string) (TypeAddressConfig, error) {
	var cfg TypeAddressConfig

	text := strings.TrimSpace(annotation)
	if text == "" {
		cfg.normalize(typeName)
		return cfg, nil
	}

	if !strings.HasPrefix(text, "@index") {
		return cfg, fmt.Errorf("schema: type %s: annotation must start with @index, got %q", typeName, text)
	}

	fields := strings.Fields(strings.TrimPrefix(text, "@index"))
	if len(fields) == 0 {
		return cfg, fmt.Errorf("schema: type %s: @index requires an address template", typeName)
	}

	template := fields[0]
	if strings.Contains(template, "=") {
		return cfg, fmt.Errorf("schema: type %s: @index address template missing before options", typeName)
	}
	cfg.AddressTemplate = template

	for _, option := range fields[1:] {
		key, value, found := strings.Cut(option, "=")
		if !found || value == "" {
			return cfg, fmt.Errorf("schema: type %s: malformed @index option %q", typeName, option)
		}

		switch key {
		case "idField":
			cfg.IDField = value
		case "sensitiveFields":
			cfg.SensitiveFields = splitCSV(value)
		case "idAliases":
			cfg.IDAliases = splitCSV(value)
		default:
			return cfg, fmt.Errorf("schema: type %s: unknown @index option %q", typeName, key)
		}
	}

	cfg.normalize(typeName)
	return cfg, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
