package cache

import (
	"fmt"
	"hash/fnv"
	"sort"
)

// Key derives a deterministic cache key from the tenant, the semantically
// relevant filters and the schema-configuration version. Embedding the version
// means a configuration reload can never serve entries computed under an old
// address layout; the filters are fingerprinted in sorted order so map
// iteration cannot change the key.
func Key(namespace, tenant string, filters map[string]interface{}, version uint64) string {
	if tenant == "" {
		tenant = "default"
	}

	h := fnv.New64a()
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "%s=%v;", name, filters[name])
	}

	return fmt.Sprintf("%s:%s:v%d:%x", namespace, tenant, version, h.Sum64())
}

// TenantPrefix is the glob prefix covering every key a tenant could have in a
// namespace, regardless of filters or config version.
func TenantPrefix(namespace, tenant string) string {
	if tenant == "" {
		tenant = "default"
	}
	return namespace + ":" + tenant + ":"
}
