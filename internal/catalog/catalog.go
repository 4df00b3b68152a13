// Package catalog holds the static table that maps dataset types to the
// remote products they are searched as.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/couchcryptid/usgs-data-tool/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultTable []byte

// Catalog resolves dataset type keys to catalog entries.
type Catalog struct {
	entries map[string][]domain.CatalogEntry
}

type fileEntry struct {
	Name      string `yaml:"name"`
	Product   string `yaml:"product"`
	Format    string `yaml:"format"`
	OnRequest bool   `yaml:"on_request"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultTable)
}

// Load reads a catalog file, falling back to the built-in table when path
// is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.Configurationf("catalog", "read %s: %v", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog table.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string][]fileEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, domain.Configurationf("catalog", "decode: %v", err)
	}
	if len(raw) == 0 {
		return nil, domain.Configurationf("catalog", "no dataset types defined")
	}

	c := &Catalog{entries: make(map[string][]domain.CatalogEntry, len(raw))}
	for key, list := range raw {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return nil, domain.Configurationf("catalog", "empty dataset type key")
		}
		if len(list) == 0 {
			return nil, domain.Configurationf("catalog", "dataset type %q has no entries", key)
		}

		names := make(map[string]struct{}, len(list))
		for i, fe := range list {
			e := domain.CatalogEntry{
				DatasetType: key,
				Name:        strings.TrimSpace(fe.Name),
				ProductName: strings.TrimSpace(fe.Product),
				FileFormat:  strings.TrimSpace(fe.Format),
				OnRequest:   fe.OnRequest,
			}
			if err := validateEntry(e, i); err != nil {
				return nil, err
			}
			if _, dup := names[e.Name]; dup {
				return nil, domain.Configurationf("catalog", "dataset type %q has duplicate entry %q", key, e.Name)
			}
			names[e.Name] = struct{}{}
			c.entries[key] = append(c.entries[key], e)
		}
	}
	return c, nil
}

func validateEntry(e domain.CatalogEntry, index int) error {
	switch {
	case e.Name == "":
		return domain.Configurationf("catalog", "%s entry %d: name is required", e.DatasetType, index)
	case e.ProductName == "":
		return domain.Configurationf("catalog", "%s/%s: product is required", e.DatasetType, e.Name)
	case e.FileFormat == "":
		return domain.Configurationf("catalog", "%s/%s: format is required", e.DatasetType, e.Name)
	}
	return nil
}

// Keys returns the known dataset types, sorted.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Resolve returns the entries to query for a dataset type. With no variants
// it returns every entry not marked on_request; otherwise exactly the named
// variants, in catalog order.
func (c *Catalog) Resolve(key string, variants ...string) ([]domain.CatalogEntry, error) {
	key, list, err := c.lookup(key)
	if err != nil {
		return nil, err
	}

	if len(variants) == 0 {
		out := make([]domain.CatalogEntry, 0, len(list))
		for _, e := range list {
			if !e.OnRequest {
				out = append(out, e)
			}
		}
		if len(out) == 0 {
			return nil, domain.Configurationf("type", "dataset type %q has only on-request entries; name one with --variant", key)
		}
		return out, nil
	}

	wanted := make(map[string]bool, len(variants))
	for _, v := range variants {
		wanted[strings.TrimSpace(v)] = false
	}
	var out []domain.CatalogEntry
	for _, e := range list {
		if _, ok := wanted[e.Name]; ok {
			wanted[e.Name] = true
			out = append(out, e)
		}
	}
	for name, found := range wanted {
		if !found {
			return nil, domain.Configurationf("variant", "dataset type %q has no variant %q (known: %s)", key, name, strings.Join(c.variantNames(key), ", "))
		}
	}
	return out, nil
}

// Variants returns the entry names defined for a dataset type, in catalog
// order.
func (c *Catalog) Variants(key string) ([]string, error) {
	key, _, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return c.variantNames(key), nil
}

func (c *Catalog) lookup(key string) (string, []domain.CatalogEntry, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	list, ok := c.entries[key]
	if !ok {
		return key, nil, domain.Configurationf("type", "unknown dataset type %q (known: %s)", key, strings.Join(c.Keys(), ", "))
	}
	return key, list, nil
}

func (c *Catalog) variantNames(key string) []string {
	names := make([]string, 0, len(c.entries[key]))
	for _, e := range c.entries[key] {
		names = append(names, e.Name)
	}
	return names
}

// String lists the catalog for help output.
func (c *Catalog) String() string {
	var b strings.Builder
	for _, k := range c.Keys() {
		for _, e := range c.entries[k] {
			marker := ""
			if e.OnRequest {
				marker = " (on request)"
			}
			fmt.Fprintf(&b, "%s/%s: %s [%s]%s\n", k, e.Name, e.ProductName, e.FileFormat, marker)
		}
	}
	return b.String()
}
