package regions

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const regionSuffix = " region"

// Normalize lowercases raw, trims it and strips trailing " region" tokens.
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	for strings.HasSuffix(key, regionSuffix) {
		key = strings.TrimSpace(strings.TrimSuffix(key, regionSuffix))
	}
	return key
}

// Catalog maps normalized city names to the region key whose instruction
// document covers them. The zero value is an empty catalog.
type Catalog struct {
	aliases map[string]string
}

type catalogFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

// NewCatalog builds a catalog from alias → key pairs, normalizing both sides
func NewCatalog(aliases map[string]string) *Catalog {
	c := &Catalog{aliases: make(map[string]string, len(aliases))}
	for alias, key := range aliases {
		a, k := Normalize(alias), Normalize(key)
		if a == "" || k == "" || a == k {
			continue
		}
		c.aliases[a] = k
	}
	return c
}

// LoadCatalog reads a YAML alias file. An empty path yields an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read region aliases: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse region aliases %s: %w", path, err)
	}
	return NewCatalog(f.Aliases), nil
}

// Key normalizes raw and resolves it through the alias table
func (c *Catalog) Key(raw string) string {
	key := Normalize(raw)
	if c == nil {
		return key
	}
	if target, ok := c.aliases[key]; ok {
		return target
	}
	return key
}

// Len returns the number of aliases
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.aliases)
}
