// Package queries loads the operation-name to SQL-template catalog. The
// catalog is declarative: templates use positional placeholders and caller
// values are only ever bound as parameters, never spliced into the text.
package queries

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed queries.json
var defaultCatalog embed.FS

// Catalog maps operation names to parameterized SQL templates. It is loaded
// once at startup and read-only thereafter.
type Catalog struct {
	statements map[string]string
}

// Load builds the catalog from the embedded defaults, overridden by the
// file at path when one is given.
func Load(path string) (*Catalog, error) {
	raw, err := defaultCatalog.ReadFile("queries.json")
	if err != nil {
		return nil, fmt.Errorf("queries: read embedded catalog: %w", err)
	}
	if path != "" {
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("queries: read %s: %w", path, err)
		}
	}
	return Parse(raw)
}

// Parse decodes a JSON catalog.
func Parse(raw []byte) (*Catalog, error) {
	statements := make(map[string]string)
	if err := json.Unmarshal(raw, &statements); err != nil {
		return nil, fmt.Errorf("queries: decode catalog: %w", err)
	}
	return &Catalog{statements: statements}, nil
}

// Lookup returns the SQL template for an operation. A missing entry is a
// deployment defect the caller reports as a configuration error.
func (c *Catalog) Lookup(operation string) (string, bool) {
	sql, ok := c.statements[operation]
	return sql, ok
}

// Names lists the configured operation names.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.statements))
	for name := range c.statements {
		names = append(names, name)
	}
	return names
}
