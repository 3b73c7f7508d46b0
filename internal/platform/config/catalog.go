package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	strutil "clearance/pkg/platform/strings"
)

//go:embed catalog.yaml
var defaultCatalog []byte

const defaultExpiringSoonDays = 30

// Catalog lists the certification types each kind of evaluation requires.
type Catalog struct {
	DefaultRequired  []string            `yaml:"default_required"`
	DrivingRequired  []string            `yaml:"driving_required"`
	ContextRequired  map[string][]string `yaml:"context_required"`
	ExpiringSoonDays int                 `yaml:"expiring_soon_days"`
}

// LoadCatalog reads the catalog at path, or the embedded default when path
// is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalog)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read requirement catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded requirement catalog is invalid: %v", err))
	}
	return c
}

// ParseCatalog decodes and normalises a YAML catalog.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse requirement catalog: %w", err)
	}
	if c.ExpiringSoonDays < 0 {
		return nil, fmt.Errorf("expiring_soon_days must not be negative")
	}
	if c.ExpiringSoonDays == 0 {
		c.ExpiringSoonDays = defaultExpiringSoonDays
	}

	c.DefaultRequired = strutil.DedupeAndTrimLower(c.DefaultRequired)
	c.DrivingRequired = strutil.DedupeAndTrimLower(c.DrivingRequired)
	normalized := make(map[string][]string, len(c.ContextRequired))
	for ctxType, types := range c.ContextRequired {
		normalized[ctxType] = strutil.DedupeAndTrimLower(types)
	}
	c.ContextRequired = normalized
	return &c, nil
}

// ExpiringWindow is how far ahead an expiry date counts as expiring soon.
func (c *Catalog) ExpiringWindow() time.Duration {
	return time.Duration(c.ExpiringSoonDays) * 24 * time.Hour
}
