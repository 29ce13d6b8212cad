package analyzer

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// SchemaClassifier decides which objects are never compression candidates
type SchemaClassifier struct {
	systemSchemas sets.Set[string]
	prefixes      sets.Set[string]
}

func NewSchemaClassifier(systemSchemas, excludedPrefixes []string) *SchemaClassifier {
	c := &SchemaClassifier{
		systemSchemas: sets.New[string](),
		prefixes:      sets.New[string](),
	}
	for _, s := range systemSchemas {
		c.systemSchemas.Insert(strings.ToUpper(strings.TrimSpace(s)))
	}
	for _, p := range excludedPrefixes {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			c.prefixes.Insert(p)
		}
	}
	return c
}

// IsSystemSchema reports dictionary and vendor-owned schemas
func (c *SchemaClassifier) IsSystemSchema(schema string) bool {
	name := strings.ToUpper(schema)
	if c.systemSchemas.Has(name) {
		return true
	}
	// APEX_200200, FLOWS_030000 and similar versioned installs
	return strings.HasPrefix(name, "APEX_") || strings.HasPrefix(name, "FLOWS_")
}

// ExcludedPrefix returns the temp/staging prefix the table name carries, if any
func (c *SchemaClassifier) ExcludedPrefix(table string) (string, bool) {
	name := strings.ToUpper(table)
	// Sorted so the reported prefix is stable when several match
	for _, p := range sets.List(c.prefixes) {
		if strings.HasPrefix(name, p) {
			return p, true
		}
	}
	return "", false
}

// SystemSchemas lists the configured system schemas in sorted order
func (c *SchemaClassifier) SystemSchemas() []string {
	return sets.List(c.systemSchemas)
}
