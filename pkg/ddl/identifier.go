// Package ddl turns implementation strategies into database statements.
// Every identifier embedded in a statement goes through QuoteIdentifier.
package ddl

import (
	"regexp"
	"strings"

	"github.com/opscart/table-compression-advisor/pkg/apperr"
)

const maxIdentifierLen = 128

var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_$#]*$`)

// ValidateIdentifier checks structural well-formedness of a schema,
// table, partition or index name.
func ValidateIdentifier(name string) error {
	switch {
	case name == "":
		return apperr.Validation("identifier", "identifier is empty")
	case len(name) > maxIdentifierLen:
		return apperr.Validation("identifier", "identifier longer than %d bytes", maxIdentifierLen)
	case !identifierPattern.MatchString(name):
		return apperr.Validation("identifier", "invalid identifier %q", name)
	}
	return nil
}

// QuoteIdentifier validates name and returns it as a quoted identifier.
// Embedded quotes are doubled even though validation already rejects them.
func QuoteIdentifier(name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", err
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`, nil
}

// QualifiedName returns "SCHEMA"."OBJECT"
func QualifiedName(schema, object string) (string, error) {
	s, err := QuoteIdentifier(schema)
	if err != nil {
		return "", err
	}
	o, err := QuoteIdentifier(object)
	if err != nil {
		return "", err
	}
	return s + "." + o, nil
}

// quoteLiteral validates name and returns it as a string literal
func quoteLiteral(name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", err
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'", nil
}
