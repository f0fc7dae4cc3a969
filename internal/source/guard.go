package source

import (
	"fmt"
	"regexp"
	"strings"
)

// forbiddenKeyword matches write/DDL keywords as whole words, so identifiers
// like created_at do not trip it. The data path is strictly read-only.
var forbiddenKeyword = regexp.MustCompile(`\b(DROP|DELETE|UPDATE|INSERT|ALTER|CREATE|TRUNCATE)\b`)

// ValidateReadOnly refuses any statement that is not a plain SELECT query.
// It runs before a statement reaches a driver, both for generated SQL and
// for structured report queries.
func ValidateReadOnly(query string) error {
	upper := strings.ToUpper(strings.TrimSpace(query))

	if m := forbiddenKeyword.FindString(upper); m != "" {
		return fmt.Errorf("statement contains forbidden keyword %s", m)
	}
	if !strings.HasPrefix(upper, "SELECT") {
		return fmt.Errorf("only SELECT statements may be executed")
	}
	return nil
}
