package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The confirmation replay contract returns the cached response byte for
// byte. Postgres rewrites json/jsonb values on write (whitespace, key
// order), so the body must live in a plain text column.
func TestResponseBodyColumnRoundTripsVerbatim(t *testing.T) {
	assert.Contains(t, Schema, "response_body TEXT")
	assert.NotContains(t, strings.ToUpper(Schema), "JSONB")
}

func TestSchemaStatementsAreSemicolonSeparated(t *testing.T) {
	var statements int
	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		statements++
		assert.Contains(t, stmt, "IF NOT EXISTS")
	}
	assert.Greater(t, statements, 5)
}
