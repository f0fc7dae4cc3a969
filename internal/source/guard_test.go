package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateReadOnly(t *testing.T) {
	valid := []string{
		"SELECT * FROM orders",
		"  select city, amount from orders  ",
		"SELECT COUNT(*) FROM t GROUP BY x",
		"SELECT created_at, updated_at FROM t", // keyword inside an identifier
	}
	for _, q := range valid {
		assert.NoError(t, ValidateReadOnly(q), q)
	}

	invalid := []string{
		"DROP TABLE orders",
		"DELETE FROM orders",
		"UPDATE orders SET amount = 0",
		"INSERT INTO orders VALUES (1)",
		"ALTER TABLE orders ADD COLUMN x",
		"CREATE TABLE t (id INTEGER)",
		"TRUNCATE orders",
		"PRAGMA table_info(orders)",
		"WITH x AS (SELECT 1) SELECT * FROM x", // not a SELECT prefix
		"SELECT * FROM orders; DROP TABLE orders",
	}
	for _, q := range invalid {
		assert.Error(t, ValidateReadOnly(q), q)
	}
}
