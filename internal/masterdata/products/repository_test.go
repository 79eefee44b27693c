package products

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsForeignKeyViolation(t *testing.T) {
	fk := fmt.Errorf("delete: %w", &pgconn.PgError{Code: "23503"})
	require.True(t, isForeignKeyViolation(fk))

	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	require.False(t, isForeignKeyViolation(unique))
	require.False(t, isForeignKeyViolation(nil))
}
