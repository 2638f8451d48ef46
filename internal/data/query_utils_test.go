package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkescrow/starkescrow/internal/db"
	"github.com/starkescrow/starkescrow/internal/db/dbtest"
)

// testModel is a sample struct used for testing getDBColumns and prepareColumns
type testModel struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	UpdatedAt    string `db:"updated_at"`
	IgnoredField string `db:"-"`
	NoTagField   string
}

func TestGetDBColumns(t *testing.T) {
	assert.Equal(t, []string{"id", "name", "updated_at"}, getDBColumns(testModel{}))
}

func TestPrepareColumns(t *testing.T) {
	assert.Equal(t, "id, name, updated_at", prepareColumns(testModel{}, ""))
	assert.Equal(t, "ta.id, ta.name, ta.updated_at", prepareColumns(testModel{}, "ta"))
}

func TestNamedValues(t *testing.T) {
	assert.Equal(t, ":id, :name, :updated_at", namedValues(testModel{}))
}

func TestSortOrder(t *testing.T) {
	assert.True(t, ASC.IsValid())
	assert.True(t, DESC.IsValid())
	assert.False(t, SortOrder("SIDEWAYS").IsValid())
}

func TestPrepareNamedQuery(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()
	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	query, args, err := PrepareNamedQuery(context.Background(), dbConnectionPool,
		"SELECT id FROM transaction_attempts WHERE action IN (:actions) AND phase = :phase",
		map[string]interface{}{"actions": []string{"create", "escrow:1:release"}, "phase": "PENDING"})
	require.NoError(t, err)

	assert.Equal(t, "SELECT id FROM transaction_attempts WHERE action IN (?, ?) AND phase = ?", query)
	assert.Equal(t, []interface{}{"create", "escrow:1:release", "PENDING"}, args)
}
