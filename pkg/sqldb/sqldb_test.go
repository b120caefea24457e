package sqldb

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSupported(t *testing.T) {
	assert.True(t, Supported(DriverPostgres))
	assert.True(t, Supported(DriverPgx))
	assert.True(t, Supported(DriverMySQL))
	assert.False(t, Supported("sqlite3"))
	assert.False(t, Supported(""))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(Config{Driver: "oracle", DSN: "x"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported sql driver")
}

func TestDriversAreRegistered(t *testing.T) {
	dsns := map[string]string{
		DriverPostgres: "host=localhost port=1 user=u password=p dbname=d sslmode=disable",
		DriverPgx:      "host=localhost port=1 user=u password=p dbname=d sslmode=disable",
		DriverMySQL:    "u:p@tcp(localhost:1)/d?parseTime=true",
	}
	for driver, dsn := range dsns {
		t.Run(driver, func(t *testing.T) {
			// Open parses the DSN without dialing.
			db, err := sqlx.Open(driver, dsn)
			require.NoError(t, err)
			require.NoError(t, db.Close())
		})
	}
}
