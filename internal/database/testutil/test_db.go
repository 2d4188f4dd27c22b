package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/feelize/platform/internal/database"
)

// TestDBOption customises the behaviour of MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	autoMigrate bool
	seed        *database.SeedOptions
}

// WithAutoMigrate enables automatic schema migration after opening the test database.
func WithAutoMigrate() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
	}
}

// WithAdmins migrates the schema and seeds the given administrator emails.
func WithAdmins(emails ...string) TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
		cfg.seed = &database.SeedOptions{AdminEmails: emails}
	}
}

// MustOpenTestDB opens an isolated in-memory SQLite database for tests, applying optional
// migrations and seed data. The connection is closed via t.Cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	cfg := testDBConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	// A named shared-cache database keeps every pooled connection on the same data
	// while isolating parallel tests from each other.
	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	db, err := database.Open(database.Config{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name),
	})
	require.NoError(t, err)

	switch {
	case cfg.seed != nil:
		require.NoError(t, database.AutoMigrateAndSeed(db, *cfg.seed))
	case cfg.autoMigrate:
		require.NoError(t, database.AutoMigrate(db))
	}

	t.Cleanup(func() {
		_ = database.Close(db)
	})

	return db
}
