package repositories_test

import (
	"context"
	"io"
	"testing"

	"github.com/myrjola/sleuth/internal/sqlite"
	"github.com/myrjola/sleuth/internal/testhelpers"
)

// newTestDB creates a new in-memory database for testing purposes.
func newTestDB(t *testing.T) *sqlite.Database {
	t.Helper()
	var (
		db  *sqlite.Database
		err error
	)

	ctx, cancel := context.WithCancel(context.Background())
	if db, err = sqlite.NewDatabase(ctx, ":memory:", testhelpers.NewLogger(io.Discard)); err != nil {
		cancel()
		t.Fatal(err)
	}

	t.Cleanup(func() {
		cancel()
		if err = db.Close(); err != nil {
			t.Fatal(err)
		}
	})

	return db
}
