package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestMongoBackend(t *testing.T) {
	url := strings.TrimSpace(os.Getenv("MOODSUN_TEST_MONGO_URL"))
	if url == "" {
		t.Skip("MOODSUN_TEST_MONGO_URL is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	database := fmt.Sprintf("moodsun_test_%s", bson.NewObjectID().Hex())
	m, err := OpenMongo(ctx, url, database)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.db.Drop(context.Background())
		_ = m.Close(context.Background())
	})
	require.NoError(t, m.EnsureIndexes(ctx))

	testBackend(t, m)
}

func TestPostgresBackend(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("MOODSUN_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("MOODSUN_TEST_DATABASE_URL is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`)
	require.NoError(t, err)

	require.NoError(t, ApplyMigrations(ctx, db), "up (pass 1)")
	require.NoError(t, RollbackMigrations(ctx, db), "down")
	require.NoError(t, ApplyMigrations(ctx, db), "up (pass 2)")

	testBackend(t, NewPostgres(db))
}
