package postgres

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDB struct {
	execs []string
	fail  error
}

func (d *recordingDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	d.execs = append(d.execs, sql)
	return pgconn.CommandTag{}, d.fail
}

func (d *recordingDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (d *recordingDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func TestRunMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_b.sql": {Data: []byte("CREATE TABLE b ();")},
		"0001_a.sql": {Data: []byte("CREATE TABLE a ();\n")},
		"0003_c.sql": {Data: []byte("   \n")},
		"README.txt": {Data: []byte("ignored")},
		"sub/x.sql":  {Data: []byte("CREATE TABLE x ();")},
	}

	t.Run("applies sql files in order", func(t *testing.T) {
		db := &recordingDB{}
		require.NoError(t, RunMigrations(context.Background(), db, fsys))
		assert.Equal(t, []string{"CREATE TABLE a ();", "CREATE TABLE b ();"}, db.execs)
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		db := &recordingDB{fail: errors.New("boom")}
		err := RunMigrations(context.Background(), db, fsys)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "0001_a.sql")
		assert.Len(t, db.execs, 1)
	})
}
