// Package sqlite keeps store state in a single local database file, the
// per-origin durable medium used when no shared backend is configured.
package sqlite

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/xerrors"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/domain"
	"github.com/undeadblocks/marketstate/service/keyvalue"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key     TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	value   BLOB NOT NULL
)`

type impl struct {
	db *sql.DB
}

// Open creates or opens the database file at path
func Open(path string) (keyvalue.Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, xerrors.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, xerrors.Errorf("create kv table: %w", err)
	}
	return &impl{db: db}, nil
}

func (im *impl) Get(c ctx.Ctx, key string) (*keyvalue.Entry, error) {
	row := im.db.QueryRowContext(c, `SELECT value, version FROM kv WHERE key = ?`, key)
	e := keyvalue.Entry{}
	if err := row.Scan(&e.Value, &e.Version); err != nil {
		if err == sql.ErrNoRows {
			return nil, keyvalue.ErrNotFound
		}
		c.WithField("err", err).Error("sqlite select failed")
		return nil, err
	}
	return &e, nil
}

func (im *impl) Put(c ctx.Ctx, key string, value []byte, prev int64) (int64, error) {
	var res sql.Result
	var err error
	if prev == 0 {
		res, err = im.db.ExecContext(c,
			`INSERT INTO kv (key, version, value) VALUES (?, 1, ?) ON CONFLICT (key) DO NOTHING`,
			key, value)
	} else {
		res, err = im.db.ExecContext(c,
			`UPDATE kv SET version = version + 1, value = ? WHERE key = ? AND version = ?`,
			value, key, prev)
	}
	if err != nil {
		c.WithField("err", err).Error("sqlite write failed")
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, domain.ErrConflict
	}
	return prev + 1, nil
}

func (im *impl) Del(c ctx.Ctx, key string) error {
	if _, err := im.db.ExecContext(c, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		c.WithField("err", err).Error("sqlite delete failed")
		return err
	}
	return nil
}
