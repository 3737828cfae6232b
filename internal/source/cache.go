package source

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Cache stores downloaded workbooks on disk, indexed by URL in a
// SQLite database. CBIC republishes the same files for weeks, so a
// cached copy avoids hammering their host on every run.
type Cache struct {
	db  *sql.DB
	dir string
	ttl time.Duration
}

const cacheMigration = `
CREATE TABLE IF NOT EXISTS downloads (
	url        TEXT PRIMARY KEY,
	sha256     TEXT NOT NULL,
	path       TEXT NOT NULL,
	fetched_at DATETIME NOT NULL
);
`

// NewCache opens (or creates) the cache under dir. Entries older than
// ttl are refetched.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "cache: create dir %s", dir)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "downloads.db"))
	if err != nil {
		return nil, eris.Wrap(err, "cache: open index")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	if _, err := db.Exec(cacheMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "cache: migrate")
	}
	return &Cache{db: db, dir: dir, ttl: ttl}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// Get returns the cached file path for url, or "" when the entry is
// missing, expired, or its file vanished.
func (c *Cache) Get(ctx context.Context, url string) (string, error) {
	var path string
	var fetchedAt time.Time
	err := c.db.QueryRowContext(ctx,
		"SELECT path, fetched_at FROM downloads WHERE url = ?", url,
	).Scan(&path, &fetchedAt)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "cache: lookup")
	}
	if time.Since(fetchedAt) > c.ttl {
		return "", nil
	}
	if _, err := os.Stat(path); err != nil {
		return "", nil
	}
	return path, nil
}

// Put writes body to the cache dir under its content hash and records
// the entry. Returns the stored file path.
func (c *Cache) Put(ctx context.Context, url string, body []byte) (string, error) {
	sum := sha256.Sum256(body)
	digest := hex.EncodeToString(sum[:])
	path := filepath.Join(c.dir, digest+".xlsx")

	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", eris.Wrapf(err, "cache: write %s", path)
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO downloads (url, sha256, path, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET sha256 = excluded.sha256, path = excluded.path, fetched_at = excluded.fetched_at`,
		url, digest, path, time.Now().UTC())
	if err != nil {
		return "", eris.Wrap(err, "cache: record download")
	}
	return path, nil
}
