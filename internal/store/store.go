package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"skeetstats/internal/model"
)

// ErrNoSession is returned when no token bundle is stored for a user.
var ErrNoSession = errors.New("no stored session")

// DB wraps the SQLite database backing the bot: the inbound mention
// queue, the opt-in membership set, the persisted session blob, and
// the daily stats table.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS post (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  cid TEXT NOT NULL UNIQUE,
	  uri TEXT NOT NULL,
	  author TEXT NOT NULL,
	  text TEXT NOT NULL,
	  isRead INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_post_isread ON post(isRead);
	CREATE TABLE IF NOT EXISTS opted_in (
	  dids TEXT PRIMARY KEY
	);
	CREATE TABLE IF NOT EXISTS session (
	  user TEXT PRIMARY KEY,
	  tokens TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS stats (
	  did TEXT NOT NULL,
	  date TEXT NOT NULL,
	  followersCount INTEGER NOT NULL,
	  followsCount INTEGER NOT NULL,
	  postsCount INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_stats_did_date ON stats(did, date);
	`)
	return err
}

// InsertPost appends one inbound mention to the queue. A duplicate CID
// is ignored so the external ingester can safely redeliver.
func (d *DB) InsertPost(ctx context.Context, p model.Post) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT OR IGNORE INTO post(cid, uri, author, text, isRead) VALUES(?,?,?,?,0)`,
		p.CID, p.URI, p.Author, p.Text)
	return err
}

// UnreadPosts returns unprocessed mentions in arrival order.
func (d *DB) UnreadPosts(ctx context.Context) ([]model.Post, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT cid, uri, author, text FROM post WHERE isRead=0 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Post
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.CID, &p.URI, &p.Author, &p.Text); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkPostRead flips the read flag. The flip is monotonic: a read post
// is never handed to the dispatcher again.
func (d *DB) MarkPostRead(ctx context.Context, cid string) error {
	_, err := d.sql.ExecContext(ctx, `UPDATE post SET isRead=1 WHERE cid=?`, cid)
	return err
}

// IsPostRead reports the current read flag for a mention.
func (d *DB) IsPostRead(ctx context.Context, cid string) (bool, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT isRead FROM post WHERE cid=?`, cid)
	var v int
	if err := row.Scan(&v); err != nil {
		return false, err
	}
	return v != 0, nil
}

// PurgeReadPosts deletes processed mentions and returns how many went.
func (d *DB) PurgeReadPosts(ctx context.Context) (int64, error) {
	res, err := d.sql.ExecContext(ctx, `DELETE FROM post WHERE isRead=1`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// OptIn inserts the author into the membership set. Returns false when
// the author was already a member; a duplicate opt-in is a no-op
// success, not an error.
func (d *DB) OptIn(ctx context.Context, did string) (bool, error) {
	res, err := d.sql.ExecContext(ctx, `INSERT OR IGNORE INTO opted_in(dids) VALUES(?)`, did)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// OptOut removes the author from the membership set. Returns false
// when there was nothing to remove.
func (d *DB) OptOut(ctx context.Context, did string) (bool, error) {
	res, err := d.sql.ExecContext(ctx, `DELETE FROM opted_in WHERE dids=?`, did)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (d *DB) IsOptedIn(ctx context.Context, did string) (bool, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM opted_in WHERE dids=?`, did)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *DB) CountOptedIn(ctx context.Context) (int, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM opted_in`)
	var n int
	err := row.Scan(&n)
	return n, err
}

func (d *DB) ListOptedIn(ctx context.Context) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT dids FROM opted_in ORDER BY dids`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var did string
		if err := rows.Scan(&did); err != nil {
			return nil, err
		}
		out = append(out, did)
	}
	return out, rows.Err()
}

// SaveSession upserts the token blob for a user. Concurrent writers
// within the process both hold fresh tokens, so last-write-wins is
// acceptable here.
func (d *DB) SaveSession(ctx context.Context, user, tokens string) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO session(user, tokens) VALUES(?,?) ON CONFLICT(user) DO UPDATE SET tokens=excluded.tokens`,
		user, tokens)
	return err
}

// LoadSession returns the stored token blob or ErrNoSession.
func (d *DB) LoadSession(ctx context.Context, user string) (string, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT tokens FROM session WHERE user=?`, user)
	var tokens string
	if err := row.Scan(&tokens); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoSession
		}
		return "", err
	}
	return tokens, nil
}

// InsertStat appends one daily snapshot row.
func (d *DB) InsertStat(ctx context.Context, s model.StatRow) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO stats(did, date, followersCount, followsCount, postsCount) VALUES(?,?,?,?,?)`,
		s.DID, s.Date, s.FollowersCount, s.FollowsCount, s.PostsCount)
	return err
}

// StatHistory returns the most recent rows for a user, newest first.
func (d *DB) StatHistory(ctx context.Context, did string, limit int) ([]model.StatRow, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT did, date, followersCount, followsCount, postsCount FROM stats WHERE did=? ORDER BY date DESC LIMIT ?`,
		did, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStats(rows)
}

// ChartWindow returns the most recent rows in ascending date order for
// charting.
func (d *DB) ChartWindow(ctx context.Context, did string, limit int) ([]model.StatRow, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT did, date, followersCount, followsCount, postsCount FROM (
		   SELECT did, date, followersCount, followsCount, postsCount FROM stats WHERE did=? ORDER BY date DESC LIMIT ?
		 ) ORDER BY date ASC`,
		did, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStats(rows)
}

// MonthlyDelta is the change in counts over one calendar month.
type MonthlyDelta struct {
	Month          string `json:"month"`
	FollowersDelta int    `json:"followersDelta"`
	FollowsDelta   int    `json:"followsDelta"`
	PostsDelta     int    `json:"postsDelta"`
}

// MonthlyDeltas aggregates per-month first-to-last changes.
func (d *DB) MonthlyDeltas(ctx context.Context, did string) ([]MonthlyDelta, error) {
	rows, err := d.sql.QueryContext(ctx,
		`WITH ranked AS (
		   SELECT substr(date,1,7) AS month, date, followersCount, followsCount, postsCount
		   FROM stats WHERE did=?
		 )
		 SELECT m.month,
		        l.followersCount - f.followersCount,
		        l.followsCount - f.followsCount,
		        l.postsCount - f.postsCount
		 FROM (SELECT month, MIN(date) AS first_date, MAX(date) AS last_date FROM ranked GROUP BY month) m
		 JOIN ranked f ON f.month = m.month AND f.date = m.first_date
		 JOIN ranked l ON l.month = m.month AND l.date = m.last_date
		 ORDER BY m.month DESC`,
		did)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MonthlyDelta
	for rows.Next() {
		var m MonthlyDelta
		if err := rows.Scan(&m.Month, &m.FollowersDelta, &m.FollowsDelta, &m.PostsDelta); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// BestDays holds, per metric, the date with the largest single-day
// increase and the size of that increase. Dates are nil when the user
// has no snapshot rows.
type BestDays struct {
	FollowersCountDate     *string `json:"followersCountDate"`
	FollowersCountIncrease int     `json:"followersCountIncrease"`
	FollowsCountDate       *string `json:"followsCountDate"`
	FollowsCountIncrease   int     `json:"followsCountIncrease"`
	PostsCountDate         *string `json:"postsCountDate"`
	PostsCountIncrease     int     `json:"postsCountIncrease"`
}

// BestDays finds the best day for each of the three counts.
func (d *DB) BestDays(ctx context.Context, did string) (BestDays, error) {
	var b BestDays
	var err error
	if b.FollowersCountDate, b.FollowersCountIncrease, err = d.bestDay(ctx, did, "followersCount"); err != nil {
		return b, err
	}
	if b.FollowsCountDate, b.FollowsCountIncrease, err = d.bestDay(ctx, did, "followsCount"); err != nil {
		return b, err
	}
	if b.PostsCountDate, b.PostsCountIncrease, err = d.bestDay(ctx, did, "postsCount"); err != nil {
		return b, err
	}
	return b, nil
}

// bestDay picks the row whose count grew the most over the previous
// snapshot. column comes from the fixed set above, never from input.
func (d *DB) bestDay(ctx context.Context, did, column string) (*string, int, error) {
	q := fmt.Sprintf(`SELECT date, inc FROM (
	   SELECT date, %[1]s - LAG(%[1]s) OVER (ORDER BY date) AS inc
	   FROM stats WHERE did=?
	 ) ORDER BY inc DESC LIMIT 1`, column)
	row := d.sql.QueryRowContext(ctx, q, did)
	var date string
	var inc sql.NullInt64
	if err := row.Scan(&date, &inc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	return &date, int(inc.Int64), nil
}

func scanStats(rows *sql.Rows) ([]model.StatRow, error) {
	var out []model.StatRow
	for rows.Next() {
		var s model.StatRow
		if err := rows.Scan(&s.DID, &s.Date, &s.FollowersCount, &s.FollowsCount, &s.PostsCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
