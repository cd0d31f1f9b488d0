// Package sqlprovider serves cache pages from a SQL table.
//
// The query is a case-insensitive substring filter on a text column; rows
// are ordered by an integer id column. The package registers the pure-Go
// SQLite driver (modernc.org/sqlite) under the name "sqlite", but any
// database/sql driver that understands "?" placeholders and LIMIT/OFFSET
// will do.
package sqlprovider

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/IvanBrykalov/pagecache/fetch"
)

// DriverName is the database/sql driver registered by this package.
const DriverName = "sqlite"

// ErrInvalidIdentifier is returned for table or column names that are not
// plain SQL identifiers.
var ErrInvalidIdentifier = errors.New("sqlprovider: invalid identifier")

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Row is one item of the sequence.
type Row struct {
	ID   int64
	Text string
}

// Options names the table behind the provider. Zero values are safe;
// defaults are applied in New():
//   - Table == ""      => "items"
//   - IDColumn == ""   => "id"
//   - TextColumn == "" => "text"
//   - nil Logger       => zap.NewNop()
type Options struct {
	Table      string
	IDColumn   string
	TextColumn string
	Logger     *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Table == "" {
		o.Table = "items"
	}
	if o.IDColumn == "" {
		o.IDColumn = "id"
	}
	if o.TextColumn == "" {
		o.TextColumn = "text"
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Provider implements fetch.Provider[string, Row] over a table.
type Provider struct {
	db       *sql.DB
	pageSQL  string
	countSQL string
	log      *zap.Logger
}

// New returns a provider reading from db.
func New(db *sql.DB, opt Options) (*Provider, error) {
	opt = opt.withDefaults()
	for _, id := range []string{opt.Table, opt.IDColumn, opt.TextColumn} {
		if !identRe.MatchString(id) {
			return nil, errors.Wrapf(ErrInvalidIdentifier, "%q", id)
		}
	}
	where := fmt.Sprintf(`%s LIKE '%%' || ? || '%%' ESCAPE '\'`, opt.TextColumn)
	pageSQL := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s ORDER BY %s LIMIT ? OFFSET ?`,
		opt.IDColumn, opt.TextColumn, opt.Table, where, opt.IDColumn)
	countSQL := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, opt.Table, where)

	return &Provider{
		db:       db,
		pageSQL:  pageSQL,
		countSQL: countSQL,
		log:      opt.Logger.With(zap.String("component", "sqlprovider"), zap.String("table", opt.Table)),
	}, nil
}

// Fetch returns up to length rows matching q, starting at start, together
// with the total number of matches.
func (p *Provider) Fetch(ctx context.Context, q string, start, length int) (fetch.Result[Row], error) {
	pattern := escapeLike(q)

	rows, err := p.db.QueryContext(ctx, p.pageSQL, pattern, length, start)
	if err != nil {
		return fetch.Result[Row]{}, errors.Wrap(err, "sqlprovider: page query")
	}
	defer rows.Close()

	items := make([]Row, 0, length)
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Text); err != nil {
			return fetch.Result[Row]{}, errors.Wrap(err, "sqlprovider: scan")
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return fetch.Result[Row]{}, errors.Wrap(err, "sqlprovider: page query")
	}

	var total int
	if err := p.db.QueryRowContext(ctx, p.countSQL, pattern).Scan(&total); err != nil {
		return fetch.Result[Row]{}, errors.Wrap(err, "sqlprovider: count query")
	}
	p.log.Debug("page loaded",
		zap.String("query", q),
		zap.Int("start", start),
		zap.Int("rows", len(items)),
		zap.Int("total", total))
	return fetch.Result[Row]{Items: items, Total: total}, nil
}

// escapeLike quotes LIKE wildcards so q matches literally.
func escapeLike(q string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
}

// Seed creates table (if needed) with an id and a text column, and appends
// texts in order inside one transaction.
func Seed(ctx context.Context, db *sql.DB, table string, texts []string) error {
	if !identRe.MatchString(table) {
		return errors.Wrapf(ErrInvalidIdentifier, "%q", table)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY, text TEXT NOT NULL)`, table)); err != nil {
		return errors.Wrap(err, "sqlprovider: create table")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlprovider: begin")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (text) VALUES (?)`, table))
	if err != nil {
		return errors.Wrap(err, "sqlprovider: prepare insert")
	}
	defer stmt.Close()

	for _, s := range texts {
		if _, err := stmt.ExecContext(ctx, s); err != nil {
			return errors.Wrap(err, "sqlprovider: insert")
		}
	}
	return errors.Wrap(tx.Commit(), "sqlprovider: commit")
}

var _ fetch.Provider[string, Row] = (*Provider)(nil)
