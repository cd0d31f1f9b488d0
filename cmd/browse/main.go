// Command browse is a terminal list view over a SQLite table. Rows are
// paged in on demand through a cache.Model; rows still loading show a
// placeholder until their page arrives.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/IvanBrykalov/pagecache/cache"
	"github.com/IvanBrykalov/pagecache/fetch"
	"github.com/IvanBrykalov/pagecache/provider/sqlprovider"
	"github.com/IvanBrykalov/pagecache/statestore"
)

var (
	dbPath    = flag.String("db", ":memory:", "SQLite database path")
	table     = flag.String("table", "items", "table to browse")
	seedRows  = flag.Int("seed", 50_000, "rows to generate when the table is empty")
	pageSize  = flag.Int("page", 50, "rows per page")
	latency   = flag.Duration("latency", 150*time.Millisecond, "extra delay per page, to make loading visible")
	query     = flag.String("query", "", "initial filter")
	stateFile = flag.String("state", "", "restore the view from and save it to this file")
	logPath   = flag.String("log", "", "write logs to this file (the terminal is taken by the UI)")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "browse:", err)
		os.Exit(1)
	}
}

func run() error {
	logger, err := newLogger(*logPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	db, err := sql.Open(sqlprovider.DriverName, *dbPath)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := ensureSeeded(ctx, db, *table, *seedRows); err != nil {
		return err
	}
	rows, err := sqlprovider.New(db, sqlprovider.Options{Table: *table, Logger: logger})
	if err != nil {
		return err
	}

	m := cache.New[string, sqlprovider.Row](cache.Options[sqlprovider.Row]{
		PageSize: *pageSize,
		Logger:   logger,
	})
	coord := fetch.Bind[string, sqlprovider.Row](m, slowed(rows, *latency), fetch.Options{
		MaxConcurrent: 2,
		Timeout:       10 * time.Second,
		Logger:        logger,
	})
	defer func() { _ = coord.Close() }()

	var store statestore.Store
	key := ""
	if *stateFile != "" {
		fs, err := statestore.NewFile(filepath.Dir(*stateFile))
		if err != nil {
			return err
		}
		store, key = fs, filepath.Base(*stateFile)
		if err := statestore.RestoreModel(ctx, store, key, m); err != nil && !errors.Is(err, statestore.ErrNotFound) {
			logger.Warn("saved view ignored", zap.Error(err))
		}
	}
	p := tea.NewProgram(newBrowser(m), tea.WithAltScreen())
	connect(m, p.Send, *query)

	_, runErr := p.Run()

	if store != nil {
		if err := statestore.SaveModel(ctx, store, key, m); err != nil {
			logger.Warn("saving view failed", zap.Error(err))
		}
	}
	return errors.Wrap(runErr, "ui")
}

// connect forwards model notifications to send, then starts the search for
// initial unless a restored view already has a query.
func connect(m *cache.Model[string, sqlprovider.Row], send func(tea.Msg), initial string) {
	m.SetChangeListener(cache.ChangeListenerFunc(func(from, to, total int) {
		send(dataChangedMsg{from: from, to: to, total: total})
	}))
	m.SetSearchCompleteListener(cache.SearchCompleteListenerFunc[string](func(q string) {
		send(searchDoneMsg{query: q})
	}))
	if _, ok := m.Query(); !ok {
		m.SetQuery(initial)
	}
}

func newLogger(path string) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "logger")
	}
	return logger.With(zap.String("cmd", "browse")), nil
}

// slowed delays every page by d so the placeholder rows are visible.
func slowed(p fetch.Provider[string, sqlprovider.Row], d time.Duration) fetch.Provider[string, sqlprovider.Row] {
	if d <= 0 {
		return p
	}
	return fetch.ProviderFunc[string, sqlprovider.Row](
		func(ctx context.Context, q string, start, length int) (fetch.Result[sqlprovider.Row], error) {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return fetch.Result[sqlprovider.Row]{}, ctx.Err()
			}
			return p.Fetch(ctx, q, start, length)
		})
}

var words = strings.Fields(`amber basil cedar delta ember fjord garnet harbor iris juniper
	kestrel lantern meadow nectar orchid pebble quartz raven saffron timber
	umber velvet willow xenon yarrow zephyr`)

// ensureSeeded fills table with n generated rows unless it already has data.
func ensureSeeded(ctx context.Context, db *sql.DB, table string, n int) error {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
	if err == nil && count > 0 {
		return nil
	}
	r := rand.New(rand.NewSource(1))
	texts := make([]string, n)
	for i := range texts {
		texts[i] = fmt.Sprintf("%s %s %s #%d",
			words[r.Intn(len(words))], words[r.Intn(len(words))], words[r.Intn(len(words))], i)
	}
	return sqlprovider.Seed(ctx, db, table, texts)
}
