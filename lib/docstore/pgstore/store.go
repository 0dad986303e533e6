// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kweid-platfrom/frontend-sub008/lib/clock"
	"github.com/kweid-platfrom/frontend-sub008/lib/docstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS bugdash_documents (
	path       TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	fields     JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (path, id)
);

CREATE TABLE IF NOT EXISTS bugdash_meta (
	key   TEXT PRIMARY KEY,
	value TIMESTAMPTZ NOT NULL
);

INSERT INTO bugdash_meta (key, value) VALUES ('last_commit', 'epoch')
ON CONFLICT (key) DO NOTHING;
`

// reconnectDelay spaces LISTEN reconnection attempts.
const reconnectDelay = 2 * time.Second

// Options configures a Store.
type Options struct {
	// DSN is a libpq connection string or URL. Required.
	DSN string

	// Channel is the NOTIFY channel. Defaults to "bugdash_documents".
	Channel string

	// MaxConns caps the pool. Zero keeps the pgxpool default.
	MaxConns int32

	Clock  clock.Clock
	Logger *slog.Logger
}

// Store is a PostgreSQL-backed docstore.Store. Close releases it.
type Store struct {
	pool    *pgxpool.Pool
	channel string
	clock   clock.Clock
	logger  *slog.Logger

	refreshMu    sync.Mutex
	mu           sync.Mutex
	listeners    map[string]map[int]*docstore.Listener
	nextListener int
	closed       bool

	cancel     context.CancelFunc
	listenDone chan struct{}
}

var _ docstore.Store = (*Store)(nil)

// Open connects, applies the schema, and starts the LISTEN loop.
func Open(ctx context.Context, options Options) (*Store, error) {
	if options.DSN == "" {
		return nil, fmt.Errorf("pgstore: DSN is required")
	}
	if options.Channel == "" {
		options.Channel = "bugdash_documents"
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}

	config, err := pgxpool.ParseConfig(options.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parsing DSN: %w", err)
	}
	if options.MaxConns > 0 {
		config.MaxConns = options.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connecting: %w", classify(err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", classify(err))
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: applying schema: %w", classify(err))
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		pool:       pool,
		channel:    options.Channel,
		clock:      options.Clock,
		logger:     options.Logger,
		listeners:  make(map[string]map[int]*docstore.Listener),
		cancel:     cancel,
		listenDone: make(chan struct{}),
	}
	go s.listen(listenCtx)

	s.logger.Info("postgres store opened", "channel", s.channel, "max_conns", config.MaxConns)
	return s, nil
}

// Close stops the LISTEN loop, ends every subscription, and closes the
// pool. Idempotent.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	var stopping []*docstore.Listener
	for path, byID := range s.listeners {
		for _, l := range byID {
			stopping = append(stopping, l)
		}
		delete(s.listeners, path)
	}
	s.mu.Unlock()

	s.cancel()
	<-s.listenDone
	for _, l := range stopping {
		l.Stop()
	}
	s.pool.Close()
}

// Subscribe implements docstore.Store.
func (s *Store) Subscribe(path string, order docstore.Order, onSnapshot docstore.SnapshotFunc, onError docstore.ErrorFunc) (docstore.Unsubscribe, error) {
	l := docstore.NewListener(path, order, onSnapshot, onError)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, docstore.Errorf(docstore.CodeUnavailable, "store is closed")
	}
	id := s.nextListener
	s.nextListener++
	if s.listeners[path] == nil {
		s.listeners[path] = make(map[int]*docstore.Listener)
	}
	s.listeners[path][id] = l
	s.mu.Unlock()

	go l.Run()
	s.refresh(context.Background(), path)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners[path], id)
			s.mu.Unlock()
			l.Stop()
		})
	}, nil
}

// WriteFields implements docstore.Store.
func (s *Store) WriteFields(ctx context.Context, path, id string, patch map[string]any) (docstore.WriteResult, error) {
	var commit time.Time
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var existing map[string]any
		err := tx.QueryRow(ctx,
			"SELECT fields FROM bugdash_documents WHERE path = $1 AND id = $2 FOR UPDATE",
			path, id,
		).Scan(&existing)
		if errors.Is(err, pgx.ErrNoRows) {
			return docstore.Errorf(docstore.CodeNotFound, "%s/%s does not exist", path, id)
		}
		if err != nil {
			return err
		}
		if commit, err = s.nextCommit(ctx, tx); err != nil {
			return err
		}
		return s.put(ctx, tx, path, id, docstore.ApplyPatch(existing, patch, commit), commit)
	})
	if err != nil {
		return docstore.WriteResult{}, classify(err)
	}
	s.refresh(context.WithoutCancel(ctx), path)
	return docstore.WriteResult{ID: id, UpdateTime: commit}, nil
}

// CreateDocument implements docstore.Store.
func (s *Store) CreateDocument(ctx context.Context, path string, fields map[string]any) (docstore.WriteResult, error) {
	id := uuid.NewString()
	commit, err := s.upsert(ctx, path, id, fields)
	if err != nil {
		return docstore.WriteResult{}, err
	}
	return docstore.WriteResult{ID: id, UpdateTime: commit}, nil
}

// Seed stores a document under a caller-chosen ID, replacing any
// existing one.
func (s *Store) Seed(ctx context.Context, path, id string, fields map[string]any) error {
	_, err := s.upsert(ctx, path, id, fields)
	return err
}

func (s *Store) upsert(ctx context.Context, path, id string, fields map[string]any) (time.Time, error) {
	var commit time.Time
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) (err error) {
		if commit, err = s.nextCommit(ctx, tx); err != nil {
			return err
		}
		return s.put(ctx, tx, path, id, docstore.ApplyPatch(nil, fields, commit), commit)
	})
	if err != nil {
		return time.Time{}, classify(err)
	}
	s.refresh(context.WithoutCancel(ctx), path)
	return commit, nil
}

// DeleteDocument implements docstore.Store.
func (s *Store) DeleteDocument(ctx context.Context, path, id string) error {
	var deleted bool
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM bugdash_documents WHERE path = $1 AND id = $2", path, id)
		if err != nil {
			return err
		}
		if deleted = tag.RowsAffected() > 0; !deleted {
			return nil
		}
		return s.notify(ctx, tx, path)
	})
	if err != nil {
		return classify(err)
	}
	if deleted {
		s.refresh(context.WithoutCancel(ctx), path)
	}
	return nil
}

// Document returns one stored document.
func (s *Store) Document(ctx context.Context, path, id string) (map[string]any, bool, error) {
	var fields map[string]any
	err := s.pool.QueryRow(ctx,
		"SELECT fields FROM bugdash_documents WHERE path = $1 AND id = $2",
		path, id,
	).Scan(&fields)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify(err)
	}
	return fields, true, nil
}

// nextCommit locks the commit-time row and returns a time strictly
// after the last commit from any process.
func (s *Store) nextCommit(ctx context.Context, tx pgx.Tx) (time.Time, error) {
	var last time.Time
	if err := tx.QueryRow(ctx, "SELECT value FROM bugdash_meta WHERE key = 'last_commit' FOR UPDATE").Scan(&last); err != nil {
		return time.Time{}, err
	}
	commit := s.clock.Now().UTC().Truncate(time.Microsecond)
	if !commit.After(last) {
		commit = last.UTC().Add(time.Microsecond)
	}
	if _, err := tx.Exec(ctx, "UPDATE bugdash_meta SET value = $1 WHERE key = 'last_commit'", commit); err != nil {
		return time.Time{}, err
	}
	return commit, nil
}

func (s *Store) put(ctx context.Context, tx pgx.Tx, path, id string, fields map[string]any, commit time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bugdash_documents (path, id, fields, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (path, id) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`,
		path, id, fields, commit,
	)
	if err != nil {
		return err
	}
	return s.notify(ctx, tx, path)
}

// notify queues a notification delivered when tx commits.
func (s *Store) notify(ctx context.Context, tx pgx.Tx, path string) error {
	_, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", s.channel, path)
	return err
}

func (s *Store) subscribedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.listeners))
	for path, byID := range s.listeners {
		if len(byID) > 0 {
			paths = append(paths, path)
		}
	}
	return paths
}

// refresh loads path and pushes an ordered copy to every listener on
// it. Loads are serialized so pushes never go backwards.
func (s *Store) refresh(ctx context.Context, path string) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.Lock()
	byID := make(map[int]*docstore.Listener, len(s.listeners[path]))
	for id, l := range s.listeners[path] {
		byID[id] = l
	}
	s.mu.Unlock()
	if len(byID) == 0 {
		return
	}

	documents, err := s.load(ctx, path)
	if err != nil {
		s.logger.Warn("snapshot load failed", "path", path, "error", err)
		s.mu.Lock()
		for id := range byID {
			delete(s.listeners[path], id)
		}
		s.mu.Unlock()
		for _, l := range byID {
			l.Fail(err)
		}
		return
	}

	for _, l := range byID {
		ordered := make([]docstore.Document, len(documents))
		for i, document := range documents {
			ordered[i] = docstore.Document{ID: document.ID, Fields: docstore.CloneFields(document.Fields)}
		}
		docstore.SortDocuments(ordered, l.Order())
		l.Push(ordered)
	}
}

func (s *Store) load(ctx context.Context, path string) ([]docstore.Document, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, fields FROM bugdash_documents WHERE path = $1", path)
	if err != nil {
		return nil, classify(err)
	}
	documents, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (docstore.Document, error) {
		var document docstore.Document
		err := row.Scan(&document.ID, &document.Fields)
		return document, err
	})
	if err != nil {
		return nil, classify(err)
	}
	return documents, nil
}

// listen holds one connection in LISTEN and refreshes the notified
// path. After a reconnect every subscribed path is refreshed, since
// notifications sent while disconnected are lost.
func (s *Store) listen(ctx context.Context) {
	defer close(s.listenDone)

	reconnecting := false
	for ctx.Err() == nil {
		err := s.listenOnce(ctx, reconnecting)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("notification listener disconnected", "channel", s.channel, "error", err)
		reconnecting = true
		select {
		case <-s.clock.After(reconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (s *Store) listenOnce(ctx context.Context, refreshAll bool) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{s.channel}.Sanitize()); err != nil {
		return err
	}
	if refreshAll {
		for _, path := range s.subscribedPaths() {
			s.refresh(ctx, path)
		}
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.refresh(ctx, notification.Payload)
	}
}
