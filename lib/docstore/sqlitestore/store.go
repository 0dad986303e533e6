// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitestore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/kweid-platfrom/frontend-sub008/lib/clock"
	"github.com/kweid-platfrom/frontend-sub008/lib/codec"
	"github.com/kweid-platfrom/frontend-sub008/lib/docstore"
	"github.com/kweid-platfrom/frontend-sub008/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	path       TEXT    NOT NULL,
	id         TEXT    NOT NULL,
	body       BLOB    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (path, id)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS store_meta (
	key   TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

const lastCommitKey = "last_commit_micros"

// Options configures a Store.
type Options struct {
	// Path is the database file. Required.
	Path string

	// PoolSize defaults to 4. The poller holds one connection for the
	// life of the store.
	PoolSize int

	// PollInterval enables cross-process change detection. Zero
	// disables it.
	PollInterval time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Store is a SQLite-backed docstore.Store. Close releases it.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger

	// refreshMu serializes snapshot loads with their pushes so a
	// listener never receives an older snapshot after a newer one.
	refreshMu    sync.Mutex
	mu           sync.Mutex
	listeners    map[string]map[int]*docstore.Listener
	nextListener int
	closed       bool

	done       chan struct{}
	pollerDone chan struct{}
}

var _ docstore.Store = (*Store)(nil)

// Open opens or creates the database and starts the poller.
func Open(options Options) (*Store, error) {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	if options.PoolSize <= 0 {
		options.PoolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     options.Path,
		PoolSize: options.PoolSize,
		Logger:   options.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: %w", err)
	}

	s := &Store{
		pool:      pool,
		clock:     options.Clock,
		logger:    options.Logger,
		listeners: make(map[string]map[int]*docstore.Listener),
		done:      make(chan struct{}),
	}

	if options.PollInterval > 0 {
		conn, err := pool.Take(context.Background())
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("sqlitestore: poller connection: %w", err)
		}
		version, err := sqlitepool.DataVersion(conn)
		if err != nil {
			pool.Put(conn)
			pool.Close()
			return nil, fmt.Errorf("sqlitestore: %w", err)
		}
		s.pollerDone = make(chan struct{})
		go s.poll(conn, version, options.PollInterval)
	}
	return s, nil
}

// Close stops the poller, ends every subscription, and closes the
// database. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
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

	close(s.done)
	if s.pollerDone != nil {
		<-s.pollerDone
	}
	for _, l := range stopping {
		l.Stop()
	}
	return s.pool.Close()
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
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		existing, found, err := readDocument(conn, path, id)
		if err != nil {
			return err
		}
		if !found {
			return docstore.Errorf(docstore.CodeNotFound, "%s/%s does not exist", path, id)
		}
		commit, err = s.nextCommit(conn)
		if err != nil {
			return err
		}
		return putDocument(conn, path, id, docstore.ApplyPatch(existing, patch, commit), commit)
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
	var commit time.Time
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) (err error) {
		commit, err = s.nextCommit(conn)
		if err != nil {
			return err
		}
		return putDocument(conn, path, id, docstore.ApplyPatch(nil, fields, commit), commit)
	})
	if err != nil {
		return docstore.WriteResult{}, classify(err)
	}
	s.refresh(context.WithoutCancel(ctx), path)
	return docstore.WriteResult{ID: id, UpdateTime: commit}, nil
}

// DeleteDocument implements docstore.Store.
func (s *Store) DeleteDocument(ctx context.Context, path, id string) error {
	var changed bool
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, "DELETE FROM documents WHERE path = ? AND id = ?", &sqlitex.ExecOptions{
			Args: []any{path, id},
		}); err != nil {
			return err
		}
		changed = conn.Changes() > 0
		return nil
	})
	if err != nil {
		return classify(err)
	}
	if changed {
		s.refresh(context.WithoutCancel(ctx), path)
	}
	return nil
}

// Document returns one stored document.
func (s *Store) Document(ctx context.Context, path, id string) (map[string]any, bool, error) {
	var (
		fields map[string]any
		found  bool
	)
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) (err error) {
		fields, found, err = readDocument(conn, path, id)
		return err
	})
	if err != nil {
		return nil, false, classify(err)
	}
	return fields, found, nil
}

// Seed stores a document under a caller-chosen ID, replacing any
// existing one. Sentinels resolve against the commit time.
func (s *Store) Seed(ctx context.Context, path, id string, fields map[string]any) error {
	var commit time.Time
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) (err error) {
		commit, err = s.nextCommit(conn)
		if err != nil {
			return err
		}
		return putDocument(conn, path, id, docstore.ApplyPatch(nil, fields, commit), commit)
	})
	if err != nil {
		return classify(err)
	}
	s.refresh(context.WithoutCancel(ctx), path)
	return nil
}

// nextCommit returns a commit time strictly after the last one
// recorded in the database. Must run inside the write transaction.
func (s *Store) nextCommit(conn *sqlite.Conn) (time.Time, error) {
	var last int64
	err := sqlitex.Execute(conn, "SELECT value FROM store_meta WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{lastCommitKey},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			last = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return time.Time{}, err
	}

	micros := s.clock.Now().UnixMicro()
	if micros <= last {
		micros = last + 1
	}
	err = sqlitex.Execute(conn, `
		INSERT INTO store_meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, &sqlitex.ExecOptions{
		Args: []any{lastCommitKey, micros},
	})
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(micros).UTC(), nil
}

// refresh loads path once per distinct order and pushes the result to
// every listener on it.
func (s *Store) refresh(ctx context.Context, path string) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.Lock()
	listeners := make([]*docstore.Listener, 0, len(s.listeners[path]))
	ids := make([]int, 0, len(s.listeners[path]))
	for id, l := range s.listeners[path] {
		listeners = append(listeners, l)
		ids = append(ids, id)
	}
	s.mu.Unlock()
	if len(listeners) == 0 {
		return
	}

	documents, err := s.load(ctx, path)
	if err != nil {
		s.logger.Warn("snapshot load failed", "path", path, "error", err)
		s.mu.Lock()
		for _, id := range ids {
			delete(s.listeners[path], id)
		}
		s.mu.Unlock()
		for _, l := range listeners {
			l.Fail(err)
		}
		return
	}

	for _, l := range listeners {
		ordered := make([]docstore.Document, len(documents))
		for i, document := range documents {
			ordered[i] = docstore.Document{ID: document.ID, Fields: docstore.CloneFields(document.Fields)}
		}
		docstore.SortDocuments(ordered, l.Order())
		l.Push(ordered)
	}
}

func (s *Store) load(ctx context.Context, path string) ([]docstore.Document, error) {
	var documents []docstore.Document
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT id, body FROM documents WHERE path = ?", &sqlitex.ExecOptions{
			Args: []any{path},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				fields, err := decodeBody(stmt, 1)
				if err != nil {
					return fmt.Errorf("decoding %s/%s: %w", path, stmt.ColumnText(0), err)
				}
				documents = append(documents, docstore.Document{ID: stmt.ColumnText(0), Fields: fields})
				return nil
			},
		})
	})
	if err != nil {
		return nil, classify(err)
	}
	return documents, nil
}

// poll refreshes every subscribed path whenever another connection
// commits. conn is reserved for the poller.
func (s *Store) poll(conn *sqlite.Conn, version int64, interval time.Duration) {
	defer close(s.pollerDone)
	defer s.pool.Put(conn)

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		current, err := sqlitepool.DataVersion(conn)
		if err != nil {
			s.logger.Warn("data_version poll failed", "error", err)
			continue
		}
		if current == version {
			continue
		}
		version = current

		s.mu.Lock()
		paths := make([]string, 0, len(s.listeners))
		for path, byID := range s.listeners {
			if len(byID) > 0 {
				paths = append(paths, path)
			}
		}
		s.mu.Unlock()

		s.logger.Debug("external commit detected", "data_version", current, "paths", len(paths))
		for _, path := range paths {
			s.refresh(context.Background(), path)
		}
	}
}

func readDocument(conn *sqlite.Conn, path, id string) (map[string]any, bool, error) {
	var (
		fields map[string]any
		found  bool
	)
	err := sqlitex.Execute(conn, "SELECT body FROM documents WHERE path = ? AND id = ?", &sqlitex.ExecOptions{
		Args: []any{path, id},
		ResultFunc: func(stmt *sqlite.Stmt) (err error) {
			found = true
			fields, err = decodeBody(stmt, 0)
			return err
		},
	})
	return fields, found, err
}

func putDocument(conn *sqlite.Conn, path, id string, fields map[string]any, commit time.Time) error {
	body, err := codec.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", path, id, err)
	}
	return sqlitex.Execute(conn, `
		INSERT INTO documents (path, id, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (path, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`, &sqlitex.ExecOptions{
		Args: []any{path, id, body, commit.UnixMicro()},
	})
}

func decodeBody(stmt *sqlite.Stmt, column int) (map[string]any, error) {
	body := make([]byte, stmt.ColumnLen(column))
	stmt.ColumnBytes(column, body)
	var fields map[string]any
	if err := codec.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// classify maps SQLite result codes onto store codes. Errors that
// already carry a code pass through.
func classify(err error) error {
	if err == nil || docstore.CodeOf(err) != "" {
		return err
	}
	var code docstore.Code
	switch sqlite.ErrCode(err).ToPrimary() {
	case sqlite.ResultBusy, sqlite.ResultLocked, sqlite.ResultCantOpen, sqlite.ResultIOErr:
		code = docstore.CodeUnavailable
	case sqlite.ResultReadOnly, sqlite.ResultPerm, sqlite.ResultAuth:
		code = docstore.CodePermissionDenied
	case sqlite.ResultFull:
		code = docstore.CodeResourceExhausted
	default:
		code = docstore.CodeInternal
	}
	return &docstore.Error{Code: code, Message: "sqlite", Err: err}
}
