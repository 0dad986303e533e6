// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool behind the
// durable document store.
//
// It wraps zombiezen.com/go/sqlite with fixed pragmas: WAL journal
// mode, NORMAL synchronous, a five second busy timeout, an 8 MB page
// cache, memory-mapped reads, and in-memory temp storage. Callers
// [Pool.Take] a connection and [Pool.Put] it back, or use [Pool.Read]
// and [Pool.Write], which scope the connection to a callback and run
// writes inside an IMMEDIATE transaction.
//
// Connections are not safe for concurrent use. Each goroutine holds its
// own connection for the duration of its work.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:      "/var/lib/bugdash/bugdash.db",
//	    PoolSize:  4,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
// [DataVersion] exposes SQLite's per-connection data_version counter,
// which changes whenever another connection commits. Pollers use it to
// notice writes made by other processes sharing the database file.
package sqlitepool
