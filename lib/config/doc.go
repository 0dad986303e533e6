// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for bugdash.
//
// Configuration is loaded from a single file specified by either the
// BUGDASH_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production defaults are stricter:
// mutations wait for loaded permissions and failed subscriptions retry
// on their own.
//
// Variable expansion is performed after loading on the SQLite path,
// the Postgres DSN and the permissions file: ${HOME} and
// ${VAR:-default} patterns are expanded. No other environment
// variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Store, Workspace, Engine, Metrics, Identity
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
package config
