// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the binary encoding used for stored bug documents
// and exported dashboard snapshots.
//
// Encoding is CBOR (RFC 8949) in Core Deterministic mode: map keys are
// sorted and integers use their shortest form, so equal values always
// produce equal bytes. The snapshot digest relies on that property.
//
// Timestamps are written as tag 0 RFC 3339 strings with nanosecond
// precision and decode back to time.Time even when the target is an
// untyped map[string]any. Decoding into any produces map[string]any
// rather than CBOR's default map[any]any, so decoded documents can be
// handed straight to the bug schema decoders.
package codec
