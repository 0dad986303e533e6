// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package access

import (
	"log/slog"
	"sync/atomic"

	"github.com/kweid-platfrom/frontend-sub008/lib/bugerr"
	"github.com/kweid-platfrom/frontend-sub008/lib/workspace"
)

// Decision is the outcome of a readiness check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Reason explains a Deny.
type Reason int

const (
	ReasonNone Reason = iota

	// ReasonNoIdentity means no user is signed in.
	ReasonNoIdentity

	// ReasonNotConfigured means the workspace context is incomplete.
	ReasonNotConfigured

	// ReasonMissingCapability means the capability set lacks the
	// required action.
	ReasonMissingCapability

	// ReasonProvisional means the capability set is provisional and
	// mutation requires loaded permissions.
	ReasonProvisional
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNoIdentity:
		return "no identity"
	case ReasonNotConfigured:
		return "workspace not configured"
	case ReasonMissingCapability:
		return "missing capability"
	case ReasonProvisional:
		return "permissions not loaded"
	default:
		return "unknown"
	}
}

// Result is a readiness decision.
type Result struct {
	Decision   Decision
	Reason     Reason
	Capability Capability
	// Detail carries the workspace validation message for
	// ReasonNotConfigured.
	Detail string
}

// Allowed reports whether the check passed.
func (r Result) Allowed() bool { return r.Decision == Allow }

// Err converts a Deny into an engine error. NotConfigured stays
// distinct from AccessDenied. An Allow returns nil.
func (r Result) Err(op string) error {
	if r.Allowed() {
		return nil
	}
	message := r.Reason.String()
	if r.Capability != "" {
		message += ": " + string(r.Capability)
	}
	if r.Detail != "" {
		message += ": " + r.Detail
	}
	kind := bugerr.AccessDenied
	if r.Reason == ReasonNotConfigured {
		kind = bugerr.NotConfigured
	}
	return bugerr.New(kind, op, message)
}

// ValidatorOptions configures a Validator.
type ValidatorOptions struct {
	Logger *slog.Logger

	// RequireLoadedPermissions denies mutation while capabilities are
	// provisional. Subscription is still allowed.
	RequireLoadedPermissions bool
}

// Validator decides subscription and mutation readiness.
type Validator struct {
	logger        *slog.Logger
	requireLoaded bool
	denialLogged  atomic.Bool
}

// NewValidator returns a Validator.
func NewValidator(options ValidatorOptions) *Validator {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Validator{logger: logger, requireLoaded: options.RequireLoadedPermissions}
}

// CanSubscribe requires an identity, a configured workspace, and read
// access.
func (v *Validator) CanSubscribe(identity *Identity, context workspace.Context, capabilities Capabilities) Result {
	result := v.base(identity, context, capabilities)
	v.record("subscribe", context, result)
	return result
}

// CanMutate applies the subscription rules and additionally requires
// the capability for the action.
func (v *Validator) CanMutate(identity *Identity, context workspace.Context, capabilities Capabilities, required Capability) Result {
	result := v.base(identity, context, capabilities)
	if result.Allowed() {
		switch {
		case !capabilities.Has(required):
			result = Result{Decision: Deny, Reason: ReasonMissingCapability, Capability: required}
		case v.requireLoaded && capabilities.Source == SourceProvisional:
			result = Result{Decision: Deny, Reason: ReasonProvisional, Capability: required}
		}
	}
	v.record("mutate", context, result)
	return result
}

func (v *Validator) base(identity *Identity, context workspace.Context, capabilities Capabilities) Result {
	if identity == nil || identity.UserID == "" {
		return Result{Decision: Deny, Reason: ReasonNoIdentity}
	}
	if err := context.Validate(); err != nil {
		return Result{Decision: Deny, Reason: ReasonNotConfigured, Detail: err.Error()}
	}
	if !capabilities.Read {
		return Result{Decision: Deny, Reason: ReasonMissingCapability, Capability: CapRead}
	}
	return Result{Decision: Allow}
}

// record logs the first denial of the session.
func (v *Validator) record(check string, context workspace.Context, result Result) {
	if result.Allowed() || !v.denialLogged.CompareAndSwap(false, true) {
		return
	}
	v.logger.Warn("access denied",
		"check", check,
		"reason", result.Reason.String(),
		"capability", string(result.Capability),
		"workspace", context.String(),
	)
}

// Reset re-arms denial logging.
func (v *Validator) Reset() {
	v.denialLogged.Store(false)
}
