// Copyright (c) 2025 Justin Cranford

// Package biometry defines the biometric evaluation capability: a
// collaborator that either returns which biometry subtype succeeded or
// fails. Treated as an external capability per spec.md §1 — the core
// never talks to platform biometric hardware directly.
package biometry

import "context"

// Subtype is the biometry modality the device actually evaluated.
type Subtype string

const (
	SubtypeFaceID      Subtype = "faceID"
	SubtypeTouchID     Subtype = "touchID"
	SubtypeNone        Subtype = "none"
)

// Policy names the evaluation policy requested, matching spec.md §4.4's
// "device owner authentication with biometrics".
type Policy string

const PolicyDeviceOwnerAuthenticationWithBiometrics Policy = "deviceOwnerAuthenticationWithBiometrics"

// Evaluator is the capability interface. CanEvaluate is a cheap pre-check
// (spec.md §4.4 "Pre-check biometry capability"); Evaluate performs the
// actual, user-facing, suspension-point evaluation (spec.md §5(ii)).
type Evaluator interface {
	CanEvaluate(ctx context.Context, policy Policy) (bool, error)
	Evaluate(ctx context.Context, policy Policy) (Subtype, error)
}
