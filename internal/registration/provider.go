// Copyright (c) 2025 Justin Cranford

package registration

import (
	"context"

	"mfacore/internal/authenticator"
	"mfacore/internal/biometry"
	"mfacore/internal/httpclient"
	"mfacore/internal/keystore"
	"mfacore/internal/oauthcap"
	"mfacore/internal/telemetry"
)

// Provider is the two-variant lifecycle spec.md §1 names as "the hard
// part": initiate, enroll each factor kind, finalize. Controller.Initiate
// returns the concrete provider (cloud or on-premise) that succeeded at
// construction, matching spec.md §4.3's dispatch algorithm.
//
// Per spec.md §5, a single Provider instance is not re-entrant: a caller
// invoking two of these methods concurrently on the same instance produces
// undefined results. This package does not internally guard against that
// (see DESIGN.md's record of this Open Question-adjacent decision) — the
// contract is the caller's to keep, exactly as spec.md states.
type Provider interface {
	Initiate(ctx context.Context, accountName, pushToken string, additionalData map[string]string) error
	EnrollUserPresence(ctx context.Context) error
	EnrollBiometric(ctx context.Context) error
	Finalize(ctx context.Context) (authenticator.Authenticator, error)
}

// Deps bundles the external capabilities both providers consume. OAuth is
// only required by the on-premise provider; the cloud provider ignores it.
type Deps struct {
	HTTP      httpclient.Client
	KeyStore  keystore.Store
	Biometry  biometry.Evaluator
	OAuth     oauthcap.Provider
	Telemetry *telemetry.Service
}

// stripApplicationName returns a copy of attrs without the
// "applicationName" key, per spec.md §4.4/§4.5 "<device attributes minus
// applicationName>".
func stripApplicationName(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))

	for k, v := range attrs {
		if k == "applicationName" {
			continue
		}

		out[k] = v
	}

	return out
}
