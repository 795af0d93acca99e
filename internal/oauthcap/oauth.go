// Copyright (c) 2025 Justin Cranford

// Package oauthcap defines the OAuth provider capability the on-premise
// registration provider consumes to exchange a registration code for an
// access/refresh token pair. Treated as an external capability per
// spec.md §1 "out of scope".
package oauthcap

import "context"

// Token is the result of an authorization-code exchange.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	// AdditionalData carries open-ended server fields such as
	// authenticator_id (spec.md §9 "OAuth token additionalData").
	AdditionalData map[string]any
}

// Provider exchanges an authorization code for an access/refresh token,
// passing along extra parameters (spec.md §4.5: tenant_id, account_name,
// push_token, merged additionalData) and an explicit scope list.
type Provider interface {
	Exchange(ctx context.Context, code string, scopes []string, extraParams map[string]string) (Token, error)
}
