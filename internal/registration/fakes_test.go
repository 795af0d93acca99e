// Copyright (c) 2025 Justin Cranford

package registration_test

import (
	"context"
	"crypto"
	"sync"

	"mfacore/internal/biometry"
	"mfacore/internal/keystore"
	"mfacore/internal/oauthcap"
)

// fakeKeyStore is an in-memory keystore.Store double.
type fakeKeyStore struct {
	mu   sync.Mutex
	keys map[string]crypto.PrivateKey
}

func newFakeKeyStore() *fakeKeyStore { return &fakeKeyStore{keys: map[string]crypto.PrivateKey{}} }

func (f *fakeKeyStore) Store(_ context.Context, label string, priv crypto.PrivateKey, _ keystore.AccessControl) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[label] = priv

	return nil
}

func (f *fakeKeyStore) Read(_ context.Context, label string) (crypto.PrivateKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.keys[label], nil
}

func (f *fakeKeyStore) Rename(_ context.Context, oldLabel, newLabel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[newLabel] = f.keys[oldLabel]
	delete(f.keys, oldLabel)

	return nil
}

func (f *fakeKeyStore) Delete(_ context.Context, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, label)

	return nil
}

func (f *fakeKeyStore) Exists(_ context.Context, label string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.keys[label]

	return ok, nil
}

var _ keystore.Store = (*fakeKeyStore)(nil)

// fakeBiometry is a biometry.Evaluator double that always reports a fixed
// subtype as available.
type fakeBiometry struct {
	available bool
	subtype   biometry.Subtype
	err       error
}

func (f *fakeBiometry) CanEvaluate(_ context.Context, _ biometry.Policy) (bool, error) {
	return f.available, nil
}

func (f *fakeBiometry) Evaluate(_ context.Context, _ biometry.Policy) (biometry.Subtype, error) {
	if f.err != nil {
		return biometry.SubtypeNone, f.err
	}

	return f.subtype, nil
}

var _ biometry.Evaluator = (*fakeBiometry)(nil)

// fakeOAuth is an oauthcap.Provider double returning a fixed token. It
// records the arguments of its last Exchange call so tests can assert on
// the scopes and extra parameters a provider sent.
type fakeOAuth struct {
	token oauthcap.Token
	err   error

	lastCode        string
	lastScopes      []string
	lastExtraParams map[string]string
}

func (f *fakeOAuth) Exchange(_ context.Context, code string, scopes []string, extraParams map[string]string) (oauthcap.Token, error) {
	f.lastCode = code
	f.lastScopes = scopes
	f.lastExtraParams = extraParams

	return f.token, f.err
}

var _ oauthcap.Provider = (*fakeOAuth)(nil)
