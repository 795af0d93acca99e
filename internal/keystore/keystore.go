// Copyright (c) 2025 Justin Cranford

// Package keystore defines the secure local key-store capability the
// registration and service layers consume. The core never implements
// platform key storage itself (spec.md §1 "out of scope") — it only
// defines the shape a host-supplied implementation must satisfy.
package keystore

import (
	"context"
	"crypto"
)

// AccessControl governs whether a Read of a key requires the user to pass
// a presence/biometric gate before the private key material is returned —
// the suspension point named in spec.md §5(iii).
type AccessControl int

const (
	// AccessControlNone allows Read without any gate.
	AccessControlNone AccessControl = iota
	// AccessControlUserPresence requires a user-presence confirmation.
	AccessControlUserPresence
	// AccessControlBiometry requires a successful biometric evaluation.
	AccessControlBiometry
)

// Store is the secure local key-store capability: store, read, rename,
// delete, exists, plus the access-control flag governing Read, per
// spec.md §1.
type Store interface {
	// Store persists priv under label, gated by the given AccessControl
	// policy for future reads.
	Store(ctx context.Context, label string, priv crypto.PrivateKey, access AccessControl) error
	// Read fetches the private key stored under label. If the key was
	// stored with a non-None AccessControl, this call may prompt the user
	// and is itself a suspension point.
	Read(ctx context.Context, label string) (crypto.PrivateKey, error)
	// Rename moves a key from oldLabel to newLabel, preserving its
	// AccessControl policy.
	Rename(ctx context.Context, oldLabel, newLabel string) error
	// Delete removes the key stored under label. Deleting a label that
	// does not exist is not an error.
	Delete(ctx context.Context, label string) error
	// Exists reports whether label currently names a stored key.
	Exists(ctx context.Context, label string) (bool, error)
}

// Labels for the default biometric/userPresence key labels this core
// mints when a host does not supply its own (spec.md §9 "Global key-store
// singleton" design note): "<uuid>.biometrics" / "<uuid>.userPresence" —
// this exact suffix convention MUST be reproduced because the server
// echoes the label back as the factor's name/keyHandle.
const (
	BiometricLabelSuffix    = ".biometrics"
	UserPresenceLabelSuffix = ".userPresence"
)
