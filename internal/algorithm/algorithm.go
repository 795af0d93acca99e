// Copyright (c) 2025 Justin Cranford

// Package algorithm implements the SigningAlgorithm alias-tolerant codec:
// a closed enumeration of hash algorithms, an inbound parser that accepts
// every spelling the cloud and on-premise backends are known to emit, and
// two outbound canonicalizers, one per backend variant.
package algorithm

import (
	"crypto"
	_ "crypto/sha1"   // register SHA-1 for crypto.Hash.New
	_ "crypto/sha256" // register SHA-256/384/512 for crypto.Hash.New
	_ "crypto/sha512"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mfacore/internal/apperr"
)

// SigningAlgorithm is the closed enumeration {sha1, sha256, sha384, sha512}.
type SigningAlgorithm string

const (
	SHA1   SigningAlgorithm = "sha1"
	SHA256 SigningAlgorithm = "sha256"
	SHA384 SigningAlgorithm = "sha384"
	SHA512 SigningAlgorithm = "sha512"
)

var upperCaser = cases.Upper(language.Und)

// aliasTable maps every uppercase inbound spelling to its canonical
// SigningAlgorithm. Built once; parse is a pure lookup.
var aliasTable = map[string]SigningAlgorithm{
	"SHA1":          SHA1,
	"HMACSHA1":      SHA1,
	"RSASHA1":       SHA1,
	"SHA1WITHRSA":   SHA1,
	"SHA256":        SHA256,
	"HMACSHA256":    SHA256,
	"RSASHA256":     SHA256,
	"SHA256WITHRSA": SHA256,
	"SHA384":        SHA384,
	"HMACSHA384":    SHA384,
	"RSASHA384":     SHA384,
	"SHA384WITHRSA": SHA384,
	"SHA512":        SHA512,
	"HMACSHA512":    SHA512,
	"RSASHA512":     SHA512,
	"SHA512WITHRSA": SHA512,
}

// Parse uppercase-normalizes s (via golang.org/x/text/cases for
// locale-independent, Unicode-correct folding) and looks it up in the
// static alias table.
func Parse(s string) (SigningAlgorithm, error) {
	normalized := upperCaser.String(strings.TrimSpace(s))

	alg, ok := aliasTable[normalized]
	if !ok {
		return "", apperr.InvalidAlgorithm(s)
	}

	return alg, nil
}

// cloudSpellings and onpremSpellings hold the outbound canonical spelling
// per algorithm. sha1 is never emitted; both tables substitute the
// documented default rather than failing (see spec.md §4.1 Policy).
var cloudSpellings = map[SigningAlgorithm]string{
	SHA1:   "RSASHA256", // defaulted: server never negotiates sha1 as preferred
	SHA256: "RSASHA256",
	SHA384: "RSASHA384",
	SHA512: "RSASHA512",
}

var onpremSpellings = map[SigningAlgorithm]string{
	SHA1:   "SHA512withRSA", // defaulted: see cloudSpellings comment
	SHA256: "SHA256withRSA",
	SHA384: "SHA384withRSA",
	SHA512: "SHA512withRSA",
}

// CloudSpelling returns the canonical outbound spelling used by the cloud
// enrollment/finalize requests. Total: every SigningAlgorithm value maps to
// a non-empty spelling, with sha1 silently substituted.
func CloudSpelling(a SigningAlgorithm) string {
	if s, ok := cloudSpellings[a]; ok {
		return s
	}

	return cloudSpellings[SHA256]
}

// OnPremSpelling returns the canonical outbound spelling used by the
// on-premise SCIM enrollment request.
func OnPremSpelling(a SigningAlgorithm) string {
	if s, ok := onpremSpellings[a]; ok {
		return s
	}

	return onpremSpellings[SHA512]
}

// hashes maps each SigningAlgorithm to the crypto.Hash primitive it
// selects, consumed by the signing capability — no new cryptographic
// primitive is introduced here, only a selector over the standard library's
// registered hash implementations (spec.md §1 Non-goals).
var hashes = map[SigningAlgorithm]crypto.Hash{
	SHA1:   crypto.SHA1,
	SHA256: crypto.SHA256,
	SHA384: crypto.SHA384,
	SHA512: crypto.SHA512,
}

// Hash returns the digest of data selected by a's hash primitive.
func Hash(a SigningAlgorithm, data []byte) ([]byte, error) {
	h, ok := hashes[a]
	if !ok {
		return nil, apperr.InvalidAlgorithm(string(a))
	}

	if !h.Available() {
		return nil, apperr.UnderlyingError(errUnavailableHash(a))
	}

	digest := h.New()
	if _, err := digest.Write(data); err != nil {
		return nil, apperr.UnderlyingError(err)
	}

	return digest.Sum(nil), nil
}

// CryptoHash exposes the crypto.Hash selector directly, for callers (the
// RSA signing capability) that need to pass it to rsa.SignPKCS1v15.
func CryptoHash(a SigningAlgorithm) (crypto.Hash, error) {
	h, ok := hashes[a]
	if !ok {
		return 0, apperr.InvalidAlgorithm(string(a))
	}

	return h, nil
}

type hashUnavailableErr struct{ algorithm SigningAlgorithm }

func (e hashUnavailableErr) Error() string {
	return "hash primitive unavailable for algorithm " + string(e.algorithm)
}

func errUnavailableHash(a SigningAlgorithm) error { return hashUnavailableErr{algorithm: a} }
