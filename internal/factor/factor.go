// Copyright (c) 2025 Justin Cranford

// Package factor implements the FactorType tagged union and its canonical
// persisted form: a single-key JSON object keyed by the variant tag. It
// also implements the small accessor surface spec.md §9 substitutes for
// the source's dynamic member access: ValueOf, NameAndAlgorithm, KeyLabel.
package factor

import (
	"encoding/json"

	googleUuid "github.com/google/uuid"

	"mfacore/internal/algorithm"
	"mfacore/internal/apperr"
)

// Kind is the persisted-form tag identifying which variant a FactorType
// holds.
type Kind string

const (
	KindTOTP         Kind = "totp"
	KindHOTP         Kind = "hotp"
	KindBiometric    Kind = "biometric"
	KindUserPresence Kind = "userPresence"
)

// TOTPFactorInfo is the payload of the totp variant. Period is in seconds
// and MUST lie in [10, 300] when constructed from a parsed otpauth URI
// (internal/otpauth enforces this at construction time).
type TOTPFactorInfo struct {
	ID        googleUuid.UUID            `json:"id"`
	Secret    string                     `json:"secret"`
	Digits    int                        `json:"digits"`
	Algorithm algorithm.SigningAlgorithm `json:"algorithm"`
	Period    int                        `json:"period"`
}

// HOTPFactorInfo is the payload of the hotp variant. Counter is monotonic
// and starts at 1 by default.
type HOTPFactorInfo struct {
	ID        googleUuid.UUID            `json:"id"`
	Secret    string                     `json:"secret"`
	Digits    int                        `json:"digits"`
	Algorithm algorithm.SigningAlgorithm `json:"algorithm"`
	Counter   uint64                     `json:"counter"`
}

// BiometricFactorInfo is the payload of the biometric variant. Name is the
// key-store label; DisplayName/ImageName are deliberately not struct
// fields — they are derived on every access from a static attribute source
// so they never participate in encoding (spec.md §8 "encoding omits
// derived fields").
type BiometricFactorInfo struct {
	ID        googleUuid.UUID            `json:"id"`
	Name      string                     `json:"name"`
	Algorithm algorithm.SigningAlgorithm `json:"algorithm"`
}

// UserPresenceFactorInfo is the payload of the userPresence variant.
type UserPresenceFactorInfo struct {
	ID        googleUuid.UUID            `json:"id"`
	Name      string                     `json:"name"`
	Algorithm algorithm.SigningAlgorithm `json:"algorithm"`
}

const (
	biometricDisplayName    = "Face ID"
	biometricImageName      = "hand.tap"
	userPresenceDisplayName = "User presence"
	userPresenceImageName   = "hand.raised"
)

func (i BiometricFactorInfo) displayName() string { return biometricDisplayName }
func (i BiometricFactorInfo) imageName() string    { return biometricImageName }

func (i UserPresenceFactorInfo) displayName() string { return userPresenceDisplayName }
func (i UserPresenceFactorInfo) imageName() string    { return userPresenceImageName }

func (i TOTPFactorInfo) displayName() string { return "Authenticator app (TOTP)" }
func (i TOTPFactorInfo) imageName() string    { return "clock" }

func (i HOTPFactorInfo) displayName() string { return "Authenticator app (HOTP)" }
func (i HOTPFactorInfo) imageName() string    { return "number" }

// FactorType is the tagged union; exactly one of the four fields is
// non-nil, matching Kind.
type FactorType struct {
	Kind         Kind
	TOTP         *TOTPFactorInfo
	HOTP         *HOTPFactorInfo
	Biometric    *BiometricFactorInfo
	UserPresence *UserPresenceFactorInfo
}

func NewTOTP(info TOTPFactorInfo) FactorType { return FactorType{Kind: KindTOTP, TOTP: &info} }
func NewHOTP(info HOTPFactorInfo) FactorType { return FactorType{Kind: KindHOTP, HOTP: &info} }

func NewBiometric(info BiometricFactorInfo) FactorType {
	return FactorType{Kind: KindBiometric, Biometric: &info}
}

func NewUserPresence(info UserPresenceFactorInfo) FactorType {
	return FactorType{Kind: KindUserPresence, UserPresence: &info}
}

// Factor is the erased capability ValueOf exposes — the common surface
// every variant shares, replacing dynamic member access on the tagged
// union (spec.md §9 "Dynamic member access on FactorType").
type Factor interface {
	ID() googleUuid.UUID
	DisplayName() string
	ImageName() string
}

type erasedFactor struct {
	id          googleUuid.UUID
	displayName string
	imageName   string
}

func (f erasedFactor) ID() googleUuid.UUID  { return f.id }
func (f erasedFactor) DisplayName() string  { return f.displayName }
func (f erasedFactor) ImageName() string    { return f.imageName }

// ValueOf erases the variant tag, exposing the common {id, display_name,
// image_name} capability regardless of which variant f holds.
func ValueOf(f FactorType) Factor {
	switch f.Kind {
	case KindTOTP:
		return erasedFactor{id: f.TOTP.ID, displayName: f.TOTP.displayName(), imageName: f.TOTP.imageName()}
	case KindHOTP:
		return erasedFactor{id: f.HOTP.ID, displayName: f.HOTP.displayName(), imageName: f.HOTP.imageName()}
	case KindBiometric:
		return erasedFactor{id: f.Biometric.ID, displayName: f.Biometric.displayName(), imageName: f.Biometric.imageName()}
	case KindUserPresence:
		return erasedFactor{id: f.UserPresence.ID, displayName: f.UserPresence.displayName(), imageName: f.UserPresence.imageName()}
	default:
		return erasedFactor{}
	}
}

// NameAndAlgorithm returns the key-store label and signing hash for
// biometric/userPresence factors, and ok=false for totp/hotp — it is the
// sole supported handle for locating the backing key-store entry.
func NameAndAlgorithm(f FactorType) (name string, alg algorithm.SigningAlgorithm, ok bool) {
	switch f.Kind {
	case KindBiometric:
		return f.Biometric.Name, f.Biometric.Algorithm, true
	case KindUserPresence:
		return f.UserPresence.Name, f.UserPresence.Algorithm, true
	default:
		return "", "", false
	}
}

// KeyLabel returns the key-store label (aka "name") for biometric/
// userPresence, and ok=false for totp/hotp.
func KeyLabel(f FactorType) (name string, ok bool) {
	name, _, ok = NameAndAlgorithm(f)

	return name, ok
}

// MarshalJSON encodes f as the single-key tagged object spec.md §3
// describes: {"<kind>": <variant payload>}.
func (f FactorType) MarshalJSON() ([]byte, error) {
	var payload any

	switch f.Kind {
	case KindTOTP:
		payload = f.TOTP
	case KindHOTP:
		payload = f.HOTP
	case KindBiometric:
		payload = f.Biometric
	case KindUserPresence:
		payload = f.UserPresence
	default:
		return nil, apperr.DataCorrupted("No valid factor type found.")
	}

	return json.Marshal(map[string]any{string(f.Kind): payload})
}

// UnmarshalJSON decodes the single-key tagged object. An empty object, or
// an object with none of the four known keys, fails with the fixed
// diagnostic "No valid factor type found." (spec.md §3, §8 scenario 5).
func (f *FactorType) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return apperr.DataDecodingFailed(err)
	}

	if v, ok := raw[string(KindTOTP)]; ok {
		var info TOTPFactorInfo
		if err := json.Unmarshal(v, &info); err != nil {
			return apperr.DataDecodingFailed(err)
		}

		*f = FactorType{Kind: KindTOTP, TOTP: &info}

		return nil
	}

	if v, ok := raw[string(KindHOTP)]; ok {
		var info HOTPFactorInfo
		if err := json.Unmarshal(v, &info); err != nil {
			return apperr.DataDecodingFailed(err)
		}

		*f = FactorType{Kind: KindHOTP, HOTP: &info}

		return nil
	}

	if v, ok := raw[string(KindBiometric)]; ok {
		var info BiometricFactorInfo
		if err := json.Unmarshal(v, &info); err != nil {
			return apperr.DataDecodingFailed(err)
		}

		*f = FactorType{Kind: KindBiometric, Biometric: &info}

		return nil
	}

	if v, ok := raw[string(KindUserPresence)]; ok {
		var info UserPresenceFactorInfo
		if err := json.Unmarshal(v, &info); err != nil {
			return apperr.DataDecodingFailed(err)
		}

		*f = FactorType{Kind: KindUserPresence, UserPresence: &info}

		return nil
	}

	return apperr.DataCorrupted("No valid factor type found.")
}
