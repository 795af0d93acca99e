// Copyright (c) 2025 Justin Cranford

// Package authenticator implements the persisted authenticator descriptor:
// the aggregate of service endpoints, OAuth token, theme, and enrolled
// factors. It models the two concrete variants (cloud, on-premise) behind
// a shared capability interface, per spec.md §9's "Polymorphic
// authenticator" design note.
package authenticator

import (
	"encoding/json"
	"time"

	googleUuid "github.com/google/uuid"

	"mfacore/internal/apperr"
	"mfacore/internal/factor"
)

// Token is the OAuth access/refresh token held by an authenticator,
// generalizing the teacher repo's domain.Token to the fields this spec
// names: access/refresh/expiry/extra-data (spec.md §3, §9).
type Token struct {
	AccessToken    string         `json:"accessToken"`
	RefreshToken   string         `json:"refreshToken"`
	ExpiresAt      time.Time      `json:"expiresAt"`
	AdditionalData map[string]any `json:"additionalData,omitempty"`
}

// AuthorizationHeader returns the bearer Authorization header value used
// on enrollment/finalize requests (spec.md §4.4 step 7).
func (t Token) AuthorizationHeader() string { return "Bearer " + t.AccessToken }

// IsExpired reports whether the token's ExpiresAt has passed.
func (t Token) IsExpired() bool { return time.Now().UTC().After(t.ExpiresAt) }

// AuthenticatorIDFromAdditionalData extracts the on-premise
// "authenticator_id" additional-data field, a string per spec.md §4.5.
func (t Token) AuthenticatorIDFromAdditionalData() (string, bool) {
	v, ok := t.AdditionalData["authenticator_id"]
	if !ok {
		return "", false
	}

	s, ok := v.(string)

	return s, ok
}

// Authenticator is the capability shared by both concrete variants,
// replacing the source's protocol hierarchy with a Go interface
// (spec.md §9).
type Authenticator interface {
	ID() string
	ServiceName() string
	AccountName() string
	SetAccountName(name string)
	Token() Token
	SetToken(t Token)
	Theme() map[string]string
	Biometric() (factor.BiometricFactorInfo, bool)
	UserPresence() (factor.UserPresenceFactorInfo, bool)
	// EnrolledFactors is the derived, order-independent set formed by
	// wrapping whichever of Biometric/UserPresence are present into their
	// corresponding FactorType — spec.md §3 "Derived property".
	EnrolledFactors() []factor.FactorType
}

// CloudAuthenticator is the cloud-variant persisted record (spec.md §3,
// §4.4 finalize).
type CloudAuthenticator struct {
	IDValue           string                            `json:"id"`
	AccountNameValue  string                            `json:"accountName"`
	ServiceNameValue  string                             `json:"serviceName"`
	TokenValue        Token                              `json:"token"`
	RefreshURI        string                             `json:"refreshUri"`
	TransactionURI    string                             `json:"transactionUri"`
	ThemeValue        map[string]string                  `json:"theme,omitempty"`
	CustomAttributes  map[string]string                  `json:"customAttributes,omitempty"`
	Certificate       string                             `json:"certificate,omitempty"` // base64 X.509, certificate pinning
	BiometricFactor    *factor.BiometricFactorInfo       `json:"biometric,omitempty"`
	UserPresenceFactor *factor.UserPresenceFactorInfo    `json:"userPresence,omitempty"`
}

var _ Authenticator = (*CloudAuthenticator)(nil)

func (a *CloudAuthenticator) ID() string               { return a.IDValue }
func (a *CloudAuthenticator) ServiceName() string      { return a.ServiceNameValue }
func (a *CloudAuthenticator) AccountName() string      { return a.AccountNameValue }
func (a *CloudAuthenticator) SetAccountName(name string) { a.AccountNameValue = name }
func (a *CloudAuthenticator) Token() Token             { return a.TokenValue }
func (a *CloudAuthenticator) SetToken(t Token)         { a.TokenValue = t }
func (a *CloudAuthenticator) Theme() map[string]string { return a.ThemeValue }

func (a *CloudAuthenticator) Biometric() (factor.BiometricFactorInfo, bool) {
	if a.BiometricFactor == nil {
		return factor.BiometricFactorInfo{}, false
	}

	return *a.BiometricFactor, true
}

func (a *CloudAuthenticator) UserPresence() (factor.UserPresenceFactorInfo, bool) {
	if a.UserPresenceFactor == nil {
		return factor.UserPresenceFactorInfo{}, false
	}

	return *a.UserPresenceFactor, true
}

func (a *CloudAuthenticator) EnrolledFactors() []factor.FactorType {
	return enrolledFactors(a)
}

// OnPremiseAuthenticator is the on-premise-variant persisted record
// (spec.md §3, §4.5 finalize).
type OnPremiseAuthenticator struct {
	IDValue            string                         `json:"id"`
	AccountNameValue   string                         `json:"accountName"`
	ServiceNameValue   string                         `json:"serviceName"`
	TokenValue         Token                          `json:"token"`
	AuthnTrxnEndpoint  string                         `json:"authntrxnEndpoint"`
	QRLoginEndpoint    string                         `json:"qrLoginEndpoint,omitempty"`
	TokenEndpoint      string                         `json:"tokenEndpoint,omitempty"`
	ThemeValue         map[string]string              `json:"theme,omitempty"`
	TrustAllTLS        bool                           `json:"trustAllTLS"`
	ClientID           string                         `json:"clientId"`
	BiometricFactor    *factor.BiometricFactorInfo    `json:"biometric,omitempty"`
	UserPresenceFactor *factor.UserPresenceFactorInfo `json:"userPresence,omitempty"`
}

var _ Authenticator = (*OnPremiseAuthenticator)(nil)

func (a *OnPremiseAuthenticator) ID() string                 { return a.IDValue }
func (a *OnPremiseAuthenticator) ServiceName() string        { return a.ServiceNameValue }
func (a *OnPremiseAuthenticator) AccountName() string        { return a.AccountNameValue }
func (a *OnPremiseAuthenticator) SetAccountName(name string) { a.AccountNameValue = name }
func (a *OnPremiseAuthenticator) Token() Token               { return a.TokenValue }
func (a *OnPremiseAuthenticator) SetToken(t Token)           { a.TokenValue = t }
func (a *OnPremiseAuthenticator) Theme() map[string]string   { return a.ThemeValue }

func (a *OnPremiseAuthenticator) Biometric() (factor.BiometricFactorInfo, bool) {
	if a.BiometricFactor == nil {
		return factor.BiometricFactorInfo{}, false
	}

	return *a.BiometricFactor, true
}

func (a *OnPremiseAuthenticator) UserPresence() (factor.UserPresenceFactorInfo, bool) {
	if a.UserPresenceFactor == nil {
		return factor.UserPresenceFactorInfo{}, false
	}

	return *a.UserPresenceFactor, true
}

func (a *OnPremiseAuthenticator) EnrolledFactors() []factor.FactorType {
	return enrolledFactors(a)
}

// enrolledFactors realizes spec.md §3's derived property: the
// order-independent set formed from whichever of biometric/userPresence
// are present, wrapped as FactorType — eliminating branching at lookup
// sites (spec.md §3, tested in TestEnrolledFactors_* in this package).
func enrolledFactors(a Authenticator) []factor.FactorType {
	var out []factor.FactorType

	if bio, ok := a.Biometric(); ok {
		out = append(out, factor.NewBiometric(bio))
	}

	if up, ok := a.UserPresence(); ok {
		out = append(out, factor.NewUserPresence(up))
	}

	return out
}

// Decode deserializes a persisted authenticator record, trying the cloud
// shape then the on-premise shape, per spec.md §6 "the host tries each in
// order".
func Decode(data []byte) (Authenticator, error) {
	var cloud CloudAuthenticator
	if err := json.Unmarshal(data, &cloud); err == nil && cloud.IDValue != "" && cloud.TransactionURI != "" {
		return &cloud, nil
	}

	var onprem OnPremiseAuthenticator
	if err := json.Unmarshal(data, &onprem); err == nil && onprem.IDValue != "" && onprem.AuthnTrxnEndpoint != "" {
		return &onprem, nil
	}

	return nil, apperr.DataDecodingFailed(errNeitherVariantMatched)
}

var errNeitherVariantMatched = decodeError("authenticator record matches neither the cloud nor on-premise shape")

type decodeError string

func (e decodeError) Error() string { return string(e) }

// NewID mints a fresh authenticator-scoped id using
// UUIDv7 so ids sort by creation time, matching the teacher's
// `googleUuid.NewV7()` convention for every BeforeCreate hook.
func NewID() string { return googleUuid.Must(googleUuid.NewV7()).String() }
