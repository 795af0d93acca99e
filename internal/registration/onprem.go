// Copyright (c) 2025 Justin Cranford

package registration

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	googleUuid "github.com/google/uuid"

	"mfacore/internal/algorithm"
	"mfacore/internal/apperr"
	"mfacore/internal/authenticator"
	"mfacore/internal/biometry"
	"mfacore/internal/factor"
	"mfacore/internal/httpclient"
	"mfacore/internal/keystore"
	"mfacore/internal/rsacrypto"
)

// onPremDiscoveryResponse is the initiation payload fetched from
// detailsURL (spec.md §4.5 "Discovery", wire shape spec.md §6).
type onPremDiscoveryResponse struct {
	AuthnTrxnEndpoint  string         `json:"authntrxn_endpoint"`
	Metadata           onPremMetadata `json:"metadata"`
	Mechanisms         []string       `json:"discovery_mechanisms"`
	EnrollmentEndpoint string         `json:"enrollment_endpoint"`
	QRLoginEndpoint    string         `json:"qrlogin_endpoint"`
	Version            string         `json:"version"`
	TokenEndpoint      string         `json:"token_endpoint"`
}

type onPremMetadata struct {
	ServiceName string            `json:"service_name"`
	Theme       map[string]string `json:"theme,omitempty"`
}

const (
	urnMobileUserApprovalFingerprint  = "urn:ibm:security:authentication:asf:mechanism:mobile_user_approval:fingerprint"
	urnMobileUserApprovalUserPresence = "urn:ibm:security:authentication:asf:mechanism:mobile_user_approval:user_presence"

	// preferredOnPremAlgorithm is the fixed default spec.md §4.5 assigns to
	// every discovered method; the server's discovery document carries no
	// per-mechanism algorithm to read.
	preferredOnPremAlgorithm = algorithm.SHA512

	// onPremAdditionalDataCap bounds how many entries of the caller-supplied
	// additionalData map are considered during the OAuth exchange
	// (spec.md §4.5).
	onPremAdditionalDataCap = 10
)

func (d onPremDiscoveryResponse) canEnrollBiometric() bool {
	return slices.Contains(d.Mechanisms, urnMobileUserApprovalFingerprint)
}

func (d onPremDiscoveryResponse) canEnrollUserPresence() bool {
	return slices.Contains(d.Mechanisms, urnMobileUserApprovalUserPresence)
}

// mergeOnPremAdditionalData folds extra into base, retaining any key
// already present in base and examining at most the first
// onPremAdditionalDataCap entries of extra (spec.md §4.5: "additionalData
// is merged in, retaining existing keys, capped at the first 10 incoming
// entries"). Go maps carry no iteration order, so "first" is best-effort.
func mergeOnPremAdditionalData(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+onPremAdditionalDataCap)

	for k, v := range base {
		out[k] = v
	}

	examined := 0

	for k, v := range extra {
		if examined >= onPremAdditionalDataCap {
			break
		}

		examined++

		if _, exists := out[k]; exists {
			continue
		}

		out[k] = v
	}

	return out
}

// scimAttributePath builds the SCIM PatchOp attribute path for subType
// (spec.md §4.5/§6): urn:ietf:params:scim:schemas:extension:isam:1.0:MMFA:Authenticator:{subType}Methods.
func scimAttributePath(subType string) string {
	return "urn:ietf:params:scim:schemas:extension:isam:1.0:MMFA:Authenticator:" + subType + "Methods"
}

// OnPremiseProvider is the on-premise variant of spec.md §4.5.
type OnPremiseProvider struct {
	deps Deps

	bootstrap onPremiseBootstrap

	discovery *onPremDiscoveryResponse
	token     authenticator.Token

	accountName string
	pushToken   string

	biometricFactor    *factor.BiometricFactorInfo
	userPresenceFactor *factor.UserPresenceFactorInfo
}

var _ Provider = (*OnPremiseProvider)(nil)

func newOnPremiseProvider(bootstrap onPremiseBootstrap, deps Deps) *OnPremiseProvider {
	return &OnPremiseProvider{deps: deps, bootstrap: bootstrap}
}

// Domain returns the host derived from detailsURL, the side-channel
// attribute of spec.md §4.3.
func (p *OnPremiseProvider) Domain() string { return domain("", p.bootstrap.DetailsURL) }

// TrustAllTLS reports the derived "ignoreSslCerts=true" flag from the
// bootstrap's options string (spec.md §4.3).
func (p *OnPremiseProvider) TrustAllTLS() bool { return ignoreSSLCertificate(p.bootstrap.Options) }

// CanEnrollBiometric reports whether the discovery document advertised the
// fingerprint mobile_user_approval mechanism (spec.md §4.5 "Derived flags").
func (p *OnPremiseProvider) CanEnrollBiometric() bool {
	if p.discovery == nil {
		return false
	}

	return p.discovery.canEnrollBiometric()
}

// CanEnrollUserPresence is the analogous pre-check for user presence.
func (p *OnPremiseProvider) CanEnrollUserPresence() bool {
	if p.discovery == nil {
		return false
	}

	return p.discovery.canEnrollUserPresence()
}

// Initiate fetches the discovery document, then exchanges the bootstrap
// code for an OAuth token via the oauth capability, per spec.md §4.5
// "Initiate algorithm".
func (p *OnPremiseProvider) Initiate(ctx context.Context, accountName, pushToken string, additionalData map[string]string) error {
	ctx, span := p.deps.Telemetry.Tracer("registration/onprem").Start(ctx, "OnPremiseProvider.Initiate")
	defer span.End()

	p.accountName = accountName
	p.pushToken = pushToken

	resp, err := p.deps.HTTP.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    p.bootstrap.DetailsURL,
	})
	if err != nil {
		return err
	}

	if !resp.IsSuccess() {
		return apperr.DataInitializationFailed(fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode))
	}

	var discovery onPremDiscoveryResponse
	if err := resp.Decode(&discovery); err != nil {
		return apperr.DataInitializationFailed(err)
	}

	p.discovery = &discovery

	tenantID := googleUuid.Must(googleUuid.NewV7()).String()

	extraParams := mergeOnPremAdditionalData(map[string]string{
		"tenant_id":    tenantID,
		"account_name": accountName,
		"push_token":   pushToken,
	}, stripApplicationName(additionalData))

	oauthToken, err := p.deps.OAuth.Exchange(ctx, p.bootstrap.Code, []string{"mmfaAuthn"}, extraParams)
	if err != nil {
		return apperr.DataInitializationFailed(err)
	}

	p.token = authenticator.Token{
		AccessToken:    oauthToken.AccessToken,
		RefreshToken:   oauthToken.RefreshToken,
		ExpiresAt:      time.Now().UTC().Add(time.Duration(oauthToken.ExpiresIn) * time.Second),
		AdditionalData: oauthToken.AdditionalData,
	}

	if _, ok := p.token.AuthenticatorIDFromAdditionalData(); !ok {
		return apperr.MissingAuthenticatorIdentifier()
	}

	p.deps.Telemetry.Slogger.DebugContext(ctx, "on-premise registration initiated", "tenantId", tenantID)

	return nil
}

// EnrollUserPresence implements spec.md §4.5 "Enroll user presence".
func (p *OnPremiseProvider) EnrollUserPresence(ctx context.Context) error {
	return p.performSCIMEnrollment(ctx, urnMobileUserApprovalUserPresence, subTypeUserPresence)
}

// EnrollBiometric implements spec.md §4.5 "Enroll biometric": the
// on-premise server does not distinguish face from fingerprint, so both
// biometry subtypes enroll under the single "fingerprint" subType.
func (p *OnPremiseProvider) EnrollBiometric(ctx context.Context) error {
	ctx, span := p.deps.Telemetry.Tracer("registration/onprem").Start(ctx, "OnPremiseProvider.EnrollBiometric")
	defer span.End()

	canEvaluate, err := p.deps.Biometry.CanEvaluate(ctx, biometry.PolicyDeviceOwnerAuthenticationWithBiometrics)
	if err != nil {
		return apperr.BiometryFailed(err.Error())
	}

	if !canEvaluate {
		return apperr.BiometryFailed("biometry is not available on this device")
	}

	subtype, err := p.deps.Biometry.Evaluate(ctx, biometry.PolicyDeviceOwnerAuthenticationWithBiometrics)
	if err != nil {
		return apperr.BiometryFailed(err.Error())
	}

	switch subtype {
	case biometry.SubtypeFaceID, biometry.SubtypeTouchID:
	default:
		return apperr.BiometryFailed("no biometry type available after authentication")
	}

	return p.performSCIMEnrollment(ctx, urnMobileUserApprovalFingerprint, subTypeFingerprint)
}

// performSCIMEnrollment implements spec.md §4.5's shared algorithm: confirm
// the mechanism was discovered, build an RSA key pair, persist the private
// key under the same label convention the cloud provider uses, PATCH the
// enrollment endpoint with a SCIM add operation carrying that label as its
// keyHandle, then mint a local factor id since the server never returns one.
func (p *OnPremiseProvider) performSCIMEnrollment(ctx context.Context, urn, subType string) error {
	ctx, span := p.deps.Telemetry.Tracer("registration/onprem").Start(ctx, "OnPremiseProvider.performSCIMEnrollment")
	defer span.End()

	if p.discovery == nil {
		return apperr.InvalidState()
	}

	if !slices.Contains(p.discovery.Mechanisms, urn) {
		return apperr.InvalidRegistrationData(nil)
	}

	keyPair, err := rsacrypto.GenerateKeyPair(rsacrypto.DefaultKeyBits)
	if err != nil {
		return err
	}

	publicKeyB64, err := rsacrypto.PublicKeyX509Base64(keyPair.Public)
	if err != nil {
		return err
	}

	keyLabel, err := p.savePrivateKey(ctx, subType, keyPair.Private)
	if err != nil {
		return err
	}

	path := scimAttributePath(subType)

	// Wire shape per spec.md §6 "On-premise enrollment request body": a
	// standard SCIM PatchOp adding one value object keyed by keyHandle.
	patchBody := map[string]any{
		"schemas": []string{"urn:ietf:params:scim:api:messages:2.0:PatchOp"},
		"Operations": []map[string]any{
			{
				"op":   "add",
				"path": path,
				"value": []map[string]any{
					{
						"enabled":   true,
						"keyHandle": keyLabel,
						"algorithm": algorithm.OnPremSpelling(preferredOnPremAlgorithm),
						"publicKey": publicKeyB64,
					},
				},
			},
		},
	}

	resp, err := p.deps.HTTP.Do(ctx, httpclient.Request{
		Method:  "PATCH",
		URL:     p.discovery.EnrollmentEndpoint + "?attributes=" + path,
		Headers: map[string]string{"Authorization": p.token.AuthorizationHeader()},
		Body:    patchBody,
	})
	if err != nil {
		return err
	}

	if !resp.IsSuccess() {
		return apperr.EnrollmentFailed(fmt.Sprintf("SCIM enrollment endpoint returned status %d", resp.StatusCode))
	}

	// The server does not return a factor id for the new entry
	// (spec.md §9 Open Question: on-premise enrollment id); the provider
	// mints one locally, used only for local correlation.
	id := googleUuid.Must(googleUuid.NewV7())

	switch subType {
	case subTypeFingerprint:
		p.biometricFactor = &factor.BiometricFactorInfo{ID: id, Name: keyLabel, Algorithm: preferredOnPremAlgorithm}
	default:
		p.userPresenceFactor = &factor.UserPresenceFactorInfo{ID: id, Name: keyLabel, Algorithm: preferredOnPremAlgorithm}
	}

	p.deps.Telemetry.Slogger.DebugContext(ctx, "on-premise factor enrolled", "subType", subType, "factorId", id.String())

	return nil
}

func (p *OnPremiseProvider) savePrivateKey(ctx context.Context, subType string, priv any) (string, error) {
	id := googleUuid.Must(googleUuid.NewV7()).String()

	access := keystore.AccessControlUserPresence
	suffix := keystore.UserPresenceLabelSuffix

	if subType != subTypeUserPresence {
		access = keystore.AccessControlBiometry
		suffix = keystore.BiometricLabelSuffix
	}

	label := id + suffix

	if err := p.deps.KeyStore.Store(ctx, label, priv, access); err != nil {
		return "", apperr.UnderlyingError(err)
	}

	return label, nil
}

// Finalize implements spec.md §4.5 "Finalize algorithm": mint the
// authnTrxn transaction URI by appending the authenticator id pulled from
// the OAuth token's additionalData. It does not call refresh.
func (p *OnPremiseProvider) Finalize(ctx context.Context) (authenticator.Authenticator, error) {
	_, span := p.deps.Telemetry.Tracer("registration/onprem").Start(ctx, "OnPremiseProvider.Finalize")
	defer span.End()

	if p.discovery == nil {
		return nil, apperr.InvalidState()
	}

	authenticatorID, ok := p.token.AuthenticatorIDFromAdditionalData()
	if !ok {
		return nil, apperr.MissingAuthenticatorIdentifier()
	}

	result := &authenticator.OnPremiseAuthenticator{
		IDValue:            authenticatorID,
		AccountNameValue:   p.accountName,
		ServiceNameValue:   p.discovery.Metadata.ServiceName,
		TokenValue:         p.token,
		AuthnTrxnEndpoint:  strings.TrimSuffix(p.discovery.AuthnTrxnEndpoint, "/") + "/" + authenticatorID,
		QRLoginEndpoint:    p.discovery.QRLoginEndpoint,
		TokenEndpoint:      p.discovery.TokenEndpoint,
		ThemeValue:         p.discovery.Metadata.Theme,
		TrustAllTLS:        p.TrustAllTLS(),
		ClientID:           p.bootstrap.ClientID,
		BiometricFactor:    p.biometricFactor,
		UserPresenceFactor: p.userPresenceFactor,
	}

	p.deps.Telemetry.Slogger.DebugContext(ctx, "on-premise registration finalized", "authenticatorId", result.IDValue)

	return result, nil
}
