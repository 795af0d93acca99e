// Copyright (c) 2025 Justin Cranford

package registration

import (
	"context"
	"crypto"
	"fmt"
	"net/http"
	"net/url"
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

// cloudAuthMethod is one entry of a cloud initialization response's
// authenticationMethods map (spec.md §6).
type cloudAuthMethod struct {
	EnrollmentURI string `json:"enrollmentUri"`
	Attributes    *struct {
		SupportedAlgorithms []string `json:"supportedAlgorithms"`
		Algorithm           string   `json:"algorithm"`
	} `json:"attributes"`
	Enabled bool `json:"enabled"`
}

// cloudInitiationResponse is the cloud initialization metadata shape
// (spec.md §6). The "totp" key is explicitly ignored wherever this map is
// consulted (discoveredMethods below), never surfaced to callers.
type cloudInitiationResponse struct {
	ExpiresIn int `json:"expiresIn"`
	Metadata  struct {
		AuthenticationMethods map[string]cloudAuthMethod `json:"authenticationMethods"`
		RegistrationURI       string                      `json:"registrationUri"`
		ServiceName           string                      `json:"serviceName"`
		Theme                 map[string]string           `json:"theme,omitempty"`
		CustomAttributes      map[string]string           `json:"customAttributes,omitempty"`
	} `json:"metadata"`
	ID           string                `json:"id"`
	AccessToken  string                `json:"accessToken"`
	Version      cloudBootstrapVersion `json:"version"`
	RefreshToken string                `json:"refreshToken"`
}

// cloudTokenWire is decoded from the very same response bytes as
// cloudInitiationResponse, per spec.md §4.4 "Response is decoded twice
// from the same bytes: once into the initialization info, once into the
// OAuth token."
type cloudTokenWire struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}

const (
	methodSignatureUserPresence = "signature_userPresence"
	methodSignatureFace         = "signature_face"
	methodSignatureFingerprint  = "signature_fingerprint"
	methodTOTP                  = "totp"

	subTypeUserPresence = "userPresence"
	subTypeFace         = "face"
	subTypeFingerprint  = "fingerprint"
)

// discoveredMethods filters the server-declared map down to the three keys
// this provider understands, explicitly dropping "totp" and anything else
// (spec.md §4.4 Discovery).
func (r cloudInitiationResponse) discoveredMethods() map[string]cloudAuthMethod {
	out := make(map[string]cloudAuthMethod, 3)

	for _, key := range []string{methodSignatureUserPresence, methodSignatureFace, methodSignatureFingerprint} {
		if m, ok := r.Metadata.AuthenticationMethods[key]; ok {
			out[key] = m
		}
	}

	return out
}

func (r cloudInitiationResponse) canEnrollBiometric() bool {
	methods := r.discoveredMethods()

	return methods[methodSignatureFace].Enabled || methods[methodSignatureFingerprint].Enabled
}

func (r cloudInitiationResponse) canEnrollUserPresence() bool {
	return r.discoveredMethods()[methodSignatureUserPresence].Enabled
}

// CloudProvider is the cloud variant of spec.md §4.4.
type CloudProvider struct {
	deps Deps

	bootstrap cloudBootstrap

	initInfo *cloudInitiationResponse
	token    authenticator.Token

	accountName string
	pushToken   string

	biometricFactor    *factor.BiometricFactorInfo
	userPresenceFactor *factor.UserPresenceFactorInfo
}

var _ Provider = (*CloudProvider)(nil)

func newCloudProvider(bootstrap cloudBootstrap, deps Deps) *CloudProvider {
	return &CloudProvider{deps: deps, bootstrap: bootstrap}
}

// Domain returns the host of registrationUri, the side-channel attribute
// of spec.md §4.3.
func (p *CloudProvider) Domain() string { return domain(p.bootstrap.RegistrationURI, "") }

// Initiate POSTs to {registrationUri}?skipTotpEnrollment=true and decodes
// the response twice, per spec.md §4.4 "Initiate protocol".
func (p *CloudProvider) Initiate(ctx context.Context, accountName, pushToken string, additionalData map[string]string) error {
	ctx, span := p.deps.Telemetry.Tracer("registration/cloud").Start(ctx, "CloudProvider.Initiate")
	defer span.End()

	p.accountName = accountName
	p.pushToken = pushToken

	body := map[string]any{
		"code": p.bootstrap.Code,
		"attributes": mergeAttributes(map[string]string{
			"accountName": accountName,
			"pushToken":   pushToken,
		}, stripApplicationName(additionalData)),
	}

	resp, err := p.deps.HTTP.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    p.bootstrap.RegistrationURI + "?skipTotpEnrollment=true",
		Body:   body,
	})
	if err != nil {
		return err
	}

	if !resp.IsSuccess() {
		return apperr.DataInitializationFailed(fmt.Errorf("registration endpoint returned status %d", resp.StatusCode))
	}

	var initInfo cloudInitiationResponse
	if err := resp.Decode(&initInfo); err != nil {
		return apperr.DataInitializationFailed(err)
	}

	var tokenWire cloudTokenWire
	if err := resp.Decode(&tokenWire); err != nil {
		return apperr.DataInitializationFailed(err)
	}

	p.initInfo = &initInfo
	p.token = authenticator.Token{
		AccessToken:  tokenWire.AccessToken,
		RefreshToken: tokenWire.RefreshToken,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(tokenWire.ExpiresIn) * time.Second),
	}

	p.deps.Telemetry.Slogger.DebugContext(ctx, "cloud registration initiated", "authenticatorId", initInfo.ID)

	return nil
}

// CanEnrollBiometric reports whether the server-discovered methods make a
// biometric enrollment possible, without attempting it (spec.md §4.4 step 1).
func (p *CloudProvider) CanEnrollBiometric() bool {
	if p.initInfo == nil {
		return false
	}

	return p.initInfo.canEnrollBiometric()
}

// CanEnrollUserPresence is the analogous pre-check for user presence.
func (p *CloudProvider) CanEnrollUserPresence() bool {
	if p.initInfo == nil {
		return false
	}

	return p.initInfo.canEnrollUserPresence()
}

// EnrollUserPresence implements spec.md §4.4 "Enroll user presence".
func (p *CloudProvider) EnrollUserPresence(ctx context.Context) error {
	return p.performSignatureEnrollment(ctx, methodSignatureUserPresence, subTypeUserPresence)
}

// EnrollBiometric implements spec.md §4.4 "Enroll biometric".
func (p *CloudProvider) EnrollBiometric(ctx context.Context) error {
	ctx, span := p.deps.Telemetry.Tracer("registration/cloud").Start(ctx, "CloudProvider.EnrollBiometric")
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

	var methodKey, subType string

	switch subtype {
	case biometry.SubtypeFaceID:
		methodKey, subType = methodSignatureFace, subTypeFace
	case biometry.SubtypeTouchID:
		methodKey, subType = methodSignatureFingerprint, subTypeFingerprint
	default:
		return apperr.BiometryFailed("no biometry type available after authentication")
	}

	return p.performSignatureEnrollment(ctx, methodKey, subType)
}

// performSignatureEnrollment implements spec.md §4.4's shared algorithm
// for both EnrollUserPresence and EnrollBiometric.
func (p *CloudProvider) performSignatureEnrollment(ctx context.Context, methodKey, subType string) error {
	ctx, span := p.deps.Telemetry.Tracer("registration/cloud").Start(ctx, "CloudProvider.performSignatureEnrollment")
	defer span.End()

	if p.initInfo == nil {
		return apperr.InvalidState()
	}

	method, ok := p.initInfo.discoveredMethods()[methodKey]
	if !ok {
		return apperr.InvalidRegistrationData(nil)
	}

	if !method.Enabled {
		return apperr.SignatureMethodNotEnabled(subType)
	}

	if method.Attributes == nil {
		return apperr.InvalidRegistrationData(nil)
	}

	preferredAlgorithm, err := algorithm.Parse(method.Attributes.Algorithm)
	if err != nil {
		return err
	}

	keyPair, err := rsacrypto.GenerateKeyPair(rsacrypto.DefaultKeyBits)
	if err != nil {
		return err
	}

	signedChallenge, err := rsacrypto.SignBase64URL(keyPair.Private, preferredAlgorithm, []byte(p.initInfo.ID))
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

	enrollmentBody := []map[string]any{
		{
			"subType": subType,
			"enabled": true,
			"attributes": map[string]any{
				"signedData":      signedChallenge,
				"publicKey":       publicKeyB64,
				"deviceSecurity":  subType != subTypeUserPresence,
				"algorithm":       algorithm.CloudSpelling(preferredAlgorithm),
				"additionalData":  []map[string]string{{"name": "name", "value": keyLabel}},
			},
		},
	}

	resp, err := p.deps.HTTP.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		URL:     method.EnrollmentURI,
		Headers: map[string]string{"Authorization": p.token.AuthorizationHeader()},
		Body:    enrollmentBody,
	})
	if err != nil {
		return err
	}

	if !resp.IsSuccess() {
		return apperr.EnrollmentFailed(fmt.Sprintf("enrollment endpoint returned status %d", resp.StatusCode))
	}

	var enrolled []struct {
		SubType string `json:"subType"`
		ID      string `json:"id"`
	}
	if err := resp.Decode(&enrolled); err != nil {
		return apperr.DataDecodingFailed(err)
	}

	var factorID string

	found := false

	for _, e := range enrolled {
		if e.SubType == subType {
			factorID = e.ID
			found = true

			break
		}
	}

	if !found {
		return apperr.EnrollmentFailed("no enrollment response element matched the requested subType")
	}

	switch subType {
	case subTypeFace, subTypeFingerprint:
		id, _ := googleUuid.Parse(factorID) //nolint:errcheck // server ids are opaque strings; zero UUID on non-UUID id is acceptable
		p.biometricFactor = &factor.BiometricFactorInfo{ID: id, Name: keyLabel, Algorithm: preferredAlgorithm}
	default:
		id, _ := googleUuid.Parse(factorID) //nolint:errcheck // see above
		p.userPresenceFactor = &factor.UserPresenceFactorInfo{ID: id, Name: keyLabel, Algorithm: preferredAlgorithm}
	}

	p.deps.Telemetry.Slogger.DebugContext(ctx, "cloud factor enrolled", "subType", subType, "factorId", factorID)

	return nil
}

// savePrivateKey persists priv via the key-store capability under the
// UUID-suffixed label convention spec.md §9 requires, gated by biometry
// for deviceSecurity factors and by user presence otherwise.
func (p *CloudProvider) savePrivateKey(ctx context.Context, subType string, priv crypto.PrivateKey) (string, error) {
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

// Finalize implements spec.md §4.4 "Finalize algorithm".
func (p *CloudProvider) Finalize(ctx context.Context) (authenticator.Authenticator, error) {
	ctx, span := p.deps.Telemetry.Tracer("registration/cloud").Start(ctx, "CloudProvider.Finalize")
	defer span.End()

	if p.initInfo == nil {
		return nil, apperr.InvalidState()
	}

	if p.token.RefreshToken == "" {
		return nil, apperr.TokenNotFound()
	}

	body := map[string]any{
		"refreshToken": p.token.RefreshToken,
		"attributes": map[string]string{
			"accountName": p.accountName,
			"pushToken":   p.pushToken,
		},
	}

	resp, err := p.deps.HTTP.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		URL:     p.bootstrap.RegistrationURI + "?metadataInResponse=false",
		Headers: map[string]string{"Authorization": p.token.AuthorizationHeader()},
		Body:    body,
	})
	if err != nil {
		return nil, err
	}

	if !resp.IsSuccess() {
		return nil, apperr.DataInitializationFailed(fmt.Errorf("finalize endpoint returned status %d", resp.StatusCode))
	}

	var tokenWire cloudTokenWire
	if err := resp.Decode(&tokenWire); err != nil {
		return nil, apperr.DataDecodingFailed(err)
	}

	newToken := authenticator.Token{
		AccessToken:  tokenWire.AccessToken,
		RefreshToken: tokenWire.RefreshToken,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(tokenWire.ExpiresIn) * time.Second),
	}

	transactionURI, err := deriveTransactionURI(p.bootstrap.RegistrationURI, p.initInfo.ID)
	if err != nil {
		return nil, err
	}

	result := &authenticator.CloudAuthenticator{
		IDValue:            p.initInfo.ID,
		AccountNameValue:   p.accountName,
		ServiceNameValue:   p.initInfo.Metadata.ServiceName,
		TokenValue:         newToken,
		RefreshURI:         p.bootstrap.RegistrationURI,
		TransactionURI:     transactionURI,
		ThemeValue:         p.initInfo.Metadata.Theme,
		CustomAttributes:   p.initInfo.Metadata.CustomAttributes,
		BiometricFactor:    p.biometricFactor,
		UserPresenceFactor: p.userPresenceFactor,
	}

	p.deps.Telemetry.Slogger.DebugContext(ctx, "cloud registration finalized", "authenticatorId", result.IDValue)

	return result, nil
}

// deriveTransactionURI replaces the last path segment "registration" in
// registrationURI with "{id}/verifications" (spec.md §4.4 step 3).
func deriveTransactionURI(registrationURI, id string) (string, error) {
	u, err := url.Parse(registrationURI)
	if err != nil {
		return "", apperr.UnderlyingError(err)
	}

	segments := strings.Split(strings.TrimSuffix(u.Path, "/"), "/")
	if len(segments) == 0 || segments[len(segments)-1] != "registration" {
		return "", apperr.InvalidRegistrationData(fmt.Errorf("registrationUri %q does not end in /registration", registrationURI))
	}

	segments[len(segments)-1] = id + "/verifications"
	u.Path = strings.Join(segments, "/")

	return u.String(), nil
}

func mergeAttributes(base map[string]string, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))

	for k, v := range base {
		out[k] = v
	}

	for k, v := range extra {
		out[k] = v
	}

	return out
}

// InitiateInApp performs the separate in-app initiation helper of spec.md
// §4.4: POST {clientId, accountName} with a pre-existing bearer token to
// initiationURL, returning the raw JSON response body to be fed back into
// Controller.Initiate.
func InitiateInApp(ctx context.Context, client httpclient.Client, initiationURL, bearerToken, clientID, accountName string) (string, error) {
	resp, err := client.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		URL:     initiationURL,
		Headers: map[string]string{"Authorization": "Bearer " + bearerToken},
		Body:    map[string]string{"clientId": clientID, "accountName": accountName},
	})
	if err != nil {
		return "", err
	}

	if !resp.IsSuccess() {
		return "", apperr.DataInitializationFailed(fmt.Errorf("in-app initiation endpoint returned status %d", resp.StatusCode))
	}

	return string(resp.Body), nil
}
