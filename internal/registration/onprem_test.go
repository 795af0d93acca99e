// Copyright (c) 2025 Justin Cranford

package registration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"mfacore/internal/apperr"
	"mfacore/internal/biometry"
	"mfacore/internal/httpclient"
	"mfacore/internal/oauthcap"
	"mfacore/internal/registration"
	"mfacore/internal/telemetry"
)

func onPremBootstrapJSON(detailsURL string) string {
	bootstrap, _ := json.Marshal(map[string]any{
		"code":        "c1",
		"options":     "ignoreSslCerts=true",
		"details_url": detailsURL,
		"version":     1,
		"client_id":   "client-1",
	})

	return string(bootstrap)
}

func onPremDiscoveryPayload(enrollmentEndpoint string, mechanisms ...string) map[string]any {
	return map[string]any{
		"authntrxn_endpoint":  "https://server/mga/sps/mmfa/user/mgmt/authntrxn",
		"enrollment_endpoint": enrollmentEndpoint,
		"qrlogin_endpoint":    "https://server/mga/sps/mmfa/user/mgmt/qrlogin",
		"token_endpoint":      "https://server/mga/sps/mmfa/user/mgmt/token",
		"version":             "1",
		"metadata": map[string]any{
			"service_name": "Savings Account Service",
		},
		"discovery_mechanisms": mechanisms,
	}
}

// TestOnPremiseHappyPath exercises discovery, OAuth exchange, user-presence
// SCIM enrollment, and finalize end to end, pinning the exact wire shapes
// spec.md §4.5/§6 mandate.
func TestOnPremiseHappyPath(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()

	var enrollmentEndpoint string

	mux.HandleFunc("/discover", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(onPremDiscoveryPayload(
			enrollmentEndpoint,
			"urn:ibm:security:authentication:asf:mechanism:mobile_user_approval:user_presence",
		))
	})

	mux.HandleFunc("/scim", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "urn:ietf:params:scim:schemas:extension:isam:1.0:MMFA:Authenticator:userPresenceMethods", r.URL.Query().Get("attributes"))

		var body map[string]any

		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, []any{"urn:ietf:params:scim:api:messages:2.0:PatchOp"}, body["schemas"])

		ops, ok := body["Operations"].([]any)
		require.True(t, ok)
		require.Len(t, ops, 1)

		op, ok := ops[0].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "add", op["op"])
		require.Equal(t, "urn:ietf:params:scim:schemas:extension:isam:1.0:MMFA:Authenticator:userPresenceMethods", op["path"])

		values, ok := op["value"].([]any)
		require.True(t, ok)
		require.Len(t, values, 1)

		value, ok := values[0].(map[string]any)
		require.True(t, ok)
		require.Equal(t, true, value["enabled"])
		require.Equal(t, "SHA512withRSA", value["algorithm"])
		require.NotEmpty(t, value["keyHandle"])
		require.NotEmpty(t, value["publicKey"])
		require.NotContains(t, value, "signedData")
		require.NotContains(t, value, "deviceSecurity")

		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	enrollmentEndpoint = srv.URL + "/scim"

	oauth := &fakeOAuth{token: oauthcap.Token{AccessToken: "a", RefreshToken: "r", AdditionalData: map[string]any{"authenticator_id": "auth-42"}}}

	deps := registration.Deps{
		HTTP:      httpclient.New(false),
		KeyStore:  newFakeKeyStore(),
		Biometry:  &fakeBiometry{},
		OAuth:     oauth,
		Telemetry: telemetry.NewForTest("onprem-happy"),
	}

	provider, err := registration.NewController(deps).Initiate(context.Background(), onPremBootstrapJSON(srv.URL+"/discover"), "acct", "push-1", map[string]string{"applicationName": "demo", "deviceModel": "pixel"})
	require.NoError(t, err)

	onprem, ok := provider.(*registration.OnPremiseProvider)
	require.True(t, ok)
	require.True(t, onprem.CanEnrollUserPresence())
	require.False(t, onprem.CanEnrollBiometric())

	require.Equal(t, []string{"mmfaAuthn"}, oauth.lastScopes)
	require.Equal(t, "c1", oauth.lastCode)
	require.Equal(t, "acct", oauth.lastExtraParams["account_name"])
	require.Equal(t, "push-1", oauth.lastExtraParams["push_token"])
	require.Equal(t, "pixel", oauth.lastExtraParams["deviceModel"])
	require.NotContains(t, oauth.lastExtraParams, "applicationName")
	require.NotEmpty(t, oauth.lastExtraParams["tenant_id"])

	require.NoError(t, provider.EnrollUserPresence(context.Background()))

	result, err := provider.Finalize(context.Background())
	require.NoError(t, err)
	require.Equal(t, "auth-42", result.ID())
	require.Equal(t, "Savings Account Service", result.ServiceName())

	up, ok := result.UserPresence()
	require.True(t, ok)
	require.NotEmpty(t, up.Name)
}

// TestOnPremiseEnrollBiometric_MapsBothSubtypesToFingerprint reproduces
// spec.md §4.5: the on-premise server does not distinguish faceID from
// touchID, so both enroll under the single "fingerprint" SCIM subType.
func TestOnPremiseEnrollBiometric_MapsBothSubtypesToFingerprint(t *testing.T) {
	t.Parallel()

	for _, subtype := range []biometry.Subtype{biometry.SubtypeFaceID, biometry.SubtypeTouchID} {
		subtype := subtype

		t.Run(string(subtype), func(t *testing.T) {
			t.Parallel()

			mux := http.NewServeMux()

			var enrollmentEndpoint string

			mux.HandleFunc("/discover", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(onPremDiscoveryPayload(
					enrollmentEndpoint,
					"urn:ibm:security:authentication:asf:mechanism:mobile_user_approval:fingerprint",
				))
			})

			mux.HandleFunc("/scim", func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "urn:ietf:params:scim:schemas:extension:isam:1.0:MMFA:Authenticator:fingerprintMethods", r.URL.Query().Get("attributes"))
				w.WriteHeader(http.StatusNoContent)
			})

			srv := httptest.NewServer(mux)
			defer srv.Close()

			enrollmentEndpoint = srv.URL + "/scim"

			deps := registration.Deps{
				HTTP:      httpclient.New(false),
				KeyStore:  newFakeKeyStore(),
				Biometry:  &fakeBiometry{available: true, subtype: subtype},
				OAuth:     &fakeOAuth{token: oauthcap.Token{AccessToken: "a", RefreshToken: "r", AdditionalData: map[string]any{"authenticator_id": "auth-9"}}},
				Telemetry: telemetry.NewForTest("onprem-biometric"),
			}

			provider, err := registration.NewController(deps).Initiate(context.Background(), onPremBootstrapJSON(srv.URL+"/discover"), "acct", "", nil)
			require.NoError(t, err)

			require.NoError(t, provider.EnrollBiometric(context.Background()))

			result, err := provider.Finalize(context.Background())
			require.NoError(t, err)

			bio, ok := result.Biometric()
			require.True(t, ok)
			require.NotEmpty(t, bio.Name)
		})
	}
}

// TestOnPremiseEnrollUserPresence_UndiscoveredMechanismFails reproduces
// spec.md §4.5's URN filtering: a mechanism the discovery document never
// advertised cannot be enrolled.
func TestOnPremiseEnrollUserPresence_UndiscoveredMechanismFails(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()

	mux.HandleFunc("/discover", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(onPremDiscoveryPayload(
			"http://"+r.Host+"/scim",
			"urn:ibm:security:authentication:asf:mechanism:mobile_user_approval:fingerprint",
		))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	keyStore := newFakeKeyStore()

	deps := registration.Deps{
		HTTP:      httpclient.New(false),
		KeyStore:  keyStore,
		Biometry:  &fakeBiometry{},
		OAuth:     &fakeOAuth{token: oauthcap.Token{AccessToken: "a", RefreshToken: "r", AdditionalData: map[string]any{"authenticator_id": "auth-9"}}},
		Telemetry: telemetry.NewForTest("onprem-undiscovered"),
	}

	provider, err := registration.NewController(deps).Initiate(context.Background(), onPremBootstrapJSON(srv.URL+"/discover"), "acct", "", nil)
	require.NoError(t, err)

	err = provider.EnrollUserPresence(context.Background())
	require.Error(t, err)
	require.True(t, apperr.IsCode(err, apperr.CodeInvalidRegistrationData))
	require.Zero(t, len(keyStore.keys))
}

// TestController_InvalidRegistrationData reproduces the dispatch fallback
// of spec.md §4.3: neither bootstrap shape matches.
func TestController_InvalidRegistrationData(t *testing.T) {
	t.Parallel()

	deps := registration.Deps{
		HTTP:      httpclient.New(false),
		Telemetry: telemetry.NewForTest("invalid-dispatch"),
	}

	_, err := registration.NewController(deps).Initiate(context.Background(), `{"garbage":true}`, "acct", "", nil)
	require.Error(t, err)
	require.True(t, apperr.IsCode(err, apperr.CodeInvalidRegistrationData))
}
