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
	"mfacore/internal/httpclient"
	"mfacore/internal/oauthcap"
	"mfacore/internal/registration"
	"mfacore/internal/telemetry"
)

func discoveryServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/discover", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                 "tenant-1",
			"client_id":          "client-1",
			"authntrxn_endpoint": "https://server/mga/sps/mmfa/user/mgmt/authntrxn",
		})
	})

	return httptest.NewServer(mux)
}

func onPremDeps(srv *httptest.Server) registration.Deps {
	return registration.Deps{
		HTTP:     httpclient.New(false),
		KeyStore: newFakeKeyStore(),
		Biometry: &fakeBiometry{},
		OAuth: &fakeOAuth{token: oauthcap.Token{
			AccessToken: "a", RefreshToken: "r",
			AdditionalData: map[string]any{"authenticator_id": "auth-1"},
		}},
		Telemetry: telemetry.NewForTest("bootstrap-flag"),
	}
}

// TestIgnoreSSLCertificate_True reproduces spec.md §8 scenario 6: the
// options string "ignoreSslCerts=true" must surface as TrustAllTLS()=true.
func TestIgnoreSSLCertificate_True(t *testing.T) {
	t.Parallel()

	srv := discoveryServer(t)
	defer srv.Close()

	bootstrap := onPremBootstrapJSON(srv.URL + "/discover")

	provider, err := registration.NewController(onPremDeps(srv)).Initiate(context.Background(), bootstrap, "acct", "", nil)
	require.NoError(t, err)

	onprem, ok := provider.(*registration.OnPremiseProvider)
	require.True(t, ok)
	require.True(t, onprem.TrustAllTLS())
}

// TestIgnoreSSLCertificate_FalseWhenMissing covers the complementary half
// of scenario 6: an options string without ignoreSslCerts=true yields
// false.
func TestIgnoreSSLCertificate_FalseWhenMissing(t *testing.T) {
	t.Parallel()

	srv := discoveryServer(t)
	defer srv.Close()

	bootstrap, err := json.Marshal(map[string]any{
		"code":        "c1",
		"options":     "ignoreSslCerts=false",
		"details_url": srv.URL + "/discover",
		"version":     1,
		"client_id":   "client-1",
	})
	require.NoError(t, err)

	provider, initErr := registration.NewController(onPremDeps(srv)).Initiate(context.Background(), string(bootstrap), "acct", "", nil)
	require.NoError(t, initErr)

	onprem, ok := provider.(*registration.OnPremiseProvider)
	require.True(t, ok)
	require.False(t, onprem.TrustAllTLS())
}

// TestAppErrCodes_AreStable guards against accidental renames of the codes
// other packages match on via apperr.IsCode.
func TestAppErrCodes_AreStable(t *testing.T) {
	t.Parallel()

	require.Equal(t, apperr.Code("INVALID_REGISTRATION_DATA"), apperr.CodeInvalidRegistrationData)
}
