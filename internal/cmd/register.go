// Copyright (c) 2025 Justin Cranford
//
//

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/spf13/cobra"

	"mfacore/internal/algorithm"
	"mfacore/internal/authenticator"
	"mfacore/internal/biometry"
	"mfacore/internal/httpclient"
	"mfacore/internal/registration"
)

// runRegistration performs a full initiate/enroll/finalize cycle against
// the given bootstrap JSON, the shared logic behind both the "register" and
// "factors" commands.
func runRegistration(ctx context.Context, sess *session, bootstrapJSON, accountName, pushToken string) (authenticator.Authenticator, error) {
	deps := registration.Deps{
		HTTP:      httpclient.New(sess.cfg.TrustAllTLS),
		KeyStore:  sess.keyStore,
		Biometry:  &autoApproveBiometry{subtype: biometry.SubtypeTouchID},
		OAuth:     &fixedOAuth{authenticatorID: "fixture-authenticator"},
		Telemetry: sess.telemetry,
	}

	ctrl := registration.NewController(deps)

	provider, err := ctrl.Initiate(ctx, bootstrapJSON, accountName, pushToken, nil)
	if err != nil {
		return nil, err
	}

	if err := provider.EnrollUserPresence(ctx); err != nil {
		return nil, err
	}

	return provider.Finalize(ctx)
}

// newRegisterCommand drives the full registration flow — initiate, enroll
// user presence, finalize — against an in-process fixture server, so the
// demo has no external dependency. Point it at a real backend with
// --bootstrap instead of the built-in fixture.
func newRegisterCommand(sess *session) *cobra.Command {
	var (
		accountName string
		pushToken   string
		bootstrap   string
		variant     string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Run the registration flow against a fixture (or real) backend",
		Long: `register drives Controller.Initiate, EnrollUserPresence, and Finalize
end to end. With no --bootstrap flag it stands up an in-process fixture
server matching the chosen --variant (cloud or onprem) and registers
against that.

Examples:
  # Register against the built-in cloud fixture
  mfa-demo register --account-name alice@example.com

  # Register against the built-in on-premise fixture
  mfa-demo register --variant onprem

  # Register against a real backend
  mfa-demo register --bootstrap '{"code":"...","registrationUri":"https://...","version":{"number":"...","platform":"..."}}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			bootstrapJSON := bootstrap
			if bootstrapJSON == "" {
				fixtureURL, closeFixture := startFixtureServer(variant)
				defer closeFixture()

				bootstrapJSON = fixtureBootstrapJSON(variant, fixtureURL)
			}

			auth, err := runRegistration(ctx, sess, bootstrapJSON, accountName, pushToken)
			if err != nil {
				return err
			}

			fmt.Fprintf(sess.stdout, "registered authenticator id=%s accountName=%s enrolledFactors=%d\n",
				auth.ID(), auth.AccountName(), len(auth.EnrolledFactors()))

			return nil
		},
	}

	cmd.Flags().StringVar(&accountName, "account-name", "demo@example.com", "Account name to register")
	cmd.Flags().StringVar(&pushToken, "push-token", "demo-push-token", "Push token reported to the server")
	cmd.Flags().StringVar(&bootstrap, "bootstrap", "", "Raw bootstrap JSON; omit to use the built-in fixture")
	cmd.Flags().StringVar(&variant, "variant", "cloud", "Fixture variant when --bootstrap is omitted: cloud or onprem")

	return cmd
}

// startFixtureServer stands up a minimal cloud or on-premise registration
// backend matching the wire shapes internal/registration expects, so this
// command never needs network access to demonstrate the flow. The handlers
// close over baseURL, which is only known once httptest.NewServer returns;
// that's fine, since no request arrives before the caller gets the URL back.
func startFixtureServer(variant string) (baseURL string, closeFn func()) {
	mux := http.NewServeMux()

	var srvURL string

	switch variant {
	case "onprem":
		mux.HandleFunc("/scim/v2/discovery", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{
				"authntrxn_endpoint":  srvURL + "/scim/v2/AuthnTrxn",
				"qrlogin_endpoint":    srvURL + "/scim/v2/qrlogin",
				"token_endpoint":      srvURL + "/scim/v2/token",
				"enrollment_endpoint": srvURL + "/scim/v2/Factors",
				"version":             "1",
				"metadata": map[string]any{
					"service_name": "mfa-demo",
				},
				"discovery_mechanisms": []string{
					"urn:ibm:security:authentication:asf:mechanism:mobile_user_approval:user_presence",
				},
			})
		})
		mux.HandleFunc("/scim/v2/Factors", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	default:
		mux.HandleFunc("/v1.0/authenticators/registration", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost && r.URL.Query().Get("metadataInResponse") == "false" {
				writeJSON(w, map[string]any{
					"accessToken":  "demo-access",
					"refreshToken": "demo-refresh",
					"expiresIn":    3600,
				})

				return
			}

			writeJSON(w, map[string]any{
				"id":           "fixture-authenticator",
				"accessToken":  "demo-access",
				"refreshToken": "demo-refresh",
				"expiresIn":    3600,
				"metadata": map[string]any{
					"serviceName": "mfa-demo",
					"authenticationMethods": map[string]any{
						"signature_userPresence": map[string]any{
							"enrollmentUri": srvURL + "/v1.0/authnmethods/signatures",
							"enabled":       true,
							"attributes": map[string]any{
								"algorithm": algorithm.CloudSpelling(algorithm.SHA256),
							},
						},
					},
				},
			})
		})
		mux.HandleFunc("/v1.0/authnmethods/signatures", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, []map[string]any{{"subType": "userPresence", "id": "factor-1"}})
		})
	}

	srv := httptest.NewServer(mux)
	srvURL = srv.URL

	return srv.URL, srv.Close
}

func fixtureBootstrapJSON(variant, baseURL string) string {
	if variant == "onprem" {
		b, _ := json.Marshal(map[string]any{
			"code":        "onprem-code",
			"options":     "ignoreSslCerts=false",
			"details_url": baseURL + "/scim/v2/discovery",
			"version":     1,
			"client_id":   "demo-client",
		})

		return string(b)
	}

	b, _ := json.Marshal(map[string]any{
		"code":            "cloud-code",
		"accountName":     "demo@example.com",
		"registrationUri": baseURL + "/v1.0/authenticators/registration",
		"version":         map[string]string{"number": "1", "platform": "demo"},
	})

	return string(b)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
