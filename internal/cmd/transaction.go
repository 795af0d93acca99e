// Copyright (c) 2025 Justin Cranford
//
//

package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/spf13/cobra"

	"mfacore/internal/algorithm"
	"mfacore/internal/httpclient"
	"mfacore/internal/service"
)

// newTransactionCommand registers against an in-process cloud fixture that
// also serves a single pending transaction, then drives
// MFAServiceController's NextTransaction/CompleteTransactionWithFactor
// convenience-signing path end to end.
func newTransactionCommand(sess *session) *cobra.Command {
	var deny bool

	cmd := &cobra.Command{
		Use:   "transaction",
		Short: "Register, then fetch and complete one pending transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			fixtureURL, postbackHit, closeFixture := startTransactionFixture()
			defer closeFixture()

			bootstrapJSON := fixtureBootstrapJSON("cloud", fixtureURL)

			auth, err := runRegistration(ctx, sess, bootstrapJSON, "demo@example.com", "demo-push-token")
			if err != nil {
				return err
			}

			ctrl, err := service.NewController(auth, service.Deps{
				HTTP:      httpclient.New(sess.cfg.TrustAllTLS),
				KeyStore:  sess.keyStore,
				Telemetry: sess.telemetry,
			})
			if err != nil {
				return err
			}

			pending, total, err := ctrl.Service().NextTransaction(ctx, "")
			if err != nil {
				return err
			}

			if total == 0 {
				fmt.Fprintln(sess.stdout, "no pending transactions")

				return nil
			}

			f, ok := ctrl.TransactionFactor(pending)
			if !ok {
				return fmt.Errorf("no enrolled factor matches transaction key %q", pending.KeyName)
			}

			action := service.ActionVerify
			if deny {
				action = service.ActionDeny
			}

			if err := ctrl.Service().CompleteTransactionWithFactor(ctx, pending, f, action); err != nil {
				return err
			}

			fmt.Fprintf(sess.stdout, "transaction %s (%s) completed with action=%s, postback reached=%v\n",
				pending.ShortID, pending.Message, action, *postbackHit)

			return nil
		},
	}

	cmd.Flags().BoolVar(&deny, "deny", false, "Deny the transaction instead of verifying it")

	return cmd
}

// startTransactionFixture extends the cloud registration fixture with a
// transaction list and postback endpoint so "transaction" can demonstrate
// the full registration-to-signing flow in one process.
func startTransactionFixture() (baseURL string, postbackHit *bool, closeFn func()) {
	mux := http.NewServeMux()

	var srvURL string

	hit := false

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
		var body []map[string]any

		_ = json.NewDecoder(r.Body).Decode(&body)

		keyName := ""

		if len(body) > 0 {
			if attrs, ok := body[0]["attributes"].(map[string]any); ok {
				if additional, ok := attrs["additionalData"].([]any); ok {
					for _, entry := range additional {
						if m, ok := entry.(map[string]any); ok && m["name"] == "name" {
							keyName, _ = m["value"].(string)
						}
					}
				}
			}
		}

		enrolledKeyName = keyName

		writeJSON(w, []map[string]any{{"subType": "userPresence", "id": "factor-1"}})
	})

	mux.HandleFunc("/v1.0/authenticators/fixture-authenticator/verifications", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			hit = true
			w.WriteHeader(http.StatusNoContent)

			return
		}

		writeJSON(w, map[string]any{
			"total": 1,
			"transactions": []map[string]any{
				{
					"id":          "txn-0001",
					"message":     "Approve sign-in from a new device?",
					"postbackUri": srvURL + "/v1.0/authenticators/fixture-authenticator/verifications",
					"keyName":     enrolledKeyName,
					"dataToSign":  "base64url-challenge-bytes",
				},
			},
		})
	})

	srv := httptest.NewServer(mux)
	srvURL = srv.URL

	return srv.URL, &hit, srv.Close
}

// enrolledKeyName threads the key label minted during enrollment into the
// transaction-list handler above, since the fixture has no real database to
// look it up from.
var enrolledKeyName string
