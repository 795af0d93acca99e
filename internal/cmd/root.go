// Copyright (c) 2025 Justin Cranford
//
//

// Package cmd implements the mfa-demo command-line host: a thin composition
// root that wires the registration and service controllers to in-memory
// capability stubs, demonstrating the registration, enrollment, and
// transaction-signing flows end to end without a real backend.
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mfacore/internal/telemetry"
)

// session is the process-lifetime state threaded through every subcommand:
// the capability stubs, the telemetry service, and the config resolved
// from flags/env/file. A production host would instead persist the
// registration controller's result between invocations; this demo keeps
// everything in one process to show the full flow in a single run.
type session struct {
	cfg       Config
	telemetry *telemetry.Service
	keyStore  *memoryKeyStore
	stdout    io.Writer
	stderr    io.Writer
}

// Run is the entry point cmd/mfa-demo's main.go calls, mirroring the
// teacher's `Identity(args, stdin, stdout, stderr) int` shape.
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root, sess := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "error:", err)

		if sess.telemetry != nil {
			sess.telemetry.Shutdown(context.Background())
		}

		return 1
	}

	if sess.telemetry != nil {
		sess.telemetry.Shutdown(context.Background())
	}

	return 0
}

func newRootCommand(stdout, stderr io.Writer) (*cobra.Command, *session) {
	var (
		configPath string
		verbose    bool
		trustAll   bool
	)

	v := viper.New()
	v.SetEnvPrefix("MFA_DEMO")
	v.AutomaticEnv()

	sess := &session{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "mfa-demo",
		Short: "Demonstrate the MFA client core's registration, enrollment, and transaction flows",
		Long: `mfa-demo drives the registration controller, the per-factor enrollment
operations, and the transaction-signing service against a fixture backend,
using in-memory stand-ins for the platform key store, biometric evaluator,
and OAuth provider.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				v.Set("verbose", true)
			}

			if trustAll {
				v.Set("trustAllTLS", true)
			}

			cfg, err := loadConfig(configPath, v)
			if err != nil {
				return err
			}

			sess.cfg = cfg
			sess.telemetry = telemetry.New(cmd.Context(), cfg.ServiceName, cfg.Verbose)
			sess.keyStore = newMemoryKeyStore()

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug-level structured logging")
	root.PersistentFlags().BoolVar(&trustAll, "trust-all-tls", false, "Skip TLS certificate verification for the demo HTTP client")

	root.AddCommand(
		newRegisterCommand(sess),
		newOTPCommand(sess),
		newFactorsCommand(sess),
		newTransactionCommand(sess),
	)

	return root, sess
}
