// Copyright (c) 2025 Justin Cranford
//
//

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mfacore/internal/factor"
)

// newFactorsCommand runs the same fixture registration as "register" and
// lists the resulting enrolled factors through factor.ValueOf's erased
// capability, plus the raw key-store labels the registration left behind.
func newFactorsCommand(sess *session) *cobra.Command {
	var variant string

	cmd := &cobra.Command{
		Use:   "factors",
		Short: "Register against the fixture backend, then list enrolled factors",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			fixtureURL, closeFixture := startFixtureServer(variant)
			defer closeFixture()

			bootstrapJSON := fixtureBootstrapJSON(variant, fixtureURL)

			auth, err := runRegistration(ctx, sess, bootstrapJSON, "demo@example.com", "demo-push-token")
			if err != nil {
				return err
			}

			for _, f := range auth.EnrolledFactors() {
				erased := factor.ValueOf(f)
				fmt.Fprintf(sess.stdout, "%s\tid=%s\tdisplayName=%s\n", f.Kind, erased.ID(), erased.DisplayName())
			}

			fmt.Fprintln(sess.stdout, "key-store labels:")

			for _, label := range sess.keyStore.labels() {
				fmt.Fprintf(sess.stdout, "  %s\n", label)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&variant, "variant", "cloud", "Fixture variant: cloud or onprem")

	return cmd
}
