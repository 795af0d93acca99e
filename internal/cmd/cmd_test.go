// Copyright (c) 2025 Justin Cranford
//
//

package cmd_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	mfacoreCmd "mfacore/internal/cmd"
)

func TestRun_HelpExitsZero(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	exitCode := mfacoreCmd.Run([]string{"--help"}, nil, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "mfa-demo")
}

func TestRun_RegisterAgainstCloudFixture(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	exitCode := mfacoreCmd.Run([]string{"register", "--account-name", "alice@example.com"}, nil, &stdout, &stderr)
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "registered authenticator id=fixture-authenticator")
	require.Contains(t, stdout.String(), "accountName=alice@example.com")
}

func TestRun_RegisterAgainstOnPremiseFixture(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	exitCode := mfacoreCmd.Run([]string{"register", "--variant", "onprem"}, nil, &stdout, &stderr)
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "registered authenticator id=fixture-authenticator")
}

func TestRun_FactorsListsEnrolledFactor(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	exitCode := mfacoreCmd.Run([]string{"factors"}, nil, &stdout, &stderr)
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "userPresence")
	require.Contains(t, stdout.String(), "key-store labels:")
}

func TestRun_TransactionCompletesAgainstFixture(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	exitCode := mfacoreCmd.Run([]string{"transaction"}, nil, &stdout, &stderr)
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "completed with action=verify")
	require.Contains(t, stdout.String(), "postback reached=true")
}

func TestRun_OTPParseAndQR(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	uri := "otpauth://totp/mfa-demo:alice@example.com?secret=JBSWY3DPEHPK3PXP&issuer=mfa-demo"
	exitCode := mfacoreCmd.Run([]string{"otp", "parse", uri}, nil, &stdout, &stderr)
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "service=mfa-demo")
	require.Contains(t, stdout.String(), "kind=totp")

	stdout.Reset()
	stderr.Reset()

	exitCode = mfacoreCmd.Run([]string{"otp", "qr", "alice@example.com"}, nil, &stdout, &stderr)
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "otpauth://totp/")
}
