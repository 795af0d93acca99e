// Copyright (c) 2025 Justin Cranford

package authenticator_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"mfacore/internal/algorithm"
	"mfacore/internal/authenticator"
	"mfacore/internal/factor"
)

func TestEnrolledFactors_Neither(t *testing.T) {
	t.Parallel()

	a := &authenticator.CloudAuthenticator{IDValue: "a1"}
	require.Empty(t, a.EnrolledFactors())
}

func TestEnrolledFactors_BiometricOnly(t *testing.T) {
	t.Parallel()

	a := &authenticator.CloudAuthenticator{
		IDValue:         "a1",
		BiometricFactor: &factor.BiometricFactorInfo{Name: "K-bio", Algorithm: algorithm.SHA256},
	}

	factors := a.EnrolledFactors()
	require.Len(t, factors, 1)
	require.Equal(t, factor.KindBiometric, factors[0].Kind)
}

func TestEnrolledFactors_Both(t *testing.T) {
	t.Parallel()

	a := &authenticator.CloudAuthenticator{
		IDValue:            "a1",
		BiometricFactor:    &factor.BiometricFactorInfo{Name: "K-bio", Algorithm: algorithm.SHA256},
		UserPresenceFactor: &factor.UserPresenceFactorInfo{Name: "K-up", Algorithm: algorithm.SHA256},
	}

	factors := a.EnrolledFactors()
	require.Len(t, factors, 2)
}

func TestDecode_Cloud(t *testing.T) {
	t.Parallel()

	cloud := authenticator.CloudAuthenticator{
		IDValue:        "c1",
		ServiceNameValue: "Savings Account Service",
		TransactionURI: "https://server/v1.0/authenticators/c1/verifications",
	}

	data, err := json.Marshal(cloud)
	require.NoError(t, err)

	decoded, err := authenticator.Decode(data)
	require.NoError(t, err)
	require.Equal(t, "c1", decoded.ID())

	_, isCloud := decoded.(*authenticator.CloudAuthenticator)
	require.True(t, isCloud)
}

func TestDecode_OnPremise(t *testing.T) {
	t.Parallel()

	onprem := authenticator.OnPremiseAuthenticator{
		IDValue:           "op1",
		AuthnTrxnEndpoint: "https://server/mga/sps/mmfa/user/mgmt/authntrxn",
	}

	data, err := json.Marshal(onprem)
	require.NoError(t, err)

	decoded, err := authenticator.Decode(data)
	require.NoError(t, err)
	require.Equal(t, "op1", decoded.ID())

	_, isOnPrem := decoded.(*authenticator.OnPremiseAuthenticator)
	require.True(t, isOnPrem)
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()

	_, err := authenticator.Decode([]byte(`{"garbage":true}`))
	require.Error(t, err)
}
