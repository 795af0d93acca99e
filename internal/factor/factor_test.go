// Copyright (c) 2025 Justin Cranford

package factor_test

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	googleUuid "github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"mfacore/internal/algorithm"
	"mfacore/internal/factor"
)

func TestFactorType_DecodeEmptyObject_Fails(t *testing.T) {
	t.Parallel()

	var ft factor.FactorType
	err := json.Unmarshal([]byte(`{}`), &ft)
	require.Error(t, err)
	require.Contains(t, err.Error(), "No valid factor type found.")
}

func TestFactorType_DecodeUnknownKey_Fails(t *testing.T) {
	t.Parallel()

	var ft factor.FactorType
	err := json.Unmarshal([]byte(`{"unknown":{}}`), &ft)
	require.Error(t, err)
	require.Contains(t, err.Error(), "No valid factor type found.")
}

func TestFactorType_RoundTrip_Biometric(t *testing.T) {
	t.Parallel()

	id := googleUuid.Must(googleUuid.NewV7())
	ft := factor.NewBiometric(factor.BiometricFactorInfo{ID: id, Name: "K-bio", Algorithm: algorithm.SHA256})

	data, err := json.Marshal(ft)
	require.NoError(t, err)

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	require.Contains(t, decoded, "biometric")
	require.ElementsMatch(t, []string{"id", "name", "algorithm"}, keysOf(decoded["biometric"]), "encoding must omit derived displayName/imageName")

	var roundTripped factor.FactorType
	require.NoError(t, json.Unmarshal(data, &roundTripped))
	require.Equal(t, ft, roundTripped)
}

func TestFactorType_RoundTrip_UserPresence(t *testing.T) {
	t.Parallel()

	id := googleUuid.Must(googleUuid.NewV7())
	ft := factor.NewUserPresence(factor.UserPresenceFactorInfo{ID: id, Name: "K-up", Algorithm: algorithm.SHA384})

	data, err := json.Marshal(ft)
	require.NoError(t, err)

	var roundTripped factor.FactorType
	require.NoError(t, json.Unmarshal(data, &roundTripped))
	require.Equal(t, ft, roundTripped)
}

func TestFactorType_RoundTrip_TOTP(t *testing.T) {
	t.Parallel()

	id := googleUuid.Must(googleUuid.NewV7())
	ft := factor.NewTOTP(factor.TOTPFactorInfo{ID: id, Secret: "JBSWY3DPEHPK3PXP", Digits: 6, Algorithm: algorithm.SHA1, Period: 30})

	data, err := json.Marshal(ft)
	require.NoError(t, err)

	var roundTripped factor.FactorType
	require.NoError(t, json.Unmarshal(data, &roundTripped))
	require.Equal(t, ft, roundTripped)
}

func TestFactorType_RoundTrip_HOTP(t *testing.T) {
	t.Parallel()

	id := googleUuid.Must(googleUuid.NewV7())
	ft := factor.NewHOTP(factor.HOTPFactorInfo{ID: id, Secret: "JBSWY3DPEHPK3PXP", Digits: 8, Algorithm: algorithm.SHA256, Counter: 1})

	data, err := json.Marshal(ft)
	require.NoError(t, err)

	var roundTripped factor.FactorType
	require.NoError(t, json.Unmarshal(data, &roundTripped))
	require.Equal(t, ft, roundTripped)
}

func TestNameAndAlgorithm(t *testing.T) {
	t.Parallel()

	biometric := factor.NewBiometric(factor.BiometricFactorInfo{Name: "K-bio", Algorithm: algorithm.SHA256})
	name, alg, ok := factor.NameAndAlgorithm(biometric)
	require.True(t, ok)
	require.Equal(t, "K-bio", name)
	require.Equal(t, algorithm.SHA256, alg)

	totp := factor.NewTOTP(factor.TOTPFactorInfo{Secret: "x", Digits: 6, Period: 30})
	_, _, ok = factor.NameAndAlgorithm(totp)
	require.False(t, ok)
}

func TestKeyLabel(t *testing.T) {
	t.Parallel()

	up := factor.NewUserPresence(factor.UserPresenceFactorInfo{Name: "K-up"})
	name, ok := factor.KeyLabel(up)
	require.True(t, ok)
	require.Equal(t, "K-up", name)

	hotp := factor.NewHOTP(factor.HOTPFactorInfo{Counter: 1})
	_, ok = factor.KeyLabel(hotp)
	require.False(t, ok)
}

// TestFactorCodecRoundTripProperty asserts spec.md §8's "Factor codec
// round-trip" property — decode(encode(f)) == f — generated over all four
// variants rather than hand-enumerated.
func TestFactorCodecRoundTripProperty(t *testing.T) {
	t.Parallel()

	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("decode(encode(f)) == f", prop.ForAll(
		func(kindIdx int, digits int, period int) bool {
			var ft factor.FactorType

			switch kindIdx % 4 {
			case 0:
				ft = factor.NewTOTP(factor.TOTPFactorInfo{
					ID: googleUuid.Must(googleUuid.NewV7()), Secret: "JBSWY3DPEHPK3PXP",
					Digits: pick68(digits), Algorithm: algorithm.SHA256, Period: 10 + (period % 291),
				})
			case 1:
				ft = factor.NewHOTP(factor.HOTPFactorInfo{
					ID: googleUuid.Must(googleUuid.NewV7()), Secret: "JBSWY3DPEHPK3PXP",
					Digits: pick68(digits), Algorithm: algorithm.SHA384, Counter: uint64(period%1000 + 1),
				})
			case 2:
				ft = factor.NewBiometric(factor.BiometricFactorInfo{
					ID: googleUuid.Must(googleUuid.NewV7()), Name: "K-bio", Algorithm: algorithm.SHA256,
				})
			default:
				ft = factor.NewUserPresence(factor.UserPresenceFactorInfo{
					ID: googleUuid.Must(googleUuid.NewV7()), Name: "K-up", Algorithm: algorithm.SHA512,
				})
			}

			data, err := json.Marshal(ft)
			if err != nil {
				return false
			}

			var decoded factor.FactorType
			if err := json.Unmarshal(data, &decoded); err != nil {
				return false
			}

			return factorsEqual(ft, decoded)
		},
		gen.IntRange(0, 3), gen.IntRange(0, 10), gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

func pick68(n int) int {
	if n%2 == 0 {
		return 6
	}

	return 8
}

func factorsEqual(a, b factor.FactorType) bool {
	encA, errA := json.Marshal(a)
	encB, errB := json.Marshal(b)

	return errA == nil && errB == nil && string(encA) == string(encB)
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	return keys
}
