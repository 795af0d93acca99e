// Copyright (c) 2025 Justin Cranford

// Package otpauth implements ingestion of otpauth:// QR-code URIs into
// TOTP/HOTP FactorType values (spec.md §4.6), plus the natural dual
// operations a host needs alongside ingestion: rendering a QR code for an
// enrollment URI and computing the live passcode for a parsed factor.
package otpauth

import (
	"bytes"
	"encoding/base32"
	"image/png"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	googleUuid "github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"github.com/pquerna/otp/totp"

	"mfacore/internal/algorithm"
	"mfacore/internal/apperr"
	"mfacore/internal/factor"
)

const (
	defaultDigits  = 6
	defaultPeriod  = 30
	defaultCounter = 1
	minPeriod      = 10
	maxPeriod      = 300
)

// ParsedOTP is the result of Parse: the FactorType plus the account/service
// names derived from the label and issuer per spec.md §4.6's splitting
// rule.
type ParsedOTP struct {
	Factor      factor.FactorType
	AccountName string
	ServiceName string
}

// Parse implements spec.md §4.6: decode an otpauth://{totp|hotp}/{label}
// URI into a TOTP or HOTP FactorType, applying every default and
// validation rule the spec names.
func Parse(rawURI string) (ParsedOTP, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return ParsedOTP{}, apperr.DataDecodingFailed(err)
	}

	if u.Scheme != "otpauth" {
		return ParsedOTP{}, apperr.DataCorrupted("otpauth URI must use the otpauth scheme")
	}

	kind := strings.ToLower(u.Host)
	if kind != "totp" && kind != "hotp" {
		return ParsedOTP{}, apperr.DataCorrupted("otpauth URI host must be totp or hotp")
	}

	q := u.Query()

	secret := strings.ToUpper(strings.TrimSpace(q.Get("secret")))

	// Padding '=' terminates input; any other character outside the
	// RFC 4648 alphabet fails the whole decode.
	if idx := strings.IndexByte(secret, '='); idx >= 0 {
		secret = secret[:idx]
	}

	if secret == "" {
		return ParsedOTP{}, apperr.DataCorrupted("otpauth URI is missing the required secret parameter")
	}

	if _, err := base32.StdEncoding.DecodeString(padBase32(secret)); err != nil {
		return ParsedOTP{}, apperr.DataDecodingFailed(err)
	}

	signAlg := algorithm.SHA1

	if raw := q.Get("algorithm"); raw != "" {
		parsed, err := algorithm.Parse(raw)
		if err != nil {
			return ParsedOTP{}, err
		}

		signAlg = parsed
	}

	digits := defaultDigits

	if raw := q.Get("digits"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || (parsed != 6 && parsed != 8) {
			return ParsedOTP{}, apperr.DataCorrupted("otpauth digits must be 6 or 8")
		}

		digits = parsed
	}

	label := strings.TrimPrefix(u.Path, "/")
	issuer := q.Get("issuer")
	serviceName, accountName := splitLabel(label, issuer)

	id := googleUuid.Must(googleUuid.NewV7())

	switch kind {
	case "totp":
		period := defaultPeriod

		if raw := q.Get("period"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < minPeriod || parsed > maxPeriod {
				return ParsedOTP{}, apperr.DataCorrupted("otpauth period must lie in [10, 300]")
			}

			period = parsed
		}

		info := factor.TOTPFactorInfo{ID: id, Secret: secret, Digits: digits, Algorithm: signAlg, Period: period}

		return ParsedOTP{Factor: factor.NewTOTP(info), AccountName: accountName, ServiceName: serviceName}, nil
	default:
		counter := uint64(defaultCounter)

		if raw := q.Get("counter"); raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return ParsedOTP{}, apperr.DataCorrupted("otpauth counter must be a non-negative integer")
			}

			counter = parsed
		}

		info := factor.HOTPFactorInfo{ID: id, Secret: secret, Digits: digits, Algorithm: signAlg, Counter: counter}

		return ParsedOTP{Factor: factor.NewHOTP(info), AccountName: accountName, ServiceName: serviceName}, nil
	}
}

// splitLabel implements spec.md §4.6's derivation rule: if label contains
// a colon and its left side equals issuer, the service name is issuer and
// the account name is the trimmed right side; otherwise the service name
// is issuer (possibly empty) and the whole label is the account name.
func splitLabel(label, issuer string) (serviceName, accountName string) {
	if idx := strings.IndexByte(label, ':'); idx >= 0 {
		left := label[:idx]
		right := strings.TrimSpace(label[idx+1:])

		if left == issuer {
			return issuer, right
		}
	}

	return issuer, label
}

// padBase32 right-pads s with '=' to the next multiple of 8 so unpadded
// otpauth secrets (the common QR-code spelling) still decode.
func padBase32(s string) string {
	if rem := len(s) % 8; rem != 0 {
		s += strings.Repeat("=", 8-rem)
	}

	return s
}

// CurrentCode computes the live TOTP passcode for info at time t, for hosts
// that want to display a passcode locally instead of only forwarding the
// secret to a separate authenticator app.
func CurrentCode(info factor.TOTPFactorInfo, t time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(info.Secret, t, totp.ValidateOpts{
		Period:    uint(info.Period), //nolint:gosec // period is bounds-checked to [10,300] at parse time
		Digits:    otpDigits(info.Digits),
		Algorithm: otpAlgorithm(info.Algorithm),
	})
	if err != nil {
		return "", apperr.UnderlyingError(err)
	}

	return code, nil
}

// HOTPCode computes the HOTP passcode for info at its current counter
// value. Advancing the counter afterward is the caller's responsibility.
func HOTPCode(info factor.HOTPFactorInfo) (string, error) {
	code, err := hotp.GenerateCodeCustom(info.Secret, info.Counter, hotp.ValidateOpts{
		Digits:    otpDigits(info.Digits),
		Algorithm: otpAlgorithm(info.Algorithm),
	})
	if err != nil {
		return "", apperr.UnderlyingError(err)
	}

	return code, nil
}

func otpDigits(d int) otp.Digits {
	if d == 8 {
		return otp.DigitsEight
	}

	return otp.DigitsSix
}

// otpAlgorithm maps our SigningAlgorithm onto pquerna/otp's narrower
// enumeration, which has no sha384 member; sha384 falls back to sha512,
// the same "substitute a stronger spelling" policy the outbound signing
// canonicalizers use (spec.md §9 open question on sha1 substitution).
func otpAlgorithm(a algorithm.SigningAlgorithm) otp.Algorithm {
	switch a {
	case algorithm.SHA256:
		return otp.AlgorithmSHA256
	case algorithm.SHA384, algorithm.SHA512:
		return otp.AlgorithmSHA512
	default:
		return otp.AlgorithmSHA1
	}
}

// RenderQRCode renders uri (typically an otpauth:// enrollment URI) as a
// PNG-encoded QR code of size x size pixels, the dual operation to Parse
// for hosts provisioning rather than ingesting a factor.
func RenderQRCode(uri string, size int) ([]byte, error) {
	code, err := qr.Encode(uri, qr.M, qr.Auto)
	if err != nil {
		return nil, apperr.UnderlyingError(err)
	}

	scaled, err := barcode.Scale(code, size, size)
	if err != nil {
		return nil, apperr.UnderlyingError(err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, apperr.UnderlyingError(err)
	}

	return buf.Bytes(), nil
}
