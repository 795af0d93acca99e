// Copyright (c) 2025 Justin Cranford

// Package registration implements the registration controller and the two
// provider state machines (cloud, on-premise) described in spec.md §4.3,
// §4.4, §4.5.
package registration

import (
	"encoding/json"
	"net/url"
	"strings"

	"mfacore/internal/apperr"
)

// cloudBootstrapVersion is the {number, platform} pair carried by a cloud
// bootstrap descriptor.
type cloudBootstrapVersion struct {
	Number   string `json:"number"`
	Platform string `json:"platform"`
}

// cloudBootstrap is the cloud bootstrap JSON shape (spec.md §6).
type cloudBootstrap struct {
	Code            string                `json:"code"`
	AccountName     string                `json:"accountName"`
	RegistrationURI string                `json:"registrationUri"`
	Version         cloudBootstrapVersion `json:"version"`
}

func (b cloudBootstrap) valid() bool {
	return b.Code != "" && b.RegistrationURI != "" && b.Version.Number != ""
}

// onPremiseBootstrap is the on-premise bootstrap JSON shape (spec.md §6).
type onPremiseBootstrap struct {
	Code        string `json:"code"`
	Options     string `json:"options"`
	DetailsURL  string `json:"details_url"`
	Version     int    `json:"version"`
	ClientID    string `json:"client_id"`
}

func (b onPremiseBootstrap) valid() bool {
	return b.Code != "" && b.DetailsURL != "" && b.ClientID != ""
}

// domain resolves the side-channel "domain" attribute derivable at
// construction time: the host of registrationURI if present, else the
// host of detailsURL, else empty (spec.md §4.3).
func domain(registrationURI, detailsURL string) string {
	if registrationURI != "" {
		if u, err := url.Parse(registrationURI); err == nil {
			return u.Host
		}
	}

	if detailsURL != "" {
		if u, err := url.Parse(detailsURL); err == nil {
			return u.Host
		}
	}

	return ""
}

// ignoreSSLCertificate derives the on-premise "ignoreSSLCertificate" flag:
// true iff the comma-separated options string contains the token
// "ignoreSslCerts=true" (whitespace-trimmed, value lowercased, spec.md
// §4.3, tested against scenario 6 of spec.md §8).
func ignoreSSLCertificate(options string) bool {
	for _, token := range strings.Split(options, ",") {
		token = strings.TrimSpace(token)

		parts := strings.SplitN(token, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.ToLower(strings.TrimSpace(parts[1]))

		if key == "ignoreSslCerts" && value == "true" {
			return true
		}
	}

	return false
}

func parseCloudBootstrap(data []byte) (cloudBootstrap, bool) {
	var b cloudBootstrap
	if err := json.Unmarshal(data, &b); err != nil {
		return cloudBootstrap{}, false
	}

	return b, b.valid()
}

func parseOnPremiseBootstrap(data []byte) (onPremiseBootstrap, bool) {
	var b onPremiseBootstrap
	if err := json.Unmarshal(data, &b); err != nil {
		return onPremiseBootstrap{}, false
	}

	return b, b.valid()
}

// errInvalidRegistrationData is returned by Controller.Initiate when
// neither provider's bootstrap shape matches (spec.md §4.3 step 3).
var errInvalidRegistrationData = apperr.InvalidRegistrationData(nil)
