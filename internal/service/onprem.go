// Copyright (c) 2025 Justin Cranford

package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"mfacore/internal/apperr"
	"mfacore/internal/authenticator"
	"mfacore/internal/factor"
	"mfacore/internal/httpclient"
)

// onPremTransactionWire is one SCIM-flavored "Resources" element of the
// on-premise authntrxn listing endpoint.
type onPremTransactionWire struct {
	ID             string            `json:"id"`
	Message        string            `json:"message"`
	KeyHandle      string            `json:"keyHandle"`
	FactorID       string            `json:"factorId"`
	FactorType     string            `json:"factorType"`
	DataToSign     string            `json:"dataToSign"`
	TimeStamp      time.Time         `json:"timeStamp"`
	AdditionalData map[string]string `json:"additionalData,omitempty"`
}

type onPremTransactionsResponse struct {
	TotalResults int                     `json:"totalResults"`
	Resources    []onPremTransactionWire `json:"Resources"`
}

// OnPremiseService is the on-premise variant of spec.md §4.7, analogous to
// CloudService but using the SCIM-flavored authntrxn endpoints.
type OnPremiseService struct {
	auth *authenticator.OnPremiseAuthenticator
	deps Deps
}

var _ Service = (*OnPremiseService)(nil)

func newOnPremiseService(auth *authenticator.OnPremiseAuthenticator, deps Deps) *OnPremiseService {
	return &OnPremiseService{auth: auth, deps: deps}
}

func (s *OnPremiseService) postbackURI(txnID string) string {
	return s.auth.AuthnTrxnEndpoint + "/" + txnID
}

// NextTransaction implements the on-premise analog of spec.md §4.7's
// transaction flow: GET {authntrxnEndpoint} with the pending filter,
// returning the first resource and totalResults.
func (s *OnPremiseService) NextTransaction(ctx context.Context, filter string) (PendingTransaction, int, error) {
	ctx, span := s.deps.Telemetry.Tracer("service/onprem").Start(ctx, "OnPremiseService.NextTransaction")
	defer span.End()

	query := "filter=status eq \"pending\""
	if filter != "" {
		query = "filter=" + filter
	}

	resp, err := s.deps.HTTP.Do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		URL:     s.auth.AuthnTrxnEndpoint + "?" + query,
		Headers: map[string]string{"Authorization": s.auth.TokenValue.AuthorizationHeader()},
	})
	if err != nil {
		return PendingTransaction{}, 0, err
	}

	if !resp.IsSuccess() {
		return PendingTransaction{}, 0, apperr.UnderlyingError(fmt.Errorf("transaction list endpoint returned status %d", resp.StatusCode))
	}

	var wire onPremTransactionsResponse
	if err := resp.Decode(&wire); err != nil {
		return PendingTransaction{}, 0, apperr.DataDecodingFailed(err)
	}

	if len(wire.Resources) == 0 {
		return PendingTransaction{}, wire.TotalResults, nil
	}

	first := wire.Resources[0]
	pending := newPendingTransaction(first.ID, first.Message, s.postbackURI(first.ID), first.KeyHandle, first.FactorID, first.FactorType, first.DataToSign, first.TimeStamp, first.AdditionalData)

	return pending, wire.TotalResults, nil
}

// CompleteTransaction POSTs {action, signedData} to the transaction's
// derived postback URI; 2xx is success.
func (s *OnPremiseService) CompleteTransaction(ctx context.Context, txn PendingTransaction, action Action, signedData string) error {
	ctx, span := s.deps.Telemetry.Tracer("service/onprem").Start(ctx, "OnPremiseService.CompleteTransaction")
	defer span.End()

	resp, err := s.deps.HTTP.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		URL:     txn.PostbackURI,
		Headers: map[string]string{"Authorization": s.auth.TokenValue.AuthorizationHeader()},
		Body:    map[string]string{"action": string(action), "signedData": signedData},
	})
	if err != nil {
		return err
	}

	if !resp.IsSuccess() {
		return apperr.UnderlyingError(fmt.Errorf("transaction postback returned status %d", resp.StatusCode))
	}

	return nil
}

// CompleteTransactionWithFactor mirrors CloudService's convenience signing
// path.
func (s *OnPremiseService) CompleteTransactionWithFactor(ctx context.Context, txn PendingTransaction, f factor.FactorType, action Action) error {
	name, alg, ok := factor.NameAndAlgorithm(f)
	if !ok {
		return apperr.InvalidKey()
	}

	signedData, err := signWithLocalKey(ctx, s.deps.KeyStore, name, alg, []byte(txn.DataToSign))
	if err != nil {
		return err
	}

	return s.CompleteTransaction(ctx, txn, action, signedData)
}

// Login POSTs the scanned code to qrLoginURL (the on-premise discovery
// document's qrlogin_endpoint, spec.md §6).
func (s *OnPremiseService) Login(ctx context.Context, qrLoginURL, code string) error {
	ctx, span := s.deps.Telemetry.Tracer("service/onprem").Start(ctx, "OnPremiseService.Login")
	defer span.End()

	resp, err := s.deps.HTTP.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		URL:     qrLoginURL,
		Headers: map[string]string{"Authorization": s.auth.TokenValue.AuthorizationHeader()},
		Body:    map[string]string{"code": code},
	})
	if err != nil {
		return err
	}

	if !resp.IsSuccess() {
		return apperr.UnderlyingError(fmt.Errorf("qr login endpoint returned status %d", resp.StatusCode))
	}

	return nil
}

// RefreshToken exchanges refreshToken via the on-premise OAuth token
// endpoint convention, refreshing the authenticator's device attributes.
func (s *OnPremiseService) RefreshToken(ctx context.Context, refreshToken, accountName, pushToken string, additionalData map[string]string) (authenticator.Token, error) {
	ctx, span := s.deps.Telemetry.Tracer("service/onprem").Start(ctx, "OnPremiseService.RefreshToken")
	defer span.End()

	attrs := map[string]string{"accountName": accountName, "pushToken": pushToken}
	for k, v := range additionalData {
		attrs[k] = v
	}

	resp, err := s.deps.HTTP.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    s.auth.TokenEndpoint,
		Body:   map[string]any{"grant_type": "refresh_token", "refresh_token": refreshToken, "attributes": attrs},
	})
	if err != nil {
		return authenticator.Token{}, err
	}

	if !resp.IsSuccess() {
		return authenticator.Token{}, apperr.UnderlyingError(fmt.Errorf("refresh endpoint returned status %d", resp.StatusCode))
	}

	var wire struct {
		AccessToken  string         `json:"access_token"`
		RefreshToken string         `json:"refresh_token"`
		ExpiresIn    int            `json:"expires_in"`
		Additional   map[string]any `json:"additionalData,omitempty"`
	}
	if err := resp.Decode(&wire); err != nil {
		return authenticator.Token{}, apperr.DataDecodingFailed(err)
	}

	newToken := authenticator.Token{
		AccessToken:    wire.AccessToken,
		RefreshToken:   wire.RefreshToken,
		ExpiresAt:      time.Now().UTC().Add(time.Duration(wire.ExpiresIn) * time.Second),
		AdditionalData: wire.Additional,
	}

	s.auth.SetToken(newToken)
	s.auth.SetAccountName(accountName)

	return newToken, nil
}
