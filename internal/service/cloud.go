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

// cloudTransactionWire is one element of the cloud transaction list
// response, already close to the normalized PendingTransaction shape
// (spec.md §6).
type cloudTransactionWire struct {
	ID             string            `json:"id"`
	Message        string            `json:"message"`
	PostbackURI    string            `json:"postbackUri"`
	KeyName        string            `json:"keyName"`
	FactorID       string            `json:"factorId"`
	FactorType     string            `json:"factorType"`
	DataToSign     string            `json:"dataToSign"`
	TimeStamp      time.Time         `json:"timeStamp"`
	AdditionalData map[string]string `json:"additionalData,omitempty"`
}

type cloudTransactionsResponse struct {
	Total        int                    `json:"total"`
	Transactions []cloudTransactionWire `json:"transactions"`
}

// CloudService is the cloud variant of spec.md §4.7.
type CloudService struct {
	auth *authenticator.CloudAuthenticator
	deps Deps
}

var _ Service = (*CloudService)(nil)

func newCloudService(auth *authenticator.CloudAuthenticator, deps Deps) *CloudService {
	return &CloudService{auth: auth, deps: deps}
}

// NextTransaction implements spec.md §4.7's cloud transaction flow: GET
// {transactionUri} with the "nextPending" filter, returning the first
// pending record and the server-reported total.
func (s *CloudService) NextTransaction(ctx context.Context, filter string) (PendingTransaction, int, error) {
	ctx, span := s.deps.Telemetry.Tracer("service/cloud").Start(ctx, "CloudService.NextTransaction")
	defer span.End()

	query := "filter=nextPending"
	if filter != "" {
		query = "filter=" + filter
	}

	resp, err := s.deps.HTTP.Do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		URL:     s.auth.TransactionURI + "?" + query,
		Headers: map[string]string{"Authorization": s.auth.TokenValue.AuthorizationHeader()},
	})
	if err != nil {
		return PendingTransaction{}, 0, err
	}

	if !resp.IsSuccess() {
		return PendingTransaction{}, 0, apperr.UnderlyingError(fmt.Errorf("transaction list endpoint returned status %d", resp.StatusCode))
	}

	var wire cloudTransactionsResponse
	if err := resp.Decode(&wire); err != nil {
		return PendingTransaction{}, 0, apperr.DataDecodingFailed(err)
	}

	if len(wire.Transactions) == 0 {
		return PendingTransaction{}, wire.Total, nil
	}

	first := wire.Transactions[0]
	pending := newPendingTransaction(first.ID, first.Message, first.PostbackURI, first.KeyName, first.FactorID, first.FactorType, first.DataToSign, first.TimeStamp, first.AdditionalData)

	return pending, wire.Total, nil
}

// CompleteTransaction implements spec.md §4.7's raw completion form: POST
// {action, signedData} to the transaction's postback URL; 2xx (204
// observed) is success.
func (s *CloudService) CompleteTransaction(ctx context.Context, txn PendingTransaction, action Action, signedData string) error {
	ctx, span := s.deps.Telemetry.Tracer("service/cloud").Start(ctx, "CloudService.CompleteTransaction")
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

// CompleteTransactionWithFactor implements the convenience signing form:
// locate f's key label, sign txn.DataToSign locally, and delegate to
// CompleteTransaction.
func (s *CloudService) CompleteTransactionWithFactor(ctx context.Context, txn PendingTransaction, f factor.FactorType, action Action) error {
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

// Login implements spec.md §4.7's QR-login confirmation.
func (s *CloudService) Login(ctx context.Context, qrLoginURL, code string) error {
	ctx, span := s.deps.Telemetry.Tracer("service/cloud").Start(ctx, "CloudService.Login")
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

// RefreshToken implements spec.md §4.7's token refresh, reusing the cloud
// provider's exact request shape (refreshToken plus device attributes
// posted to the registration/refresh URI with metadataInResponse=false).
func (s *CloudService) RefreshToken(ctx context.Context, refreshToken, accountName, pushToken string, additionalData map[string]string) (authenticator.Token, error) {
	ctx, span := s.deps.Telemetry.Tracer("service/cloud").Start(ctx, "CloudService.RefreshToken")
	defer span.End()

	attrs := map[string]string{"accountName": accountName, "pushToken": pushToken}
	for k, v := range additionalData {
		attrs[k] = v
	}

	resp, err := s.deps.HTTP.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    s.auth.RefreshURI + "?metadataInResponse=false",
		Body:   map[string]any{"refreshToken": refreshToken, "attributes": attrs},
	})
	if err != nil {
		return authenticator.Token{}, err
	}

	if !resp.IsSuccess() {
		return authenticator.Token{}, apperr.UnderlyingError(fmt.Errorf("refresh endpoint returned status %d", resp.StatusCode))
	}

	var wire struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    int    `json:"expiresIn"`
	}
	if err := resp.Decode(&wire); err != nil {
		return authenticator.Token{}, apperr.DataDecodingFailed(err)
	}

	newToken := authenticator.Token{
		AccessToken:  wire.AccessToken,
		RefreshToken: wire.RefreshToken,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(wire.ExpiresIn) * time.Second),
	}

	s.auth.SetToken(newToken)
	s.auth.SetAccountName(accountName)

	return newToken, nil
}
