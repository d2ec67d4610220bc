package real

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"tap-terminal/internal/api"
	"tap-terminal/internal/interfaces"
	"tap-terminal/internal/models"
)

// SettlementClient talks to the remote settlement backend. The endpoint
// form follows the reference kind: checkout sessions pay through the
// plugins API, payment links through the NFC API.
type SettlementClient struct {
	baseURL    string
	httpClient *http.Client
	auth       interfaces.WalletAuthProvider
	log        *zap.Logger
}

func NewSettlementClient(baseURL string, auth interfaces.WalletAuthProvider, log *zap.Logger) *SettlementClient {
	return &SettlementClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		auth: auth,
		log:  log.Named("settlement"),
	}
}

func (c *SettlementClient) payURL(ref models.PaymentRef, storeID string) (string, error) {
	switch ref.Kind {
	case models.RefCheckoutSession:
		return fmt.Sprintf("%s/plugins/api/v1/checkout/session/%s/pay", c.baseURL, storeID), nil
	case models.RefPaymentLink:
		return fmt.Sprintf("%s/nfc/api/v1/payment-link/%s/pay", c.baseURL, ref.ID), nil
	default:
		return "", fmt.Errorf("unknown payment reference kind %q", ref.Kind)
	}
}

// Pay issues the settlement call. Backend business failures come back as a
// parsed response for classification; only transport and parse problems
// are errors.
func (c *SettlementClient) Pay(ctx context.Context, ref models.PaymentRef, storeID string, req api.PayRequest) (*api.PayResponse, error) {
	url, err := c.payURL(ref, storeID)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pay request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// Sound-path requests identify the payer's wallet; those endpoints
	// require proof of wallet control.
	if req.PayerWallet != "" && c.auth != nil {
		headers, err := c.auth.AuthHeaders(ctx, req.PayerWallet)
		if err != nil {
			return nil, err
		}
		for name, value := range headers {
			httpReq.Header.Set(name, value)
		}
	}

	c.log.Debug("settlement call", zap.String("url", url))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call settlement backend: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read settlement response: %w", err)
	}

	// The backend reports business failures with non-2xx statuses too;
	// any parseable body is classified, whatever the status.
	var payResp api.PayResponse
	if err := json.Unmarshal(responseBody, &payResp); err != nil {
		return nil, fmt.Errorf("settlement backend returned status %d: %s", resp.StatusCode, string(responseBody))
	}

	return &payResp, nil
}
