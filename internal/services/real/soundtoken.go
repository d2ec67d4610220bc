package real

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"tap-terminal/internal/api"
	"tap-terminal/internal/models"
)

// SoundTokenClient covers the sound-channel backend endpoints: token
// issuance (vendor), lookup and verification (payer).
type SoundTokenClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewSoundTokenClient(baseURL string, log *zap.Logger) *SoundTokenClient {
	return &SoundTokenClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log.Named("soundtoken"),
	}
}

// IssueToken requests a one-time broadcast token bound to the payment,
// store and API secret.
func (c *SoundTokenClient) IssueToken(ctx context.Context, paymentID, storeID, apiSecret string) (string, error) {
	reqBody := api.SoundTokenRequest{
		PaymentID: paymentID,
		StoreID:   storeID,
		APISecret: apiSecret,
	}

	var resp api.SoundTokenResponse
	if err := c.post(ctx, c.baseURL+"/nfc/api/v1/sound-payment/token", reqBody, &resp); err != nil {
		return "", err
	}

	if !resp.Success {
		if resp.Error != "" {
			return "", models.NewSessionError(models.ErrFailure, resp.Error)
		}
		return "", models.NewSessionError(models.ErrFailure, "Failed to get token")
	}

	return resp.Token, nil
}

// RedeemInfo fetches the pending payment a received token points at.
func (c *SoundTokenClient) RedeemInfo(ctx context.Context, token string) (*api.SoundRedeemResponse, error) {
	u := c.baseURL + "/nfc/api/v1/sound-payment/redeem/" + url.PathEscape(token)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call settlement backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read redeem response: %w", err)
	}

	var info api.SoundRedeemResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("settlement backend returned status %d: %s", resp.StatusCode, string(body))
	}

	if !info.Success {
		if info.Error != "" {
			return nil, models.NewSessionError(models.ErrFailure, info.Error)
		}
		return nil, models.NewSessionError(models.ErrFailure, "Failed to redeem token")
	}

	return &info, nil
}

// VerifyToken exchanges the token for payer verification and marks it
// used server-side.
func (c *SoundTokenClient) VerifyToken(ctx context.Context, token, customerWallet string) error {
	reqBody := api.SoundPayRequest{
		Token:          token,
		CustomerWallet: customerWallet,
	}

	var resp api.SoundPayResponse
	if err := c.post(ctx, c.baseURL+"/nfc/api/v1/sound-payment/pay", reqBody, &resp); err != nil {
		return err
	}

	if !resp.Success {
		if resp.Error != "" {
			return models.NewSessionError(models.ErrFailure, resp.Error)
		}
		return models.NewSessionError(models.ErrFailure, "Token verification failed")
	}

	return nil
}

func (c *SoundTokenClient) post(ctx context.Context, url string, reqBody, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.log.Debug("sound token call", zap.String("url", url))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call settlement backend: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("settlement backend returned status %d: %s", resp.StatusCode, string(responseBody))
	}

	return nil
}
