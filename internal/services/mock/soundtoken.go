package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tap-terminal/internal/api"
	"tap-terminal/internal/models"
)

// MockSoundTokens issues deterministic tokens and remembers what each one
// is bound to; redeeming consumes the token, matching the backend's
// single-use contract.
type MockSoundTokens struct {
	log *zap.Logger

	mu      sync.Mutex
	counter int
	issued  map[string]issuedToken
}

type issuedToken struct {
	paymentID string
	storeID   string
}

func NewMockSoundTokens(log *zap.Logger) *MockSoundTokens {
	return &MockSoundTokens{
		log:    log.Named("mock.soundtokens"),
		issued: make(map[string]issuedToken),
	}
}

func (m *MockSoundTokens) IssueToken(ctx context.Context, paymentID, storeID, apiSecret string) (string, error) {
	if apiSecret == "" {
		return "", models.NewSessionError(models.ErrFailure, "invalid api secret")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.counter++
	token := fmt.Sprintf("%04X", m.counter)
	m.issued[token] = issuedToken{paymentID: paymentID, storeID: storeID}

	m.log.Debug("token issued", zap.String("token", token), zap.String("payment_id", paymentID))
	return token, nil
}

func (m *MockSoundTokens) RedeemInfo(ctx context.Context, token string) (*api.SoundRedeemResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bound, ok := m.issued[token]
	if !ok {
		return nil, models.NewSessionError(models.ErrFailure, "Token expired")
	}

	return &api.SoundRedeemResponse{
		Success:   true,
		PaymentID: bound.paymentID,
		StoreID:   bound.storeID,
		StoreName: "Demo Store",
		Amount:    decimal.RequireFromString("12.50"),
	}, nil
}

func (m *MockSoundTokens) VerifyToken(ctx context.Context, token, customerWallet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.issued[token]; !ok {
		return models.NewSessionError(models.ErrFailure, "Token expired")
	}

	// Single use.
	delete(m.issued, token)

	m.log.Debug("token verified", zap.String("token", token), zap.String("wallet", customerWallet))
	return nil
}
