package mock

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"sync"

	"go.uber.org/zap"
)

// MockKeySource hands every wallet the same throwaway key generated at
// startup, so the wallet-auth path runs without a login provider.
type MockKeySource struct {
	log *zap.Logger

	once sync.Once
	key  *ecdsa.PrivateKey
	err  error
}

func NewMockKeySource(log *zap.Logger) *MockKeySource {
	return &MockKeySource{log: log.Named("mock.keysource")}
}

func (m *MockKeySource) SigningKey(ctx context.Context, walletAddress string) (*ecdsa.PrivateKey, error) {
	m.once.Do(func() {
		m.key, m.err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if m.err == nil {
			m.log.Debug("generated throwaway signing key", zap.String("wallet", walletAddress))
		}
	})
	return m.key, m.err
}
