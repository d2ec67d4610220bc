package walletauth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tap-terminal/internal/interfaces"
	"tap-terminal/internal/models"
)

type staticKeySource struct {
	key *ecdsa.PrivateKey
	err error
}

func (s *staticKeySource) SigningKey(ctx context.Context, walletAddress string) (*ecdsa.PrivateKey, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.key, nil
}

func newTestProvider(t *testing.T) (*Provider, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return NewProvider(&staticKeySource{key: key}, zap.NewNop()), key
}

func TestAuthHeadersVerifiable(t *testing.T) {
	provider, key := newTestProvider(t)

	headers, err := provider.AuthHeaders(context.Background(), "rWALLET1")
	require.NoError(t, err)

	require.Equal(t, "rWALLET1", headers[HeaderWalletAddress])
	require.NotEmpty(t, headers[HeaderWalletTimestamp])
	require.NotEmpty(t, headers[HeaderWalletSignature])

	// The proof must verify against SHA-256(address ":" timestamp).
	digest := sha256.Sum256([]byte("rWALLET1:" + headers[HeaderWalletTimestamp]))
	sig, err := base64.StdEncoding.DecodeString(headers[HeaderWalletSignature])
	require.NoError(t, err)
	assert.True(t, ecdsa.VerifyASN1(&key.PublicKey, digest[:], sig))
}

func TestAuthHeadersNeverReused(t *testing.T) {
	provider, _ := newTestProvider(t)

	// Advance the clock between calls so the timestamps differ.
	base := time.Unix(1_700_000_000, 0)
	calls := 0
	provider.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}

	first, err := provider.AuthHeaders(context.Background(), "rWALLET1")
	require.NoError(t, err)
	second, err := provider.AuthHeaders(context.Background(), "rWALLET1")
	require.NoError(t, err)

	assert.NotEqual(t, first[HeaderWalletTimestamp], second[HeaderWalletTimestamp])
	assert.NotEqual(t, first[HeaderWalletSignature], second[HeaderWalletSignature])
}

func TestAuthHeadersKeyUnavailable(t *testing.T) {
	provider := NewProvider(&staticKeySource{err: interfaces.ErrNoWalletSession}, zap.NewNop())

	_, err := provider.AuthHeaders(context.Background(), "rWALLET1")
	require.Error(t, err)

	var serr *models.SessionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, models.ErrKeyUnavailable, serr.Kind)
}

func TestAuthHeadersEmptyWallet(t *testing.T) {
	provider, _ := newTestProvider(t)

	_, err := provider.AuthHeaders(context.Background(), "")
	var serr *models.SessionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, models.ErrKeyUnavailable, serr.Kind)
}
