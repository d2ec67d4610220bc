package keysource

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"

	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"

	"tap-terminal/internal/interfaces"
)

// seedKeyPrefix is where the wallet-login flow leaves the session seed in
// the session cache.
const seedKeyPrefix = "wallet_seed:"

// derivation context string; changing it rotates every derived key.
var derivationInfo = []byte("tap-terminal-wallet-auth-v1")

// CacheKeySource derives the wallet's P-256 signing key from the session
// seed the login provider stored in the session cache. The key never
// leaves the process and is re-derived on every request.
type CacheKeySource struct {
	cache interfaces.SessionCache
	log   *zap.Logger
}

func NewCacheKeySource(cache interfaces.SessionCache, log *zap.Logger) *CacheKeySource {
	return &CacheKeySource{
		cache: cache,
		log:   log.Named("keysource"),
	}
}

func (s *CacheKeySource) SigningKey(ctx context.Context, walletAddress string) (*ecdsa.PrivateKey, error) {
	seed, err := s.cache.Get(ctx, seedKeyPrefix+walletAddress)
	if err != nil {
		if errors.Is(err, interfaces.ErrCacheMiss) {
			return nil, interfaces.ErrNoWalletSession
		}
		return nil, fmt.Errorf("failed to load wallet session: %w", err)
	}

	key, err := deriveKey([]byte(seed), walletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}

	s.log.Debug("derived signing key", zap.String("wallet", walletAddress))
	return key, nil
}

// deriveKey maps (seed, wallet) deterministically onto a P-256 scalar via
// HKDF-SHA256 so the same session always signs with the same key.
func deriveKey(seed []byte, walletAddress string) (*ecdsa.PrivateKey, error) {
	curve := elliptic.P256()

	kdf := hkdf.New(sha256.New, seed, []byte(walletAddress), derivationInfo)
	material := make([]byte, 40)
	if _, err := io.ReadFull(kdf, material); err != nil {
		return nil, err
	}

	// Reduce into [1, N-1]; the extra 8 bytes keep the reduction bias
	// negligible.
	n := new(big.Int).Sub(curve.Params().N, big.NewInt(1))
	d := new(big.Int).SetBytes(material)
	d.Mod(d, n)
	d.Add(d, big.NewInt(1))

	key := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve},
		D:         d,
	}
	key.PublicKey.X, key.PublicKey.Y = curve.ScalarBaseMult(d.Bytes())
	return key, nil
}
