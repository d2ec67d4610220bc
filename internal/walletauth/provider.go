package walletauth

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"tap-terminal/internal/interfaces"
	"tap-terminal/internal/models"
)

// Header names the backend expects on protected requests.
const (
	HeaderWalletAddress   = "x-wallet-address"
	HeaderWalletTimestamp = "x-wallet-timestamp"
	HeaderWalletSignature = "x-wallet-signature"
)

// Provider proves control of a wallet without transmitting a secret: each
// call signs SHA-256(address ":" timestamp) with the wallet's private key.
// The backend treats (address, timestamp) as a replay key, so a proof is
// never cached or reused; every call mints a fresh timestamp.
type Provider struct {
	keys interfaces.KeyMaterialSource
	now  func() time.Time
	log  *zap.Logger
}

func NewProvider(keys interfaces.KeyMaterialSource, log *zap.Logger) *Provider {
	return &Provider{
		keys: keys,
		now:  time.Now,
		log:  log.Named("walletauth"),
	}
}

// AuthHeaders builds the proof headers for one protected request.
// Fails with ErrKeyUnavailable when no wallet session is active; the
// caller must complete the wallet-login flow first.
func (p *Provider) AuthHeaders(ctx context.Context, walletAddress string) (map[string]string, error) {
	if walletAddress == "" {
		return nil, models.NewSessionError(models.ErrKeyUnavailable, "no wallet address")
	}

	key, err := p.keys.SigningKey(ctx, walletAddress)
	if err != nil {
		if errors.Is(err, interfaces.ErrNoWalletSession) {
			return nil, models.NewSessionError(models.ErrKeyUnavailable, "wallet login required")
		}
		return nil, fmt.Errorf("failed to obtain signing key: %w", err)
	}

	// The timestamp string is the exact value hashed; signer and verifier
	// must agree on it byte for byte.
	timestamp := strconv.FormatInt(p.now().Unix(), 10)
	digest := sha256.Sum256([]byte(walletAddress + ":" + timestamp))

	signature, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign auth challenge: %w", err)
	}

	p.log.Debug("minted wallet auth proof", zap.String("wallet", walletAddress))

	return map[string]string{
		HeaderWalletAddress:   walletAddress,
		HeaderWalletTimestamp: timestamp,
		HeaderWalletSignature: base64.StdEncoding.EncodeToString(signature),
	}, nil
}
