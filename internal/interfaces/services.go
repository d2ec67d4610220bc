package interfaces

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"time"

	"tap-terminal/internal/api"
	"tap-terminal/internal/models"
)

// ProximityReader is the NFC hardware binding. Read blocks until a card is
// presented or ctx is cancelled; cancelling must physically stop the scan.
type ProximityReader interface {
	// Available reports whether the device carries a reader at all. When
	// false, callers hide the NFC affordance rather than surface an error.
	Available() bool
	// Read returns the raw card serial as reported by the hardware,
	// possibly colon-separated.
	Read(ctx context.Context) (string, error)
}

// ErrPermissionDenied is returned by a hardware binding when the operator
// declined access to the device.
var ErrPermissionDenied = errors.New("hardware access denied")

// ToneReceiver is the payer-side audio binding; the modulation scheme is
// opaque to this process. Receive blocks until a full token is heard.
type ToneReceiver interface {
	Available() bool
	Receive(ctx context.Context) (string, error)
}

// ToneBroadcaster is the vendor-side audio binding that emits a token.
type ToneBroadcaster interface {
	Broadcast(ctx context.Context, token string) error
}

// TransportScanner abstracts one proximity channel as a start/stop-able
// listener. Start yields a channel carrying exactly one CredentialEvent;
// the scanner stops itself after emitting. Stop is idempotent and safe in
// any state. Starting while already scanning silently stops the previous
// scan first.
type TransportScanner interface {
	Supported() bool
	Start(ctx context.Context) (<-chan models.CredentialEvent, error)
	Stop()
}

// SettlementService issues the single settlement call of a payment attempt.
// The endpoint form is chosen by the reference kind.
type SettlementService interface {
	Pay(ctx context.Context, ref models.PaymentRef, storeID string, req api.PayRequest) (*api.PayResponse, error)
}

// SoundTokenService covers the sound-channel backend contract: issuing a
// one-time broadcast token (vendor side) and looking up / verifying a
// received one (payer side).
type SoundTokenService interface {
	IssueToken(ctx context.Context, paymentID, storeID, apiSecret string) (string, error)
	RedeemInfo(ctx context.Context, token string) (*api.SoundRedeemResponse, error)
	VerifyToken(ctx context.Context, token, customerWallet string) error
}

// ErrNoWalletSession is returned by a KeyMaterialSource when no wallet
// login session is active. Callers must complete the wallet-login flow
// first; this is a precondition fault, not retried.
var ErrNoWalletSession = errors.New("no active wallet session")

// KeyMaterialSource supplies the wallet's private signing key on demand.
// The login/social-recovery flow that establishes the session is external.
type KeyMaterialSource interface {
	SigningKey(ctx context.Context, walletAddress string) (*ecdsa.PrivateKey, error)
}

// WalletAuthProvider builds proof-of-wallet-control headers for a protected
// request. Implementations mint a fresh timestamp and signature per call.
type WalletAuthProvider interface {
	AuthHeaders(ctx context.Context, walletAddress string) (map[string]string, error)
}

// ErrCacheMiss is returned by a SessionCache when the key is absent or
// its entry has expired.
var ErrCacheMiss = errors.New("session cache miss")

// SessionCache is the key/value store holding wallet session material.
type SessionCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Acknowledger fires the physical acknowledgement (vibration pattern) when
// a payment succeeds.
type Acknowledger interface {
	PaymentAccepted()
}
