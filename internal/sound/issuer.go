package sound

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"tap-terminal/internal/interfaces"
	"tap-terminal/internal/telemetry"
)

// IssuerState is the vendor-side broadcast lifecycle. No payment happens
// on this device; "sent" only feeds the operator display and resets on its
// own after the display window, whether or not the payer redeemed.
type IssuerState string

const (
	IssuerIdle         IssuerState = "idle"
	IssuerBroadcasting IssuerState = "broadcasting"
	IssuerSent         IssuerState = "sent"
)

// ErrBroadcastInProgress is returned when Broadcast is called while a
// previous broadcast is still running or displaying.
var ErrBroadcastInProgress = errors.New("broadcast already in progress")

// Issuer obtains a one-time token from the backend and drives the audio
// transport to emit it.
type Issuer struct {
	tokens      interfaces.SoundTokenService
	broadcaster interfaces.ToneBroadcaster
	resetAfter  time.Duration
	tel         *telemetry.Telemetry
	log         *zap.Logger

	// OnSent and OnError feed the operator display; both optional.
	OnSent  func()
	OnError func(message string)

	mu     sync.Mutex
	state  IssuerState
	cancel context.CancelFunc
	timer  *time.Timer
}

func NewIssuer(
	tokens interfaces.SoundTokenService,
	broadcaster interfaces.ToneBroadcaster,
	resetAfter time.Duration,
	tel *telemetry.Telemetry,
) *Issuer {
	return &Issuer{
		tokens:      tokens,
		broadcaster: broadcaster,
		resetAfter:  resetAfter,
		tel:         tel,
		log:         tel.Log.Named("sound.issuer"),
		state:       IssuerIdle,
	}
}

// State returns the current display state.
func (i *Issuer) State() IssuerState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Broadcast requests a token bound to (paymentID, storeID, apiSecret) and
// emits it over audio. Asynchronous; progress lands on the callbacks.
func (i *Issuer) Broadcast(ctx context.Context, paymentID, storeID, apiSecret string) error {
	i.mu.Lock()
	if i.state != IssuerIdle {
		i.mu.Unlock()
		return ErrBroadcastInProgress
	}
	bctx, cancel := context.WithCancel(ctx)
	i.state = IssuerBroadcasting
	i.cancel = cancel
	i.mu.Unlock()

	i.log.Info("broadcast requested", zap.String("payment_id", paymentID))

	go i.run(bctx, paymentID, storeID, apiSecret)
	return nil
}

func (i *Issuer) run(ctx context.Context, paymentID, storeID, apiSecret string) {
	token, err := i.tokens.IssueToken(ctx, paymentID, storeID, apiSecret)
	if err != nil {
		i.abort("Failed to get token", err)
		return
	}
	i.tel.SoundTokensIssued.Inc()

	if err := i.broadcaster.Broadcast(ctx, token); err != nil {
		if errors.Is(err, context.Canceled) {
			i.log.Debug("broadcast cancelled")
			i.toIdle()
			return
		}
		i.abort("Failed to broadcast token", err)
		return
	}

	i.mu.Lock()
	if i.state != IssuerBroadcasting {
		i.mu.Unlock()
		return
	}
	i.state = IssuerSent
	cancel := i.cancel
	i.cancel = nil
	// The token may or may not be redeemed; the display resets regardless.
	i.timer = time.AfterFunc(i.resetAfter, i.toIdle)
	i.mu.Unlock()

	// The broadcast context is finished with; release it.
	if cancel != nil {
		cancel()
	}

	i.log.Info("token broadcast complete", zap.String("payment_id", paymentID))
	if i.OnSent != nil {
		i.OnSent()
	}
}

// Cancel stops the local broadcast and resets the display. There is no
// server-side invalidation call; an unredeemed token expires on its own.
func (i *Issuer) Cancel() {
	i.mu.Lock()
	cancel := i.cancel
	i.cancel = nil
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
	i.state = IssuerIdle
	i.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (i *Issuer) toIdle() {
	i.mu.Lock()
	cancel := i.cancel
	i.state = IssuerIdle
	i.cancel = nil
	i.timer = nil
	i.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (i *Issuer) abort(message string, err error) {
	i.log.Warn(message, zap.Error(err))
	i.toIdle()
	if i.OnError != nil {
		i.OnError(message)
	}
}
