package sound

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tap-terminal/internal/api"
	"tap-terminal/internal/interfaces"
	"tap-terminal/internal/models"
	"tap-terminal/internal/session"
	"tap-terminal/internal/telemetry"
)

// paymentType tag appended to sound-path settlement requests.
const paymentTypeSound = "sound"

// Redeemer is the payer side of the sound channel: it exchanges a received
// token for payer verification, then drives the same settlement path and
// outcome classification as the NFC session controller. The two transports
// share one success/failure contract.
type Redeemer struct {
	tokens     interfaces.SoundTokenService
	settlement interfaces.SettlementService
	callbacks  session.Callbacks
	tel        *telemetry.Telemetry
	log        *zap.Logger

	mu    sync.Mutex
	state models.SessionState
}

func NewRedeemer(
	tokens interfaces.SoundTokenService,
	settlement interfaces.SettlementService,
	callbacks session.Callbacks,
	tel *telemetry.Telemetry,
) *Redeemer {
	return &Redeemer{
		tokens:     tokens,
		settlement: settlement,
		callbacks:  callbacks,
		tel:        tel,
		log:        tel.Log.Named("sound.redeemer"),
		state:      models.StateIdle,
	}
}

// State returns the redeemer's lifecycle state; it follows the session
// controller's state machine with the scanning phase replaced by the
// out-of-band token arrival.
func (r *Redeemer) State() models.SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Reset consumes a terminal state.
func (r *Redeemer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		r.state = models.StateIdle
	}
}

// Lookup fetches the pending payment a token points at so the payer can
// confirm the amount before paying.
func (r *Redeemer) Lookup(ctx context.Context, token string) (*api.SoundRedeemResponse, error) {
	return r.tokens.RedeemInfo(ctx, token)
}

// Redeem verifies the token against the payer's wallet and, on success,
// issues the settlement call with the sound payment type. Rejected while
// an attempt is already processing; once the settlement call is sent it
// runs to completion.
func (r *Redeemer) Redeem(ctx context.Context, token, customerWallet, paymentID string, tipAmount decimal.Decimal) error {
	if tipAmount.IsNegative() {
		return models.NewSessionError(models.ErrFailure, "tip amount cannot be negative")
	}

	r.mu.Lock()
	if r.state == models.StateProcessing {
		r.mu.Unlock()
		return session.ErrAttemptInProgress
	}
	r.state = models.StateProcessing
	r.mu.Unlock()

	r.log.Info("redeeming token", zap.String("payment_id", paymentID))

	if err := r.tokens.VerifyToken(ctx, token, customerWallet); err != nil {
		// Backend-reported verification failures carry their message
		// through; transport errors stay generic.
		message := "Token verification failed"
		var serr *models.SessionError
		if errors.As(err, &serr) && serr.Message != "" {
			message = serr.Message
		}
		r.finish(models.SettlementOutcome{Kind: models.OutcomeFailed, Message: message})
		return nil
	}

	ref := models.PaymentRef{Kind: models.RefPaymentLink, ID: paymentID}
	req := api.PayRequest{
		PayerWallet: customerWallet,
		TipAmount:   tipAmount,
		PaymentType: paymentTypeSound,
	}

	started := time.Now()
	resp, err := r.settlement.Pay(ctx, ref, "", req)
	r.tel.SettlementLatency.WithLabelValues(string(ref.Kind)).Observe(time.Since(started).Seconds())

	r.finish(session.Classify(resp, err))
	return nil
}

func (r *Redeemer) finish(outcome models.SettlementOutcome) {
	r.mu.Lock()
	switch outcome.Kind {
	case models.OutcomeSucceeded:
		r.state = models.StateSucceeded
	case models.OutcomeNotRegistered:
		r.state = models.StateNotRegistered
	default:
		r.state = models.StateFailed
	}
	r.mu.Unlock()

	r.tel.PaymentOutcomes.WithLabelValues(string(models.TransportSound), string(outcome.Kind)).Inc()

	switch outcome.Kind {
	case models.OutcomeSucceeded:
		r.log.Info("sound payment succeeded", zap.String("tx_hash", outcome.TxHash))
		if r.callbacks.OnSuccess != nil {
			r.callbacks.OnSuccess(outcome.TxHash, outcome.ReceiptID)
		}
	case models.OutcomeNotRegistered:
		r.log.Info("payer not registered")
		if r.callbacks.OnNotRegistered != nil {
			r.callbacks.OnNotRegistered()
		}
	default:
		r.log.Warn("sound payment failed", zap.String("error", outcome.Message))
		if r.callbacks.OnError != nil {
			r.callbacks.OnError(outcome.Message)
		}
	}
}
