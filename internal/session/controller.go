package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tap-terminal/internal/api"
	"tap-terminal/internal/interfaces"
	"tap-terminal/internal/models"
	"tap-terminal/internal/telemetry"
)

// ErrAttemptInProgress is returned when Start is called while a scan or a
// settlement call is outstanding. The call is rejected, never queued, so at
// most one settlement request exists per controller.
var ErrAttemptInProgress = errors.New("payment attempt already in progress")

// ErrNotCancellable is returned by Cancel outside the scanning state. Once
// the settlement call is in flight the session commits to its outcome: the
// backend may already have moved money.
var ErrNotCancellable = errors.New("attempt is not cancellable in this state")

// Callbacks report the terminal outcome of an attempt. These are the only
// externally observable effects besides the settlement call itself.
type Callbacks struct {
	OnSuccess       func(txHash, receiptID string)
	OnNotRegistered func()
	OnError         func(message string)
}

// StartParams fixes what a single attempt is collecting authorization for.
type StartParams struct {
	Transport models.Transport
	Ref       models.PaymentRef
	Amount    decimal.Decimal
	TipAmount decimal.Decimal
}

// Controller owns one in-flight payment attempt: it selects a transport,
// drives its scanner, converts the observed credential into a settlement
// request and classifies the response into a terminal state.
type Controller struct {
	storeID    string
	scanners   map[models.Transport]interfaces.TransportScanner
	settlement interfaces.SettlementService
	ack        interfaces.Acknowledger
	callbacks  Callbacks
	tel        *telemetry.Telemetry
	log        *zap.Logger

	mu      sync.Mutex
	session *models.PaymentSession
	scanner interfaces.TransportScanner
}

func NewController(
	storeID string,
	scanners map[models.Transport]interfaces.TransportScanner,
	settlement interfaces.SettlementService,
	ack interfaces.Acknowledger,
	callbacks Callbacks,
	tel *telemetry.Telemetry,
) *Controller {
	return &Controller{
		storeID:    storeID,
		scanners:   scanners,
		settlement: settlement,
		ack:        ack,
		callbacks:  callbacks,
		tel:        tel,
		log:        tel.Log.Named("session"),
	}
}

// Supported reports whether a transport can be offered on this device.
func (c *Controller) Supported(transport models.Transport) bool {
	scanner, ok := c.scanners[transport]
	return ok && scanner.Supported()
}

// Start begins a new attempt. Permitted only from idle or a terminal
// state; a re-entrant call while scanning or processing is rejected.
func (c *Controller) Start(ctx context.Context, params StartParams) error {
	if params.TipAmount.IsNegative() {
		return models.NewSessionError(models.ErrFailure, "tip amount cannot be negative")
	}

	c.mu.Lock()
	if c.session != nil && !c.session.State.Terminal() && c.session.State != models.StateIdle {
		c.mu.Unlock()
		return ErrAttemptInProgress
	}

	scanner, ok := c.scanners[params.Transport]
	if !ok || !scanner.Supported() {
		c.mu.Unlock()
		return models.NewSessionError(models.ErrUnsupported, "transport not available on this device")
	}

	sess := &models.PaymentSession{
		ID:        uuid.New(),
		Amount:    params.Amount,
		TipAmount: params.TipAmount,
		StoreID:   c.storeID,
		Ref:       params.Ref,
		Transport: params.Transport,
		State:     models.StateScanning,
	}
	c.session = sess
	c.scanner = scanner
	c.mu.Unlock()

	events, err := scanner.Start(ctx)
	if err != nil {
		c.mu.Lock()
		c.session.State = models.StateIdle
		c.scanner = nil
		c.mu.Unlock()
		return err
	}

	c.log.Info("attempt started",
		zap.String("session_id", sess.ID.String()),
		zap.String("transport", string(params.Transport)))

	go c.await(ctx, sess, events)
	return nil
}

// Cancel stops the transport and returns to idle. Valid only while
// scanning; a settlement call in flight always runs to completion.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	if c.session == nil || c.session.State != models.StateScanning {
		c.mu.Unlock()
		return ErrNotCancellable
	}
	scanner := c.scanner
	c.session.State = models.StateIdle
	c.scanner = nil
	c.mu.Unlock()

	if scanner != nil {
		scanner.Stop()
	}
	c.log.Info("attempt cancelled")
	return nil
}

// Reset consumes a terminal state so a fresh attempt can begin.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.State.Terminal() {
		c.session.State = models.StateIdle
		c.session.LastError = nil
	}
}

// Snapshot returns a copy of the current session, or nil before the first
// attempt.
func (c *Controller) Snapshot() *models.PaymentSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	copy := *c.session
	return &copy
}

// State returns the current lifecycle state.
func (c *Controller) State() models.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return models.StateIdle
	}
	return c.session.State
}

func (c *Controller) await(ctx context.Context, sess *models.PaymentSession, events <-chan models.CredentialEvent) {
	ev, ok := <-events
	if !ok {
		// Scan was cancelled; Cancel already restored idle.
		return
	}

	if ev.Err != nil {
		c.fail(sess, ev.Err)
		return
	}

	c.mu.Lock()
	if c.session != sess || sess.State != models.StateScanning {
		// A cancel raced the read; the stale credential must not be
		// attributed to a later session.
		c.mu.Unlock()
		return
	}
	sess.State = models.StateProcessing
	c.scanner = nil
	c.mu.Unlock()

	req := api.PayRequest{
		CardUID:        ev.Credential,
		TipAmount:      sess.TipAmount,
		SplitPaymentID: sess.Ref.ID,
	}

	started := time.Now()
	resp, err := c.settlement.Pay(ctx, sess.Ref, sess.StoreID, req)
	c.tel.SettlementLatency.WithLabelValues(string(sess.Ref.Kind)).Observe(time.Since(started).Seconds())

	outcome := Classify(resp, err)
	c.finish(sess, outcome)
}

func (c *Controller) fail(sess *models.PaymentSession, serr *models.SessionError) {
	c.mu.Lock()
	if c.session != sess || sess.State != models.StateScanning {
		// A fault event buffered before a cancel landed; it belongs to
		// the abandoned scan, not to whatever state came after.
		c.mu.Unlock()
		return
	}
	sess.State = models.StateFailed
	sess.LastError = serr
	c.scanner = nil
	c.mu.Unlock()

	c.tel.PaymentOutcomes.WithLabelValues(string(sess.Transport), string(models.OutcomeFailed)).Inc()
	c.log.Warn("attempt failed before settlement",
		zap.String("session_id", sess.ID.String()),
		zap.String("kind", string(serr.Kind)))

	if c.callbacks.OnError != nil {
		c.callbacks.OnError(serr.Message)
	}
}

// finish applies a classified settlement outcome to the session and fires
// the matching callback. Shared by the NFC path and the sound redeemer so
// the two transports cannot fork the success/failure contract.
func (c *Controller) finish(sess *models.PaymentSession, outcome models.SettlementOutcome) {
	c.mu.Lock()
	switch outcome.Kind {
	case models.OutcomeSucceeded:
		sess.State = models.StateSucceeded
	case models.OutcomeNotRegistered:
		sess.State = models.StateNotRegistered
		sess.LastError = models.NewSessionError(models.ErrNotRegistered, outcome.Message)
	default:
		sess.State = models.StateFailed
		sess.LastError = models.NewSessionError(models.ErrFailure, outcome.Message)
	}
	c.mu.Unlock()

	c.tel.PaymentOutcomes.WithLabelValues(string(sess.Transport), string(outcome.Kind)).Inc()

	switch outcome.Kind {
	case models.OutcomeSucceeded:
		c.log.Info("payment succeeded",
			zap.String("session_id", sess.ID.String()),
			zap.String("tx_hash", outcome.TxHash))
		if c.ack != nil {
			c.ack.PaymentAccepted()
		}
		if c.callbacks.OnSuccess != nil {
			c.callbacks.OnSuccess(outcome.TxHash, outcome.ReceiptID)
		}
	case models.OutcomeNotRegistered:
		c.log.Info("payer not registered", zap.String("session_id", sess.ID.String()))
		if c.callbacks.OnNotRegistered != nil {
			c.callbacks.OnNotRegistered()
		}
	default:
		c.log.Warn("payment failed",
			zap.String("session_id", sess.ID.String()),
			zap.String("error", outcome.Message))
		if c.callbacks.OnError != nil {
			c.callbacks.OnError(outcome.Message)
		}
	}
}
