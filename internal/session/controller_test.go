package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tap-terminal/internal/api"
	"tap-terminal/internal/interfaces"
	"tap-terminal/internal/models"
	"tap-terminal/internal/telemetry"
)

// fakeScanner feeds the controller a scripted credential event.
type fakeScanner struct {
	supported bool
	event     *models.CredentialEvent // nil: block until Stop
	events    chan models.CredentialEvent
	stops     atomic.Int32
	starts    atomic.Int32
}

func newFakeScanner(ev *models.CredentialEvent) *fakeScanner {
	return &fakeScanner{supported: true, event: ev}
}

func (f *fakeScanner) Supported() bool { return f.supported }

func (f *fakeScanner) Start(ctx context.Context) (<-chan models.CredentialEvent, error) {
	f.starts.Add(1)
	f.events = make(chan models.CredentialEvent, 1)
	if f.event != nil {
		f.events <- *f.event
		close(f.events)
	}
	return f.events, nil
}

func (f *fakeScanner) Stop() {
	if f.stops.Add(1) == 1 && f.event == nil && f.events != nil {
		close(f.events)
	}
}

// fakeSettlement records the request and answers with a scripted response.
type fakeSettlement struct {
	resp  *api.PayResponse
	err   error
	calls atomic.Int32
	last  api.PayRequest
	ref   models.PaymentRef
}

func (f *fakeSettlement) Pay(ctx context.Context, ref models.PaymentRef, storeID string, req api.PayRequest) (*api.PayResponse, error) {
	f.calls.Add(1)
	f.last = req
	f.ref = ref
	return f.resp, f.err
}

type fakeAck struct{ fired atomic.Int32 }

func (f *fakeAck) PaymentAccepted() { f.fired.Add(1) }

// outcomeRecorder signals when any terminal callback fires.
type outcomeRecorder struct {
	done          chan struct{}
	txHash        string
	receiptID     string
	errMessage    string
	notRegistered bool
}

func newOutcomeRecorder() *outcomeRecorder {
	return &outcomeRecorder{done: make(chan struct{})}
}

func (r *outcomeRecorder) callbacks() Callbacks {
	return Callbacks{
		OnSuccess: func(txHash, receiptID string) {
			r.txHash = txHash
			r.receiptID = receiptID
			close(r.done)
		},
		OnNotRegistered: func() {
			r.notRegistered = true
			close(r.done)
		},
		OnError: func(message string) {
			r.errMessage = message
			close(r.done)
		},
	}
}

func (r *outcomeRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome callback fired")
	}
}

func newTestController(t *testing.T, scanner interfaces.TransportScanner, settlement interfaces.SettlementService, rec *outcomeRecorder, ack interfaces.Acknowledger) *Controller {
	t.Helper()
	tel, err := telemetry.New(false)
	require.NoError(t, err)
	return NewController(
		"store-1",
		map[models.Transport]interfaces.TransportScanner{models.TransportNFC: scanner},
		settlement,
		ack,
		rec.callbacks(),
		tel,
	)
}

func linkParams() StartParams {
	return StartParams{
		Transport: models.TransportNFC,
		Ref:       models.PaymentRef{Kind: models.RefPaymentLink, ID: "pay_123"},
		Amount:    decimal.RequireFromString("12.50"),
		TipAmount: decimal.RequireFromString("1.00"),
	}
}

func TestControllerSuccessfulPayment(t *testing.T) {
	scanner := newFakeScanner(&models.CredentialEvent{Credential: "045B070AFD7580"})
	settlement := &fakeSettlement{resp: &api.PayResponse{Success: true, TxHash: "ABC123", ReceiptID: "r-9"}}
	rec := newOutcomeRecorder()
	ack := &fakeAck{}
	c := newTestController(t, scanner, settlement, rec, ack)

	require.NoError(t, c.Start(context.Background(), linkParams()))
	rec.wait(t)

	assert.Equal(t, models.StateSucceeded, c.State())
	assert.Equal(t, "ABC123", rec.txHash)
	assert.Equal(t, "r-9", rec.receiptID)
	assert.Equal(t, "045B070AFD7580", settlement.last.CardUID)
	assert.Equal(t, "pay_123", settlement.last.SplitPaymentID)
	assert.Equal(t, models.RefPaymentLink, settlement.ref.Kind)
	assert.Equal(t, int32(1), ack.fired.Load())
}

func TestControllerNotRegistered(t *testing.T) {
	scanner := newFakeScanner(&models.CredentialEvent{Credential: "045B070AFD7580"})
	settlement := &fakeSettlement{resp: &api.PayResponse{Success: false, Error: "Card not recognized"}}
	rec := newOutcomeRecorder()
	c := newTestController(t, scanner, settlement, rec, nil)

	require.NoError(t, c.Start(context.Background(), linkParams()))
	rec.wait(t)

	assert.Equal(t, models.StateNotRegistered, c.State())
	assert.True(t, rec.notRegistered)
	assert.Empty(t, rec.errMessage)
}

func TestControllerMalformedCredentialNeverReachesNetwork(t *testing.T) {
	scanner := newFakeScanner(&models.CredentialEvent{
		Err: models.NewSessionError(models.ErrMalformedCredential, "credential is not a hex serial"),
	})
	settlement := &fakeSettlement{}
	rec := newOutcomeRecorder()
	c := newTestController(t, scanner, settlement, rec, nil)

	require.NoError(t, c.Start(context.Background(), linkParams()))
	rec.wait(t)

	assert.Equal(t, models.StateFailed, c.State())
	assert.Equal(t, int32(0), settlement.calls.Load())

	snap := c.Snapshot()
	require.NotNil(t, snap.LastError)
	assert.Equal(t, models.ErrMalformedCredential, snap.LastError.Kind)
}

func TestControllerRejectsReentrantStart(t *testing.T) {
	scanner := newFakeScanner(nil) // blocks in scanning
	settlement := &fakeSettlement{}
	rec := newOutcomeRecorder()
	c := newTestController(t, scanner, settlement, rec, nil)

	require.NoError(t, c.Start(context.Background(), linkParams()))
	assert.Equal(t, models.StateScanning, c.State())

	err := c.Start(context.Background(), linkParams())
	assert.ErrorIs(t, err, ErrAttemptInProgress)
	assert.Equal(t, int32(1), scanner.starts.Load())
}

func TestControllerCancelDuringScanning(t *testing.T) {
	scanner := newFakeScanner(nil)
	settlement := &fakeSettlement{}
	rec := newOutcomeRecorder()
	c := newTestController(t, scanner, settlement, rec, nil)

	require.NoError(t, c.Start(context.Background(), linkParams()))
	require.NoError(t, c.Cancel())

	assert.Equal(t, models.StateIdle, c.State())
	assert.Equal(t, int32(1), scanner.stops.Load())
	assert.Equal(t, int32(0), settlement.calls.Load())

	// Idle again: a fresh attempt is permitted.
	require.NoError(t, c.Start(context.Background(), linkParams()))
}

// openScanner hands out its event channel so a test can deliver events
// after the controller has moved on.
type openScanner struct {
	events chan models.CredentialEvent
}

func (s *openScanner) Supported() bool { return true }

func (s *openScanner) Start(ctx context.Context) (<-chan models.CredentialEvent, error) {
	s.events = make(chan models.CredentialEvent, 1)
	return s.events, nil
}

func (s *openScanner) Stop() {}

func TestControllerIgnoresFaultAfterCancel(t *testing.T) {
	scanner := &openScanner{}
	rec := newOutcomeRecorder()
	c := newTestController(t, scanner, &fakeSettlement{}, rec, nil)

	require.NoError(t, c.Start(context.Background(), linkParams()))
	require.NoError(t, c.Cancel())
	require.Equal(t, models.StateIdle, c.State())

	// A hardware fault was already buffered when the cancel landed; it
	// must not flip the cancelled session to failed.
	scanner.events <- models.CredentialEvent{
		Err: models.NewSessionError(models.ErrTransportFault, "error reading card"),
	}
	close(scanner.events)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, models.StateIdle, c.State())
	select {
	case <-rec.done:
		t.Fatal("outcome callback fired for a cancelled attempt")
	default:
	}
}

func TestControllerCancelRejectedWhenIdle(t *testing.T) {
	scanner := newFakeScanner(nil)
	rec := newOutcomeRecorder()
	c := newTestController(t, scanner, &fakeSettlement{}, rec, nil)

	assert.ErrorIs(t, c.Cancel(), ErrNotCancellable)
}

func TestControllerFailureCarriesBackendMessage(t *testing.T) {
	scanner := newFakeScanner(&models.CredentialEvent{Credential: "AB"})
	settlement := &fakeSettlement{resp: &api.PayResponse{Success: false, Error: "insufficient balance"}}
	rec := newOutcomeRecorder()
	c := newTestController(t, scanner, settlement, rec, nil)

	require.NoError(t, c.Start(context.Background(), linkParams()))
	rec.wait(t)

	assert.Equal(t, models.StateFailed, c.State())
	assert.Equal(t, "insufficient balance", rec.errMessage)
}

func TestControllerRejectsNegativeTip(t *testing.T) {
	scanner := newFakeScanner(nil)
	rec := newOutcomeRecorder()
	c := newTestController(t, scanner, &fakeSettlement{}, rec, nil)

	params := linkParams()
	params.TipAmount = decimal.RequireFromString("-0.01")
	err := c.Start(context.Background(), params)
	require.Error(t, err)
	assert.Equal(t, models.StateIdle, c.State())
}

func TestControllerResetFromTerminalState(t *testing.T) {
	scanner := newFakeScanner(&models.CredentialEvent{Credential: "AB"})
	settlement := &fakeSettlement{resp: &api.PayResponse{Success: true, TxHash: "X"}}
	rec := newOutcomeRecorder()
	c := newTestController(t, scanner, settlement, rec, nil)

	require.NoError(t, c.Start(context.Background(), linkParams()))
	rec.wait(t)
	require.Equal(t, models.StateSucceeded, c.State())

	c.Reset()
	assert.Equal(t, models.StateIdle, c.State())
	assert.Nil(t, c.Snapshot().LastError)
}

func TestControllerUnsupportedTransport(t *testing.T) {
	scanner := newFakeScanner(nil)
	scanner.supported = false
	rec := newOutcomeRecorder()
	c := newTestController(t, scanner, &fakeSettlement{}, rec, nil)

	err := c.Start(context.Background(), linkParams())
	require.Error(t, err)

	var serr *models.SessionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, models.ErrUnsupported, serr.Kind)
	assert.Equal(t, models.StateIdle, c.State())
}

func TestClassifyTotality(t *testing.T) {
	tests := []struct {
		name string
		resp *api.PayResponse
		err  error
		want models.OutcomeKind
	}{
		{"success with hash", &api.PayResponse{Success: true, TxHash: "T"}, nil, models.OutcomeSucceeded},
		{"success without hash", &api.PayResponse{Success: true}, nil, models.OutcomeFailed},
		{"card not recognized", &api.PayResponse{Error: "Card not recognized"}, nil, models.OutcomeNotRegistered},
		{"wallet not found", &api.PayResponse{Error: "wallet not found"}, nil, models.OutcomeNotRegistered},
		{"card not linked", &api.PayResponse{Error: "card not linked to wallet"}, nil, models.OutcomeNotRegistered},
		{"payer not registered", &api.PayResponse{Error: "payer not registered"}, nil, models.OutcomeNotRegistered},
		{"other failure", &api.PayResponse{Error: "insufficient balance"}, nil, models.OutcomeFailed},
		{"empty failure", &api.PayResponse{}, nil, models.OutcomeFailed},
		{"transport error", nil, context.DeadlineExceeded, models.OutcomeFailed},
		{"nil response", nil, nil, models.OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.resp, tt.err)
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}

func TestClassifyGenericMessageOnTransportError(t *testing.T) {
	got := Classify(nil, context.DeadlineExceeded)
	assert.Equal(t, "Payment failed", got.Message)
}
