package models

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionState is the lifecycle state of a payment attempt.
type SessionState string

const (
	StateIdle          SessionState = "idle"
	StateScanning      SessionState = "scanning"
	StateProcessing    SessionState = "processing"
	StateSucceeded     SessionState = "succeeded"
	StateNotRegistered SessionState = "not_registered"
	StateFailed        SessionState = "failed"
)

// Terminal reports whether the state ends an attempt.
func (s SessionState) Terminal() bool {
	return s == StateSucceeded || s == StateNotRegistered || s == StateFailed
}

// Transport identifies the proximity channel a credential arrives on.
type Transport string

const (
	TransportNFC   Transport = "nfc"
	TransportSound Transport = "sound"
)

// ErrorKind classifies session failures so callers can distinguish
// "retry" from "redirect to signup" from "hide the affordance".
type ErrorKind string

const (
	ErrUnsupported         ErrorKind = "unsupported"
	ErrPermissionDenied    ErrorKind = "permission_denied"
	ErrMalformedCredential ErrorKind = "malformed_credential"
	ErrTransportFault      ErrorKind = "transport_fault"
	ErrKeyUnavailable      ErrorKind = "key_unavailable"
	ErrNotRegistered       ErrorKind = "not_registered"
	ErrFailure             ErrorKind = "failure"
)

// SessionError is a classified session failure.
type SessionError struct {
	Kind    ErrorKind
	Message string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewSessionError builds a classified error.
func NewSessionError(kind ErrorKind, message string) *SessionError {
	return &SessionError{Kind: kind, Message: message}
}

// RefKind selects which settlement endpoint shape a reference maps to.
type RefKind string

const (
	RefPaymentLink     RefKind = "payment_link"
	RefCheckoutSession RefKind = "checkout_session"
)

// PaymentRef identifies what is being paid: a payment link or a checkout
// session. Exactly one kind applies per session.
type PaymentRef struct {
	Kind RefKind `json:"kind"`
	ID   string  `json:"id"`
}

// PaymentSession is one attempt to collect payer authorization for a
// fixed amount over a chosen transport.
type PaymentSession struct {
	ID        uuid.UUID       `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	TipAmount decimal.Decimal `json:"tip_amount"`
	StoreID   string          `json:"store_id"`
	Ref       PaymentRef      `json:"payment_ref"`
	Transport Transport       `json:"transport"`
	State     SessionState    `json:"state"`
	LastError *SessionError   `json:"-"`
}

// CredentialEvent is the single event a transport scanner emits:
// either a usable credential or a classified failure.
type CredentialEvent struct {
	Credential string
	Err        *SessionError
}

// OutcomeKind is the terminal classification of a settlement response.
type OutcomeKind string

const (
	OutcomeSucceeded     OutcomeKind = "succeeded"
	OutcomeNotRegistered OutcomeKind = "not_registered"
	OutcomeFailed        OutcomeKind = "failed"
)

// SettlementOutcome is the classified result of one settlement call.
type SettlementOutcome struct {
	Kind      OutcomeKind
	TxHash    string
	ReceiptID string
	Message   string
}
