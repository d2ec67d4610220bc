package transport

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"tap-terminal/internal/credential"
	"tap-terminal/internal/interfaces"
	"tap-terminal/internal/models"
)

// scanHandle ties one physical scan to its cancel function so a finished
// scan only clears itself, never a newer one.
type scanHandle struct {
	cancel context.CancelFunc
}

// NFCScanner wraps the proximity reader as a single-shot scanner: one
// Start yields at most one credential event, then the scanner stops
// itself. A new Start is required per attempt.
type NFCScanner struct {
	reader interfaces.ProximityReader
	log    *zap.Logger

	mu     sync.Mutex
	active *scanHandle
}

func NewNFCScanner(reader interfaces.ProximityReader, log *zap.Logger) *NFCScanner {
	return &NFCScanner{
		reader: reader,
		log:    log.Named("nfc"),
	}
}

// Supported reports whether the device has a usable reader. Callers hide
// the NFC affordance entirely when this is false.
func (s *NFCScanner) Supported() bool {
	return s.reader != nil && s.reader.Available()
}

// Start begins one scan. No two physical scans run concurrently: a scan
// already in progress is silently stopped first.
func (s *NFCScanner) Start(ctx context.Context) (<-chan models.CredentialEvent, error) {
	if !s.Supported() {
		return nil, models.NewSessionError(models.ErrUnsupported, "no NFC reader on this device")
	}

	scanCtx, cancel := context.WithCancel(ctx)
	handle := &scanHandle{cancel: cancel}

	s.mu.Lock()
	if s.active != nil {
		s.active.cancel()
	}
	s.active = handle
	s.mu.Unlock()

	events := make(chan models.CredentialEvent, 1)

	s.log.Debug("scan started")

	go func() {
		defer close(events)
		defer s.release(handle)

		raw, err := s.reader.Read(scanCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				s.log.Debug("scan cancelled")
				return
			}
			if errors.Is(err, interfaces.ErrPermissionDenied) {
				events <- models.CredentialEvent{Err: models.NewSessionError(models.ErrPermissionDenied, "NFC permission denied")}
				return
			}
			s.log.Warn("reader fault", zap.Error(err))
			events <- models.CredentialEvent{Err: models.NewSessionError(models.ErrTransportFault, "error reading card")}
			return
		}

		uid, err := credential.Normalize(raw)
		if err != nil {
			// Rejected here so a malformed serial never reaches the
			// network layer.
			var serr *models.SessionError
			errors.As(err, &serr)
			events <- models.CredentialEvent{Err: serr}
			return
		}

		s.log.Debug("card read", zap.String("uid", uid))
		events <- models.CredentialEvent{Credential: uid}
	}()

	return events, nil
}

// Stop halts the underlying reader. Idempotent; safe before Start and
// after completion.
func (s *NFCScanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.cancel()
		s.active = nil
	}
}

func (s *NFCScanner) release(handle *scanHandle) {
	handle.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == handle {
		s.active = nil
	}
}
