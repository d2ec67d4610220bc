package transport

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"tap-terminal/internal/interfaces"
	"tap-terminal/internal/models"
)

// SoundScanner listens for one audio-borne bearer token. Tokens are opaque
// to this layer; the modulation scheme lives entirely in the receiver
// binding. Same single-shot contract as the NFC scanner.
type SoundScanner struct {
	receiver interfaces.ToneReceiver
	log      *zap.Logger

	mu     sync.Mutex
	active *scanHandle
}

func NewSoundScanner(receiver interfaces.ToneReceiver, log *zap.Logger) *SoundScanner {
	return &SoundScanner{
		receiver: receiver,
		log:      log.Named("sound"),
	}
}

func (s *SoundScanner) Supported() bool {
	return s.receiver != nil && s.receiver.Available()
}

func (s *SoundScanner) Start(ctx context.Context) (<-chan models.CredentialEvent, error) {
	if !s.Supported() {
		return nil, models.NewSessionError(models.ErrUnsupported, "no audio input on this device")
	}

	listenCtx, cancel := context.WithCancel(ctx)
	handle := &scanHandle{cancel: cancel}

	s.mu.Lock()
	if s.active != nil {
		s.active.cancel()
	}
	s.active = handle
	s.mu.Unlock()

	events := make(chan models.CredentialEvent, 1)

	s.log.Debug("listening for token")

	go func() {
		defer close(events)
		defer s.release(handle)

		token, err := s.receiver.Receive(listenCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				s.log.Debug("listen cancelled")
				return
			}
			if errors.Is(err, interfaces.ErrPermissionDenied) {
				events <- models.CredentialEvent{Err: models.NewSessionError(models.ErrPermissionDenied, "microphone permission denied")}
				return
			}
			s.log.Warn("receiver fault", zap.Error(err))
			events <- models.CredentialEvent{Err: models.NewSessionError(models.ErrTransportFault, "error receiving token")}
			return
		}

		token = strings.TrimSpace(token)
		if token == "" {
			events <- models.CredentialEvent{Err: models.NewSessionError(models.ErrTransportFault, "empty token received")}
			return
		}

		s.log.Debug("token received")
		events <- models.CredentialEvent{Credential: token}
	}()

	return events, nil
}

func (s *SoundScanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.cancel()
		s.active = nil
	}
}

func (s *SoundScanner) release(handle *scanHandle) {
	handle.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == handle {
		s.active = nil
	}
}
