package mock

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// MockProximityReader simulates the NFC reader wedge: each Read "taps" the
// next card from a fixed test set after a short delay.
type MockProximityReader struct {
	log     *zap.Logger
	serials []string
	index   int
}

func NewMockProximityReader(log *zap.Logger) *MockProximityReader {
	return &MockProximityReader{
		log: log.Named("mock.reader"),
		serials: []string{
			"04:5B:07:0A:FD:75:80",
			"04:91:3C:22:B8:01:55",
			"04:E0:12:9F:0C:44:21",
		},
	}
}

func (m *MockProximityReader) Available() bool { return true }

func (m *MockProximityReader) Read(ctx context.Context) (string, error) {
	m.log.Debug("simulating card tap")

	select {
	case <-time.After(300 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	serial := m.serials[m.index]
	m.index = (m.index + 1) % len(m.serials)

	m.log.Debug("card tapped", zap.String("serial", serial))
	return serial, nil
}

// MockToneReceiver hears the token the mock broadcaster last emitted, so a
// standalone terminal can demo the full sound round trip by itself.
type MockToneReceiver struct {
	log    *zap.Logger
	tokens <-chan string
}

func (m *MockToneReceiver) Available() bool { return true }

func (m *MockToneReceiver) Receive(ctx context.Context) (string, error) {
	m.log.Debug("listening for token")
	select {
	case token := <-m.tokens:
		m.log.Debug("token heard", zap.String("token", token))
		return token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// MockToneBroadcaster "emits" a token by handing it to the paired
// receiver.
type MockToneBroadcaster struct {
	log    *zap.Logger
	tokens chan<- string
}

func (m *MockToneBroadcaster) Broadcast(ctx context.Context, token string) error {
	m.log.Debug("broadcasting token", zap.String("token", token))

	// Roughly the emission time of a short token over audio.
	select {
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case m.tokens <- token:
	default:
	}
	return nil
}

// NewMockTonePair wires a broadcaster and receiver back to back.
func NewMockTonePair(log *zap.Logger) (*MockToneBroadcaster, *MockToneReceiver) {
	tokens := make(chan string, 1)
	return &MockToneBroadcaster{log: log.Named("mock.tone"), tokens: tokens},
		&MockToneReceiver{log: log.Named("mock.tone"), tokens: tokens}
}

// MockAcknowledger stands in for the haptic motor.
type MockAcknowledger struct {
	log *zap.Logger
}

func NewMockAcknowledger(log *zap.Logger) *MockAcknowledger {
	return &MockAcknowledger{log: log.Named("mock.haptic")}
}

func (m *MockAcknowledger) PaymentAccepted() {
	m.log.Info("bzzt bzzt bzzt")
}
