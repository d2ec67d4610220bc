package real

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"tap-terminal/internal/interfaces"
)

// The hardware agents on the terminal expose line-oriented device files:
// the NFC reader wedge writes one card serial per tap, the tone modem
// reads and writes one token per line. The modulation scheme lives in the
// modem firmware, not in this process.

// DeviceReader reads one line from a device file per call. Used for both
// the NFC reader and the tone receiver.
type DeviceReader struct {
	path string
	log  *zap.Logger
}

func NewDeviceReader(path string, log *zap.Logger) *DeviceReader {
	return &DeviceReader{path: path, log: log}
}

// Available probes for the device. A missing device means the capability
// is absent on this terminal, not an error.
func (d *DeviceReader) Available() bool {
	if d.path == "" {
		return false
	}
	_, err := os.Stat(d.path)
	return err == nil
}

// Read blocks until the device emits a line or ctx is cancelled. The file
// is closed on cancellation so the hardware actually stops listening.
func (d *DeviceReader) Read(ctx context.Context) (string, error) {
	file, err := os.Open(d.path)
	if err != nil {
		if os.IsPermission(err) {
			return "", fmt.Errorf("opening %s: %w", d.path, interfaces.ErrPermissionDenied)
		}
		return "", fmt.Errorf("opening %s: %w", d.path, err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			file.Close()
		case <-done:
		}
	}()

	line, err := bufio.NewReader(file).ReadString('\n')
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", d.path, err)
	}
	_ = file.Close()

	return strings.TrimSpace(line), nil
}

// Receive satisfies the tone receiver contract with the same line
// protocol.
func (d *DeviceReader) Receive(ctx context.Context) (string, error) {
	return d.Read(ctx)
}

// DeviceWriter writes one line per call; used for the tone modem output
// and the haptic motor.
type DeviceWriter struct {
	path string
	log  *zap.Logger
}

func NewDeviceWriter(path string, log *zap.Logger) *DeviceWriter {
	return &DeviceWriter{path: path, log: log}
}

// Broadcast hands the token to the tone modem; the modem blocks until the
// emission finishes.
func (d *DeviceWriter) Broadcast(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.writeLine(token)
}

// PaymentAccepted fires the success vibration pattern.
func (d *DeviceWriter) PaymentAccepted() {
	// Same triple pulse the payer feels in the web client.
	if err := d.writeLine("50,50,50"); err != nil {
		d.log.Debug("haptic unavailable", zap.Error(err))
	}
}

func (d *DeviceWriter) writeLine(line string) error {
	if d.path == "" {
		return fmt.Errorf("no device path configured")
	}
	file, err := os.OpenFile(d.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("opening %s: %w", d.path, err)
	}
	defer file.Close()

	if _, err := file.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("writing %s: %w", d.path, err)
	}
	return nil
}
