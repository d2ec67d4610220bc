package services

import (
	"tap-terminal/internal/config"
	"tap-terminal/internal/interfaces"
	"tap-terminal/internal/keysource"
	"tap-terminal/internal/services/mock"
	"tap-terminal/internal/services/real"
	"tap-terminal/internal/telemetry"
	"tap-terminal/internal/walletauth"
)

// Services bundles every external collaborator the terminal depends on.
type Services struct {
	Reader      interfaces.ProximityReader
	Receiver    interfaces.ToneReceiver
	Broadcaster interfaces.ToneBroadcaster
	Ack         interfaces.Acknowledger

	Settlement interfaces.SettlementService
	Tokens     interfaces.SoundTokenService
	Keys       interfaces.KeyMaterialSource
	Auth       interfaces.WalletAuthProvider
}

// CreateServices builds the collaborator set for the configured mode.
// Standalone mode substitutes mocks for hardware and backend so the
// terminal runs end-to-end with no external dependencies.
func CreateServices(cfg *config.Config, cache interfaces.SessionCache, tel *telemetry.Telemetry) *Services {
	log := tel.Log

	if cfg.StandaloneMode {
		broadcaster, receiver := mock.NewMockTonePair(log)
		keys := mock.NewMockKeySource(log)

		return &Services{
			Reader:      mock.NewMockProximityReader(log),
			Receiver:    receiver,
			Broadcaster: broadcaster,
			Ack:         mock.NewMockAcknowledger(log),
			Settlement:  mock.NewMockSettlement(log),
			Tokens:      mock.NewMockSoundTokens(log),
			Keys:        keys,
			Auth:        walletauth.NewProvider(keys, log),
		}
	}

	keys := keysource.NewCacheKeySource(cache, log)
	auth := walletauth.NewProvider(keys, log)
	haptic := real.NewDeviceWriter(cfg.Devices.Haptic, log)

	return &Services{
		Reader:      real.NewDeviceReader(cfg.Devices.NFCReader, log),
		Receiver:    real.NewDeviceReader(cfg.Devices.ToneIn, log),
		Broadcaster: real.NewDeviceWriter(cfg.Devices.ToneOut, log),
		Ack:         haptic,
		Settlement:  real.NewSettlementClient(cfg.Backend.BaseURL, auth, log),
		Tokens:      real.NewSoundTokenClient(cfg.Backend.BaseURL, log),
		Keys:        keys,
		Auth:        auth,
	}
}
