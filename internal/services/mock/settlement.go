package mock

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tap-terminal/internal/api"
	"tap-terminal/internal/models"
)

// MockSettlement answers settlement calls from a fixed set of registered
// payers, so standalone terminals exercise every outcome: the first two
// mock cards settle, the third is unknown.
type MockSettlement struct {
	log *zap.Logger

	registeredCards   map[string]bool
	registeredWallets map[string]bool
	counter           int
}

func NewMockSettlement(log *zap.Logger) *MockSettlement {
	return &MockSettlement{
		log: log.Named("mock.settlement"),
		registeredCards: map[string]bool{
			"045B070AFD7580": true,
			"04913C22B80155": true,
		},
		registeredWallets: map[string]bool{
			"rDEMOWALLETPAYER1": true,
		},
	}
}

func (m *MockSettlement) Pay(ctx context.Context, ref models.PaymentRef, storeID string, req api.PayRequest) (*api.PayResponse, error) {
	m.log.Debug("settlement call",
		zap.String("ref_kind", string(ref.Kind)),
		zap.String("card_uid", req.CardUID),
		zap.String("payer_wallet", req.PayerWallet))

	select {
	case <-time.After(200 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	switch {
	case req.CardUID != "" && !m.registeredCards[req.CardUID]:
		return &api.PayResponse{Success: false, Error: "Card not recognized"}, nil
	case req.PayerWallet != "" && !m.registeredWallets[req.PayerWallet]:
		return &api.PayResponse{Success: false, Error: "wallet not found"}, nil
	case req.CardUID == "" && req.PayerWallet == "":
		return &api.PayResponse{Success: false, Error: "missing payer"}, nil
	}

	m.counter++
	return &api.PayResponse{
		Success:   true,
		TxHash:    fmt.Sprintf("MOCKTX%06d", m.counter),
		ReceiptID: fmt.Sprintf("receipt-%06d", m.counter),
	}, nil
}
