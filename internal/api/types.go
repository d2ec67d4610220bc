package api

import "github.com/shopspring/decimal"

// Wire types for the settlement backend. Field names follow the backend
// contract exactly; do not rename.

// PayRequest is the body of both settlement endpoint forms. CardUID is set
// on the NFC path, PayerWallet and PaymentType on the sound path.
type PayRequest struct {
	CardUID        string          `json:"card_uid,omitempty"`
	PayerWallet    string          `json:"payer_wallet,omitempty"`
	TipAmount      decimal.Decimal `json:"tip_amount"`
	SplitPaymentID string          `json:"split_payment_id,omitempty"`
	PaymentType    string          `json:"payment_type,omitempty"`
}

// PayResponse is the settlement backend's answer for either endpoint form.
type PayResponse struct {
	Success   bool   `json:"success"`
	TxHash    string `json:"tx_hash,omitempty"`
	ReceiptID string `json:"receipt_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SoundTokenRequest asks the backend for a one-time broadcast token.
type SoundTokenRequest struct {
	PaymentID string `json:"payment_id"`
	StoreID   string `json:"store_id"`
	APISecret string `json:"api_secret"`
}

// SoundTokenResponse carries the issued token.
type SoundTokenResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SoundPayRequest verifies a received token and marks it used.
type SoundPayRequest struct {
	Token          string `json:"token"`
	CustomerWallet string `json:"customer_wallet"`
}

// SoundPayResponse is the token verification result.
type SoundPayResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SoundRedeemResponse describes the pending payment a token points at,
// shown to the payer before confirming.
type SoundRedeemResponse struct {
	Success   bool            `json:"success"`
	PaymentID string          `json:"payment_id,omitempty"`
	StoreID   string          `json:"store_id,omitempty"`
	StoreName string          `json:"store_name,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Error     string          `json:"error,omitempty"`
}

// APIError is the generic error body of the local terminal API.
type APIError struct {
	Error string `json:"error"`
}
