package session

import (
	"strings"

	"tap-terminal/internal/api"
	"tap-terminal/internal/models"
)

// notRegisteredPhrases is the fixed set of backend wordings that mean the
// payer is unknown rather than the payment having failed. Matching on
// exact backend phrasing is a known coupling; when the backend grows a
// structured error code this table goes away.
var notRegisteredPhrases = []string{
	"not found",
	"not linked",
	"not registered",
	"Card not recognized",
}

const genericFailureMessage = "Payment failed"

// Classify maps every settlement response shape to exactly one outcome.
// A transport or parse error never leaks raw to the caller; it becomes a
// generic failure.
func Classify(resp *api.PayResponse, err error) models.SettlementOutcome {
	if err != nil || resp == nil {
		return models.SettlementOutcome{Kind: models.OutcomeFailed, Message: genericFailureMessage}
	}

	if resp.Success && resp.TxHash != "" {
		return models.SettlementOutcome{
			Kind:      models.OutcomeSucceeded,
			TxHash:    resp.TxHash,
			ReceiptID: resp.ReceiptID,
		}
	}

	for _, phrase := range notRegisteredPhrases {
		if strings.Contains(resp.Error, phrase) {
			return models.SettlementOutcome{Kind: models.OutcomeNotRegistered, Message: resp.Error}
		}
	}

	message := resp.Error
	if message == "" {
		message = genericFailureMessage
	}
	return models.SettlementOutcome{Kind: models.OutcomeFailed, Message: message}
}
