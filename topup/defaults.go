package topup

import (
	"fmt"
	"time"

	"github.com/alovak/topup-playground/internal/sequence"
	"github.com/alovak/topup-playground/topup/models"
)

// Fill sets every empty field of req that has a default, and generates the
// sequence and batch when missing. It is meant for callers (API, CLI); the
// Service itself never fills anything in.
func (d RequestDefaults) Fill(req *models.TransactionRequest, now time.Time) error {
	setDefault(&req.TransactionType, d.TransactionType)
	setDefault(&req.Service, d.Service)
	setDefault(&req.Cashier, d.Cashier)
	setDefault(&req.CashierKey, d.CashierKey)
	setDefault(&req.TerminalID, d.TerminalID)
	setDefault(&req.MerchantID, d.MerchantID)

	if req.Sequence == "" {
		seq, err := sequence.New()
		if err != nil {
			return fmt.Errorf("generating sequence: %w", err)
		}
		req.Sequence = seq
	}
	if req.Batch == "" {
		req.Batch = sequence.Batch(now)
	}
	return nil
}

func setDefault(field *string, def string) {
	if *field == "" {
		*field = def
	}
}
