package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/alovak/topup-playground/internal/failure"
	"github.com/shopspring/decimal"
)

const (
	TransactionTypeSale     = "02"
	TransactionTypeReversal = "04"
)

var ErrInvalidRequest = errors.New("invalid transaction request")

var phoneRe = regexp.MustCompile(`^[0-9]{10}$`)

// markupChars are not allowed in any request field: envelope fields are
// written verbatim into the XML body.
const markupChars = `<>&'"`

// TransactionRequest is what a caller hands to the orchestrator. Sequence
// and Batch are expected to be filled in already.
type TransactionRequest struct {
	Provider        string          `json:"provider"`
	Service         string          `json:"service"`
	TransactionType string          `json:"transactionType,omitempty"`
	Sequence        string          `json:"sequence"`
	Batch           string          `json:"batch"`
	Amount          decimal.Decimal `json:"amount"`
	Cashier         string          `json:"cashier"`
	CashierKey      string          `json:"cashierKey"`
	TerminalID      string          `json:"terminalId"`
	MerchantID      string          `json:"merchantId"`
	Phone           string          `json:"phone"`
}

// Type returns the transaction type, "02" when unset.
func (r TransactionRequest) Type() string {
	if r.TransactionType == "" {
		return TransactionTypeSale
	}
	return r.TransactionType
}

// Validate checks the request before anything is sent. Errors wrap
// ErrInvalidRequest and are classified as validation failures.
func (r TransactionRequest) Validate() error {
	if !IsValidPhone(r.Phone) {
		return invalid("phone must be exactly 10 digits")
	}
	if !r.Amount.IsPositive() {
		return invalid("amount must be greater than zero")
	}
	if r.Amount.Shift(2).Round(0).IsZero() {
		return invalid("amount %s rounds to zero cents", r.Amount.String())
	}
	for _, f := range r.textFields() {
		if strings.ContainsAny(f.value, markupChars) {
			return invalid("%s contains a reserved character (one of %s)", f.name, markupChars)
		}
	}
	return nil
}

type namedField struct{ name, value string }

func (r TransactionRequest) textFields() []namedField {
	return []namedField{
		{"provider", r.Provider},
		{"service", r.Service},
		{"transactionType", r.TransactionType},
		{"sequence", r.Sequence},
		{"batch", r.Batch},
		{"cashier", r.Cashier},
		{"cashierKey", r.CashierKey},
		{"terminalId", r.TerminalID},
		{"merchantId", r.MerchantID},
	}
}

// IsValidPhone reports whether s is exactly ten ASCII digits.
func IsValidPhone(s string) bool {
	return phoneRe.MatchString(s)
}

func invalid(format string, a ...any) error {
	return &failure.Error{
		Kind: failure.KindValidation,
		Err:  fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, a...)),
	}
}

// TransactionOutcome is the single result of one orchestration call.
type TransactionOutcome struct {
	Success           bool   `json:"success"`
	ResultBody        string `json:"result"`
	ReversalAttempted bool   `json:"reversalAttempted"`
}
