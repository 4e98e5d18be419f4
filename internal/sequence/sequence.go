// Package sequence generates the caller-side identifiers of a transaction:
// the per-attempt sequence number and the date based batch id.
package sequence

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// SequenceLen is the number of digits of generated sequence numbers.
const SequenceLen = 6

var maxSequence = big.NewInt(1_000_000)

// New returns a random zero-padded 6-digit sequence number.
func New() (string, error) {
	n, err := rand.Int(rand.Reader, maxSequence)
	if err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	return fmt.Sprintf("%0*d", SequenceLen, n.Int64()), nil
}

// Batch returns the batch id for t as YYMMDD in t's location.
func Batch(t time.Time) string {
	return t.Format("060102")
}
