package ledger

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	PrefixTransfer   = "tx"
	PrefixWithdrawal = "wd"
	PrefixDeposit    = "dp"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a time-ordered identifier such as "tx_01HZ...".
func NewID(prefix string) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return prefix + "_" + id.String()
}
