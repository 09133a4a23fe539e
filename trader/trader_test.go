package trader

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tr := New(1, 500)
	assert.Equal(t, uint64(1), tr.ID())
	assert.Equal(t, uint64(500), tr.Balance())
}

func TestCreditDebit(t *testing.T) {
	tr := New(1, 100)

	tr.Credit(50)
	assert.Equal(t, uint64(150), tr.Balance())

	require.True(t, tr.Debit(150))
	assert.Equal(t, uint64(0), tr.Balance())
}

func TestDebit_InsufficientFunds(t *testing.T) {
	tr := New(1, 10)

	ok := tr.Debit(11)
	assert.False(t, ok)
	assert.Equal(t, uint64(10), tr.Balance(), "failed debit must not change the balance")
}

func TestCredit_SaturatesOnOverflow(t *testing.T) {
	tr := New(1, ^uint64(0)-5)

	tr.Credit(100)
	assert.Equal(t, ^uint64(0), tr.Balance())
}

// TestDebit_ConcurrentNeverOverdraws hammers a single Trader with
// concurrent debits that collectively exceed the balance, and checks that
// the number of successful debits times the debit size never exceeds the
// starting balance.
func TestDebit_ConcurrentNeverOverdraws(t *testing.T) {
	const starting = 1000
	const debitSize = 7
	tr := New(1, starting)

	var wg sync.WaitGroup
	var successes atomicCounter
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.Debit(debitSize) {
				successes.inc()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, successes.get()*debitSize, uint64(starting))
	assert.Equal(t, uint64(starting)-successes.get()*debitSize, tr.Balance())
}

type atomicCounter struct {
	mu sync.Mutex
	n  uint64
}

func (c *atomicCounter) inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *atomicCounter) get() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
