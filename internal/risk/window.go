package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// spendEntry is one admitted outflow.
type spendEntry struct {
	at     time.Time
	amount decimal.Decimal
}

// spendWindow is a bounded ring buffer of recent outflows. Entries older
// than the window are pruned lazily on access; nothing here is persisted;
// this is an in-memory safety governor, not an audit log.
//
// Not safe for concurrent use on its own; the Gate's mutex guards it.
type spendWindow struct {
	entries []spendEntry
	head    int // index of oldest entry
	count   int
	dur     time.Duration
}

func newSpendWindow(dur time.Duration, capacity int) *spendWindow {
	if capacity <= 0 {
		capacity = 1024
	}
	return &spendWindow{entries: make([]spendEntry, capacity), dur: dur}
}

// prune drops entries that have aged out of the window.
func (w *spendWindow) prune(now time.Time) {
	cutoff := now.Add(-w.dur)
	for w.count > 0 && !w.entries[w.head].at.After(cutoff) {
		w.entries[w.head] = spendEntry{}
		w.head = (w.head + 1) % len(w.entries)
		w.count--
	}
}

// sum returns the total of in-window entries. Callers prune first.
func (w *spendWindow) sum() decimal.Decimal {
	total := decimal.Zero
	for i := 0; i < w.count; i++ {
		total = total.Add(w.entries[(w.head+i)%len(w.entries)].amount)
	}
	return total
}

// push records a spend. Returns false when the ring is full; the caller
// treats that as a rejection (fail closed, never silently drop an entry).
func (w *spendWindow) push(now time.Time, amount decimal.Decimal) bool {
	if w.count == len(w.entries) {
		return false
	}
	w.entries[(w.head+w.count)%len(w.entries)] = spendEntry{at: now, amount: amount}
	w.count++
	return true
}

// oldestExpiry returns how long until the oldest in-window entry ages out.
// Zero when the window is empty.
func (w *spendWindow) oldestExpiry(now time.Time) time.Duration {
	if w.count == 0 {
		return 0
	}
	d := w.entries[w.head].at.Add(w.dur).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// refund removes the most recent entry matching the amount. Used when a
// submission definitively failed venue-side and the money never left.
func (w *spendWindow) refund(amount decimal.Decimal) bool {
	for i := w.count - 1; i >= 0; i-- {
		idx := (w.head + i) % len(w.entries)
		if w.entries[idx].amount.Equal(amount) {
			// shift the tail down over the removed slot
			for j := i; j < w.count-1; j++ {
				from := (w.head + j + 1) % len(w.entries)
				to := (w.head + j) % len(w.entries)
				w.entries[to] = w.entries[from]
			}
			w.entries[(w.head+w.count-1)%len(w.entries)] = spendEntry{}
			w.count--
			return true
		}
	}
	return false
}
