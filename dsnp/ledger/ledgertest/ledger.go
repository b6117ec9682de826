// Package ledgertest provides an in-memory ledger.Provider for tests.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/ledger"
)

var ErrRangeTooLarge = errors.New("block range exceeds provider limit")

// Range is one recorded GetLogs call.
type Range struct {
	From, To uint64
}

// Ledger is a synthetic chain. Logs are appended with Append (history only)
// or Push (history plus live listeners).
type Ledger struct {
	mu        sync.Mutex
	logs      []ledger.Log
	head      uint64
	listeners map[ledger.Handle]listener
	nextID    ledger.Handle
	calls     []Range

	// MaxRange rejects GetLogs calls spanning more blocks. Zero disables it.
	MaxRange uint64
	// GetLogsErr, when set, is returned by every GetLogs call.
	GetLogsErr error
	// HeadErr, when set, is returned by CurrentBlockNumber.
	HeadErr error
	// BeforeGetLogs runs at the start of GetLogs without the lock held.
	BeforeGetLogs func(from, to uint64)
}

type listener struct {
	filter ledger.Filter
	cb     func(ledger.Log)
}

// New returns an empty ledger at block 0.
func New() *Ledger {
	return &Ledger{listeners: make(map[ledger.Handle]listener)}
}

// Append records l without notifying listeners. The log index is assigned
// per block and the head advances to cover it.
func (m *Ledger) Append(l ledger.Log) ledger.Log {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(l)
}

func (m *Ledger) appendLocked(l ledger.Log) ledger.Log {
	var idx uint
	for _, existing := range m.logs {
		if existing.BlockNumber == l.BlockNumber {
			idx++
		}
	}
	l.LogIndex = idx
	if l.BlockHash == "" {
		l.BlockHash = fmt.Sprintf("0x%064x", l.BlockNumber)
	}
	m.logs = append(m.logs, l)
	m.head = max(m.head, l.BlockNumber)
	return l
}

// Push appends l and delivers it to every matching listener.
func (m *Ledger) Push(l ledger.Log) ledger.Log {
	m.mu.Lock()
	l = m.appendLocked(l)
	m.mu.Unlock()
	m.Emit(l)
	return l
}

// Emit delivers l to matching listeners without recording it. It simulates
// a node re-sending a log already in history.
func (m *Ledger) Emit(l ledger.Log) {
	m.mu.Lock()
	targets := make([]listener, 0, len(m.listeners))
	for _, ln := range m.listeners {
		targets = append(targets, ln)
	}
	m.mu.Unlock()

	for _, ln := range targets {
		if ln.filter.Matches(l) {
			ln.cb(l)
		}
	}
}

// SetHead moves the head without producing logs.
func (m *Ledger) SetHead(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head = n
}

// Calls returns every GetLogs range requested so far.
func (m *Ledger) Calls() []Range {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Range(nil), m.calls...)
}

// Listeners returns the number of registered listeners.
func (m *Ledger) Listeners() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func (m *Ledger) GetLogs(ctx context.Context, filter ledger.Filter, from, to uint64) ([]ledger.Log, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.BeforeGetLogs != nil {
		m.BeforeGetLogs(from, to)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Range{From: from, To: to})
	if m.GetLogsErr != nil {
		return nil, m.GetLogsErr
	}
	if m.MaxRange > 0 && to-from+1 > m.MaxRange {
		return nil, fmt.Errorf("%w: %d blocks", ErrRangeTooLarge, to-from+1)
	}

	var out []ledger.Log
	for _, l := range m.logs {
		if l.BlockNumber >= from && l.BlockNumber <= to && filter.Matches(l) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *Ledger) OnLog(ctx context.Context, filter ledger.Filter, cb func(ledger.Log)) (ledger.Handle, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.listeners[m.nextID] = listener{filter: filter, cb: cb}
	return m.nextID, nil
}

func (m *Ledger) OffLog(h ledger.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, h)
	return nil
}

func (m *Ledger) CurrentBlockNumber(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HeadErr != nil {
		return 0, m.HeadErr
	}
	return m.head, nil
}

var _ ledger.Provider = (*Ledger)(nil)
