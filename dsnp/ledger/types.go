package ledger

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
)

var (
	ErrInvalidScanRange = errors.New("invalid scan range")
	ErrInvalidWalkback  = errors.New("invalid walkback")
	ErrNilDecoder       = errors.New("decoder cannot be nil")
	ErrNilCallback      = errors.New("callback cannot be nil")
)

// Log is a raw ledger event log.
type Log struct {
	Address          string
	Topics           []string
	Data             []byte
	BlockNumber      uint64
	BlockHash        string
	TxHash           string
	TransactionIndex uint
	LogIndex         uint
	Removed          bool
}

// Compare orders logs by (BlockNumber, LogIndex).
func Compare(a, b Log) int {
	if c := cmp.Compare(a.BlockNumber, b.BlockNumber); c != 0 {
		return c
	}
	return cmp.Compare(a.LogIndex, b.LogIndex)
}

// SortLogs sorts logs ascending by (BlockNumber, LogIndex).
func SortLogs(logs []Log) {
	slices.SortStableFunc(logs, Compare)
}

// Filter selects logs by emitting address and topics. An empty Addresses
// matches any address; Topics[i] lists the accepted values at position i,
// with an empty list matching anything.
type Filter struct {
	Addresses []string
	Topics    [][]string
}

// Matches applies f to l client-side.
func (f Filter) Matches(l Log) bool {
	if len(f.Addresses) > 0 && !slices.ContainsFunc(f.Addresses, func(a string) bool { return strings.EqualFold(a, l.Address) }) {
		return false
	}
	for i, accepted := range f.Topics {
		if len(accepted) == 0 {
			continue
		}
		if i >= len(l.Topics) {
			return false
		}
		if !slices.ContainsFunc(accepted, func(t string) bool { return strings.EqualFold(t, l.Topics[i]) }) {
			return false
		}
	}
	return true
}

// Handle identifies a registered push listener.
type Handle uint64

// Provider is the ledger node a scanner or subscriber talks to. Errors are
// passed through to callers unchanged; nothing in this package retries.
type Provider interface {
	// GetLogs returns the logs matching filter in [fromBlock, toBlock].
	GetLogs(ctx context.Context, filter Filter, fromBlock, toBlock uint64) ([]Log, error)
	// OnLog registers cb for logs matching filter as they are produced.
	OnLog(ctx context.Context, filter Filter, cb func(Log)) (Handle, error)
	// OffLog removes a listener. A log already being delivered may still
	// reach cb once.
	OffLog(h Handle) error
	// CurrentBlockNumber returns the provider's head block.
	CurrentBlockNumber(ctx context.Context) (uint64, error)
}

// Decoder turns a raw log into a typed value.
type Decoder[T any] func(Log) (T, error)

// Event is a decoded log.
type Event[T any] struct {
	Log
	Value T
}
