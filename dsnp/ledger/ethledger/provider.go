// Package ethledger adapts a go-ethereum client to ledger.Provider and
// decodes DSNP batch publication events.
package ethledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/ledger"
)

var (
	ErrInvalidAddress = errors.New("invalid contract address")
	ErrInvalidTopic   = errors.New("invalid topic")
)

// Client is the subset of *ethclient.Client the provider needs.
type Client interface {
	ethereum.LogFilterer
	ethereum.BlockNumberReader
}

// Options configures a Provider.
type Options struct {
	Logger *zerolog.Logger
	// Buffer is the channel capacity per live subscription.
	Buffer int
}

// Provider serves ledger queries from an Ethereum node.
type Provider struct {
	client Client
	log    zerolog.Logger
	buffer int

	mu   sync.Mutex
	next ledger.Handle
	subs map[ledger.Handle]*liveSub
}

type liveSub struct {
	sub  ethereum.Subscription
	done chan struct{}
}

// NewProvider wraps client. Live subscriptions need a client dialled over
// a transport that supports them (websocket or IPC).
func NewProvider(client Client, opts Options) *Provider {
	p := &Provider{
		client: client,
		log:    zerolog.Nop(),
		buffer: opts.Buffer,
		subs:   make(map[ledger.Handle]*liveSub),
	}
	if opts.Logger != nil {
		p.log = opts.Logger.With().Str("component", "eth_provider").Logger()
	}
	if p.buffer <= 0 {
		p.buffer = 128
	}
	return p
}

// Dial connects to rawURL and wraps the client. The returned close function
// releases the connection.
func Dial(ctx context.Context, rawURL string, opts Options) (*Provider, func(), error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	return NewProvider(client, opts), client.Close, nil
}

func (p *Provider) GetLogs(ctx context.Context, filter ledger.Filter, from, to uint64) ([]ledger.Log, error) {
	q, err := Query(filter)
	if err != nil {
		return nil, err
	}
	q.FromBlock = new(big.Int).SetUint64(from)
	q.ToBlock = new(big.Int).SetUint64(to)

	logs, err := p.client.FilterLogs(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Log, len(logs))
	for i, l := range logs {
		out[i] = FromEth(l)
	}
	return out, nil
}

func (p *Provider) OnLog(ctx context.Context, filter ledger.Filter, cb func(ledger.Log)) (ledger.Handle, error) {
	q, err := Query(filter)
	if err != nil {
		return 0, err
	}
	ch := make(chan types.Log, p.buffer)
	sub, err := p.client.SubscribeFilterLogs(ctx, q, ch)
	if err != nil {
		return 0, err
	}

	s := &liveSub{sub: sub, done: make(chan struct{})}
	p.mu.Lock()
	p.next++
	h := p.next
	p.subs[h] = s
	p.mu.Unlock()

	go p.pump(h, s, ch, cb)
	return h, nil
}

func (p *Provider) pump(h ledger.Handle, s *liveSub, ch <-chan types.Log, cb func(ledger.Log)) {
	for {
		select {
		case <-s.done:
			return
		case err := <-s.sub.Err():
			if err != nil {
				p.log.Error().Err(err).Uint64("handle", uint64(h)).Msg("log subscription failed")
			}
			p.remove(h)
			return
		case l := <-ch:
			select {
			case <-s.done:
				return
			default:
			}
			cb(FromEth(l))
		}
	}
}

func (p *Provider) remove(h ledger.Handle) *liveSub {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.subs[h]
	if !ok {
		return nil
	}
	delete(p.subs, h)
	return s
}

// OffLog stops delivery for h. It does not wait for a callback already
// running, so it may be called from inside one.
func (p *Provider) OffLog(h ledger.Handle) error {
	s := p.remove(h)
	if s == nil {
		return nil
	}
	close(s.done)
	s.sub.Unsubscribe()
	return nil
}

func (p *Provider) CurrentBlockNumber(ctx context.Context) (uint64, error) {
	return p.client.BlockNumber(ctx)
}

// Query converts a ledger filter into a go-ethereum filter query without
// block bounds.
func Query(filter ledger.Filter) (ethereum.FilterQuery, error) {
	var q ethereum.FilterQuery
	for _, a := range filter.Addresses {
		if !common.IsHexAddress(a) {
			return q, fmt.Errorf("%w: %q", ErrInvalidAddress, a)
		}
		q.Addresses = append(q.Addresses, common.HexToAddress(a))
	}
	for i, accepted := range filter.Topics {
		var hashes []common.Hash
		for _, t := range accepted {
			b, err := hexutil.Decode(t)
			if err != nil || len(b) != common.HashLength {
				return q, fmt.Errorf("%w at position %d: %q", ErrInvalidTopic, i, t)
			}
			hashes = append(hashes, common.BytesToHash(b))
		}
		q.Topics = append(q.Topics, hashes)
	}
	return q, nil
}

// FromEth converts a go-ethereum log.
func FromEth(l types.Log) ledger.Log {
	topics := make([]string, len(l.Topics))
	for i, t := range l.Topics {
		topics[i] = t.Hex()
	}
	return ledger.Log{
		Address:          l.Address.Hex(),
		Topics:           topics,
		Data:             l.Data,
		BlockNumber:      l.BlockNumber,
		BlockHash:        l.BlockHash.Hex(),
		TxHash:           l.TxHash.Hex(),
		TransactionIndex: l.TxIndex,
		LogIndex:         l.Index,
		Removed:          l.Removed,
	}
}

// ToEth is the inverse of FromEth.
func ToEth(l ledger.Log) types.Log {
	topics := make([]common.Hash, len(l.Topics))
	for i, t := range l.Topics {
		topics[i] = common.HexToHash(t)
	}
	return types.Log{
		Address:     common.HexToAddress(l.Address),
		Topics:      topics,
		Data:        l.Data,
		BlockNumber: l.BlockNumber,
		BlockHash:   common.HexToHash(l.BlockHash),
		TxHash:      common.HexToHash(l.TxHash),
		TxIndex:     l.TransactionIndex,
		Index:       l.LogIndex,
		Removed:     l.Removed,
	}
}

var _ ledger.Provider = (*Provider)(nil)
