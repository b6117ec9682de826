package ethledger

import (
	"context"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// fakeClient serves FilterLogs from a slice and fans Send out to every open
// subscription channel.
type fakeClient struct {
	mu      sync.Mutex
	logs    []types.Log
	head    uint64
	queries []ethereum.FilterQuery
	feeds   map[int]chan<- types.Log
	fail    map[int]chan error
	nextID  int
}

func newFakeClient() *fakeClient {
	return &fakeClient{feeds: make(map[int]chan<- types.Log), fail: make(map[int]chan error)}
}

func (c *fakeClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, q)

	var out []types.Log
	for _, l := range c.logs {
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (c *fakeClient) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.feeds[id] = ch
	failCh := make(chan error, 1)
	c.fail[id] = failCh
	c.mu.Unlock()

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer func() {
			c.mu.Lock()
			delete(c.feeds, id)
			delete(c.fail, id)
			c.mu.Unlock()
		}()
		select {
		case <-quit:
			return nil
		case err := <-failCh:
			return err
		}
	}), nil
}

func (c *fakeClient) BlockNumber(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head, nil
}

func (c *fakeClient) Append(l types.Log) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, l)
	c.head = max(c.head, l.BlockNumber)
}

// Send delivers l to every open subscription.
func (c *fakeClient) Send(l types.Log) {
	c.mu.Lock()
	feeds := make([]chan<- types.Log, 0, len(c.feeds))
	for _, ch := range c.feeds {
		feeds = append(feeds, ch)
	}
	c.mu.Unlock()
	for _, ch := range feeds {
		ch <- l
	}
}

// Break fails every open subscription with err.
func (c *fakeClient) Break(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.fail {
		ch <- err
	}
}

func (c *fakeClient) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.feeds)
}

func (c *fakeClient) Queries() []ethereum.FilterQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ethereum.FilterQuery(nil), c.queries...)
}

var _ Client = (*fakeClient)(nil)
