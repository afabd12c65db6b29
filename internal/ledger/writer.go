// Package ledger persists settlement outcomes to Redis so indexers and
// operator tooling can read fills and cancellations without touching the
// engine. Writes are buffered and flushed off the settlement path.
package ledger

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tidepool-markets/tidepool/internal/order"
	"github.com/tidepool-markets/tidepool/internal/settlement"
)

// RedisClient abstracts the Redis operations used by the Writer.
// In production this is satisfied by *redis.Client; in tests by a mock.
type RedisClient interface {
	HSet(ctx context.Context, key string, values ...any) error
}

// entry is one buffered write: a key plus field/value pairs.
type entry struct {
	key    string
	fields []any
}

// Writer records fulfillments and nonce transitions using the schema:
//
//	Key:    fill:{collection}:{order_hash}
//	Fields: kind, maker, taker, strategy, price, ts
//
//	Key:    nonce:{user}
//	Fields: ask, bid (counters), cancelled (order nonces), subsets
//
// Writes are non-blocking: events are buffered in an internal channel and
// flushed by a dedicated goroutine. A fulfillment for an already-written
// order hash is suppressed.
type Writer struct {
	client RedisClient
	buf    chan entry

	mu   sync.Mutex
	seen map[string]struct{} // order hashes already written
}

// NewWriter creates a Writer over the given Redis client.
func NewWriter(client RedisClient) *Writer {
	return &Writer{
		client: client,
		buf:    make(chan entry, 1024),
		seen:   make(map[string]struct{}),
	}
}

// Run flushes buffered entries to Redis until ctx is cancelled.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-w.buf:
			if !ok {
				return
			}
			if err := w.client.HSet(ctx, e.key, e.fields...); err != nil {
				log.Printf("ledger: hset %s failed: %v", e.key, err)
			}
		}
	}
}

// Fulfilled implements settlement.Publisher.
func (w *Writer) Fulfilled(f settlement.Fulfillment) {
	hash := f.OrderHash.Hex()

	w.mu.Lock()
	if _, dup := w.seen[hash]; dup {
		w.mu.Unlock()
		return
	}
	w.seen[hash] = struct{}{}
	w.mu.Unlock()

	w.enqueue(entry{
		key: fmt.Sprintf("fill:%s:%s", f.Collection.Hex(), hash),
		fields: []any{
			"kind", f.Kind.String(),
			"maker", f.Maker.Hex(),
			"taker", f.Taker.Hex(),
			"strategy", strconv.FormatUint(uint64(f.StrategyID), 10),
			"price", f.Price.String(),
			"ts", strconv.FormatInt(f.ExecutedAt, 10),
		},
	})
}

// NonceIncremented implements nonce.Journal.
func (w *Writer) NonceIncremented(user common.Address, side order.Side, newValue uint64) {
	w.enqueue(entry{
		key:    "nonce:" + user.Hex(),
		fields: []any{side.String(), strconv.FormatUint(newValue, 10)},
	})
}

// OrderNoncesCancelled implements nonce.Journal.
func (w *Writer) OrderNoncesCancelled(user common.Address, nonces []uint64) {
	w.enqueue(entry{
		key:    "nonce:" + user.Hex(),
		fields: []any{"cancelled", joinNonces(nonces)},
	})
}

// SubsetNoncesCancelled implements nonce.Journal.
func (w *Writer) SubsetNoncesCancelled(user common.Address, nonces []uint64) {
	w.enqueue(entry{
		key:    "nonce:" + user.Hex(),
		fields: []any{"subsets", joinNonces(nonces)},
	})
}

func (w *Writer) enqueue(e entry) {
	select {
	case w.buf <- e:
	default:
		log.Printf("ledger: buffer full, dropping write for %s", e.key)
	}
}

func joinNonces(nonces []uint64) string {
	parts := make([]string, len(nonces))
	for i, n := range nonces {
		parts[i] = strconv.FormatUint(n, 10)
	}
	return strings.Join(parts, ",")
}
