package ledger

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tidepool-markets/tidepool/internal/order"
	"github.com/tidepool-markets/tidepool/internal/settlement"
)

// mockRedis records HSet calls and signals each write.
type mockRedis struct {
	mu     sync.Mutex
	writes map[string][]any
	signal chan string
}

func newMockRedis() *mockRedis {
	return &mockRedis{
		writes: make(map[string][]any),
		signal: make(chan string, 64),
	}
}

func (m *mockRedis) HSet(_ context.Context, key string, values ...any) error {
	m.mu.Lock()
	m.writes[key] = values
	m.mu.Unlock()
	m.signal <- key
	return nil
}

func (m *mockRedis) await(t *testing.T) string {
	t.Helper()
	select {
	case key := <-m.signal:
		return key
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a redis write")
		return ""
	}
}

func (m *mockRedis) get(key string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[key]
}

func testFulfillment(seed string) settlement.Fulfillment {
	return settlement.Fulfillment{
		Kind:       settlement.TakerBid,
		OrderHash:  crypto.Keccak256Hash([]byte(seed)),
		Maker:      common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Taker:      common.HexToAddress("0x2222222222222222222222222222222222222222"),
		StrategyID: 1,
		Collection: common.HexToAddress("0x3333333333333333333333333333333333333333"),
		Price:      big.NewInt(1e18),
		ExecutedAt: 1_700_000_000,
	}
}

func runWriter(t *testing.T) (*Writer, *mockRedis) {
	t.Helper()
	client := newMockRedis()
	w := NewWriter(client)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)
	return w, client
}

func TestFulfilledWritesFillRecord(t *testing.T) {
	w, client := runWriter(t)

	f := testFulfillment("order-a")
	w.Fulfilled(f)

	key := client.await(t)
	want := "fill:" + f.Collection.Hex() + ":" + f.OrderHash.Hex()
	if key != want {
		t.Fatalf("expected key %s, got %s", want, key)
	}

	fields := client.get(key)
	if len(fields) != 12 {
		t.Fatalf("expected 12 field/value entries, got %d", len(fields))
	}
	if fields[0] != "kind" || fields[1] != "taker-bid" {
		t.Fatalf("unexpected kind field: %v %v", fields[0], fields[1])
	}
	if fields[8] != "price" || fields[9] != "1000000000000000000" {
		t.Fatalf("unexpected price field: %v %v", fields[8], fields[9])
	}
}

func TestFulfilledSuppressesDuplicates(t *testing.T) {
	w, client := runWriter(t)

	f := testFulfillment("order-b")
	w.Fulfilled(f)
	client.await(t)

	// Same order hash again: suppressed.
	w.Fulfilled(f)
	// A different order still flows through.
	w.Fulfilled(testFulfillment("order-c"))

	key := client.await(t)
	other := testFulfillment("order-c")
	want := "fill:" + other.Collection.Hex() + ":" + other.OrderHash.Hex()
	if key != want {
		t.Fatalf("duplicate was not suppressed, got write for %s", key)
	}
}

func TestNonceJournalWrites(t *testing.T) {
	w, client := runWriter(t)
	user := common.HexToAddress("0x4444444444444444444444444444444444444444")

	w.NonceIncremented(user, order.Ask, 3)
	key := client.await(t)
	if key != "nonce:"+user.Hex() {
		t.Fatalf("unexpected key %s", key)
	}
	fields := client.get(key)
	if fields[0] != "ask" || fields[1] != "3" {
		t.Fatalf("unexpected fields: %v", fields)
	}

	w.OrderNoncesCancelled(user, []uint64{1, 2, 3})
	client.await(t)
	fields = client.get(key)
	if fields[0] != "cancelled" || fields[1] != "1,2,3" {
		t.Fatalf("unexpected fields: %v", fields)
	}

	w.SubsetNoncesCancelled(user, []uint64{9})
	client.await(t)
	fields = client.get(key)
	if fields[0] != "subsets" || fields[1] != "9" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	client := newMockRedis()
	w := NewWriter(client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}
