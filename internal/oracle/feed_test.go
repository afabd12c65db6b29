package oracle

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestMemoryFeedEmpty(t *testing.T) {
	f := NewMemoryFeed()
	if _, _, err := f.LatestRoundData(); !errors.Is(err, ErrNoRoundData) {
		t.Fatalf("expected ErrNoRoundData, got %v", err)
	}
}

func TestMemoryFeedUpdate(t *testing.T) {
	f := NewMemoryFeed()
	f.Update(big.NewInt(2500), 1700000000)

	answer, updatedAt, err := f.LatestRoundData()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer.Int64() != 2500 || updatedAt != 1700000000 {
		t.Fatalf("unexpected round: %s @ %d", answer, updatedAt)
	}
}

func TestMemoryFeedCopiesAnswer(t *testing.T) {
	f := NewMemoryFeed()
	src := big.NewInt(100)
	f.Update(src, 1)
	src.SetInt64(999)

	answer, _, err := f.LatestRoundData()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer.Int64() != 100 {
		t.Fatalf("feed must copy the answer, got %s", answer)
	}

	answer.SetInt64(777)
	again, _, _ := f.LatestRoundData()
	if again.Int64() != 100 {
		t.Fatalf("returned answer must be a copy, got %s", again)
	}
}

func TestFeedRegistryBindOnce(t *testing.T) {
	collection := common.HexToAddress("0x3333333333333333333333333333333333333333")
	r := NewFeedRegistry(false)

	if err := r.Bind(collection, nil, time.Hour); !errors.Is(err, ErrNilFeed) {
		t.Fatalf("expected ErrNilFeed, got %v", err)
	}

	feed := NewMemoryFeed()
	if err := r.Bind(collection, feed, time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Bind(collection, NewMemoryFeed(), time.Hour); !errors.Is(err, ErrFeedAlreadySet) {
		t.Fatalf("expected ErrFeedAlreadySet, got %v", err)
	}

	b, err := r.Lookup(collection)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Feed != feed || b.MaxLatency != time.Hour {
		t.Fatal("lookup returned a different binding")
	}
}

func TestFeedRegistryRebind(t *testing.T) {
	collection := common.HexToAddress("0x3333333333333333333333333333333333333333")
	r := NewFeedRegistry(true)

	if err := r.Bind(collection, NewMemoryFeed(), time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	replacement := NewMemoryFeed()
	if err := r.Bind(collection, replacement, time.Minute); err != nil {
		t.Fatalf("rebind should be allowed: %v", err)
	}

	b, err := r.Lookup(collection)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Feed != replacement {
		t.Fatal("rebind did not replace the feed")
	}
}

func TestFeedRegistryLookupUnbound(t *testing.T) {
	r := NewFeedRegistry(false)
	if _, err := r.Lookup(common.HexToAddress("0x01")); !errors.Is(err, ErrFeedNotBound) {
		t.Fatalf("expected ErrFeedNotBound, got %v", err)
	}
}
