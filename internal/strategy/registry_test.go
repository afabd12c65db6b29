package strategy

import (
	"testing"
)

func testEntry() Entry {
	return Entry{
		Impl:          NewFixedPrice(),
		Selector:      SelectorFixedTakerBid,
		ProtocolFeeBp: 150,
		MaxFeeBp:      200,
	}
}

func TestRegistryAddAndResolve(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(1, testEntry()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e, err := r.Resolve(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.Active || e.ProtocolFeeBp != 150 || e.Selector != SelectorFixedTakerBid {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestRegistryAddRejections(t *testing.T) {
	r := NewRegistry()

	e := testEntry()
	e.Impl = nil
	requireErr(t, r.Add(1, e), ErrNilStrategy)

	e = testEntry()
	e.Selector = [4]byte{}
	requireErr(t, r.Add(1, e), ErrZeroSelector)

	e = testEntry()
	e.ProtocolFeeBp = 300
	requireErr(t, r.Add(1, e), ErrFeeTooHigh)

	if err := r.Add(1, testEntry()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	requireErr(t, r.Add(1, testEntry()), ErrStrategyExists)
}

func TestRegistryUpdate(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(1, testEntry()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	requireErr(t, r.Update(2, true, 100), ErrStrategyNotAvailable)
	requireErr(t, r.Update(1, true, 201), ErrFeeTooHigh)

	if err := r.Update(1, true, 175); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e, err := r.Resolve(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ProtocolFeeBp != 175 {
		t.Fatalf("expected fee 175, got %d", e.ProtocolFeeBp)
	}
}

func TestRegistryRemoveIsLogical(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(1, testEntry()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Remove(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Deactivated ids resolve like unknown ones but stay inspectable.
	if _, err := r.Resolve(1); err == nil {
		t.Fatal("deactivated strategy must not resolve")
	}
	e, exists := r.Inspect(1)
	if !exists || e.Active {
		t.Fatalf("expected inactive entry to remain inspectable, got %+v exists=%v", e, exists)
	}

	// Reactivation through Update.
	if err := r.Update(1, true, 150); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Resolve(1); err != nil {
		t.Fatalf("reactivated strategy must resolve: %v", err)
	}

	requireErr(t, r.Remove(2), ErrStrategyNotAvailable)
}

func TestRegistryResolveUnknown(t *testing.T) {
	r := NewRegistry()
	requireErr(t, mustResolveErr(r, 9), ErrStrategyNotAvailable)
}

func mustResolveErr(r *Registry, id uint16) error {
	_, err := r.Resolve(id)
	return err
}
