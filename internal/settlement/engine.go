// Package settlement is the protocol orchestrator. It ties the order
// hasher, signature verifier, nonce manager, strategy registry, and fee
// schedule together per trade, delegates asset movement to an external
// TransferExecutor, and emits fulfillment events.
package settlement

import (
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tidepool-markets/tidepool/internal/fees"
	"github.com/tidepool-markets/tidepool/internal/nonce"
	"github.com/tidepool-markets/tidepool/internal/order"
	"github.com/tidepool-markets/tidepool/internal/signature"
	"github.com/tidepool-markets/tidepool/internal/strategy"
)

var (
	ErrReentrancy        = errors.New("reentrant settlement call")
	ErrBatchProofInvalid = errors.New("merkle batch proof does not cover order")
	ErrEmptyTradeBatch   = errors.New("empty trade batch")
)

// TransferExecutor moves assets between parties. It is the external
// collaborator boundary: implementations may call arbitrary code, so the
// engine completes all validation before invoking it and holds its
// reentrancy guard for the duration of the call.
type TransferExecutor interface {
	TransferSingle(collection common.Address, assetType order.AssetType, from, to common.Address, itemID, amount *big.Int) error
	TransferBatch(collection common.Address, assetType order.AssetType, from, to common.Address, itemIDs, amounts []*big.Int) error
	TransferBatchAcrossCollections(collections []common.Address, assetTypes []order.AssetType, from, to common.Address, itemIDs, amounts [][]*big.Int) error
}

// Clock supplies unix seconds; injected for testability.
type Clock func() int64

// Engine executes trades. It is strictly serial: a transaction-scoped
// guard rejects any nested re-entry (contract-wallet signature callbacks
// and transfer hooks can run arbitrary code), so no caller can observe or
// mutate nonce or strategy state mid-trade.
type Engine struct {
	hasher     *order.Hasher
	verifier   *signature.Verifier
	nonces     *nonce.Manager
	strategies *strategy.Registry
	schedule   *fees.Schedule
	currencies map[common.Address]bool
	executor   TransferExecutor
	publisher  Publisher
	now        Clock

	entered atomic.Bool
}

// Config collects the engine's collaborators.
type Config struct {
	Hasher     *order.Hasher
	Verifier   *signature.Verifier
	Nonces     *nonce.Manager
	Strategies *strategy.Registry
	Schedule   *fees.Schedule
	Currencies []common.Address
	Executor   TransferExecutor
	Publisher  Publisher // may be nil
	Now        Clock     // defaults to time.Now().Unix
}

// NewEngine wires an Engine from its collaborators.
func NewEngine(cfg Config) *Engine {
	now := cfg.Now
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	currencies := make(map[common.Address]bool, len(cfg.Currencies))
	for _, c := range cfg.Currencies {
		currencies[c] = true
	}
	return &Engine{
		hasher:     cfg.Hasher,
		verifier:   cfg.Verifier,
		nonces:     cfg.Nonces,
		strategies: cfg.Strategies,
		schedule:   cfg.Schedule,
		currencies: currencies,
		executor:   cfg.Executor,
		publisher:  cfg.Publisher,
		now:        now,
	}
}

// ExecuteTakerBid settles a taker buying against a maker ask.
func (e *Engine) ExecuteTakerBid(t Trade) (Fulfillment, error) {
	t.Kind = TakerBid
	return e.Execute(t)
}

// ExecuteTakerAsk settles a taker selling into a maker bid.
func (e *Engine) ExecuteTakerAsk(t Trade) (Fulfillment, error) {
	t.Kind = TakerAsk
	return e.Execute(t)
}

// Execute runs one trade end to end under the reentrancy guard.
func (e *Engine) Execute(t Trade) (Fulfillment, error) {
	if !e.entered.CompareAndSwap(false, true) {
		return Fulfillment{}, ErrReentrancy
	}
	defer e.entered.Store(false)

	f, err := e.validate(&t, nil)
	if err != nil {
		return Fulfillment{}, err
	}
	return e.apply(&t, f)
}

// ExecuteBatch settles several trades. In atomic mode every trade is
// validated (including intra-batch nonce replays) before any state
// changes; one invalid trade fails the whole batch. In best-effort mode
// each trade settles independently and the per-trade errors are returned
// alongside the fulfillments.
func (e *Engine) ExecuteBatch(trades []Trade, atomic bool) ([]Fulfillment, []error, error) {
	if len(trades) == 0 {
		return nil, nil, ErrEmptyTradeBatch
	}
	if !e.entered.CompareAndSwap(false, true) {
		return nil, nil, ErrReentrancy
	}
	defer e.entered.Store(false)

	if atomic {
		pending := make(map[common.Address]map[uint64]struct{})
		staged := make([]Fulfillment, len(trades))
		for i := range trades {
			f, err := e.validate(&trades[i], pending)
			if err != nil {
				return nil, nil, fmt.Errorf("trade %d: %w", i, err)
			}
			staged[i] = f
		}
		fills := make([]Fulfillment, 0, len(trades))
		for i := range trades {
			f, err := e.apply(&trades[i], staged[i])
			if err != nil {
				// Validation already passed; only the external transfer
				// leg can fail here, and it aborts the rest.
				return fills, nil, fmt.Errorf("trade %d: %w", i, err)
			}
			fills = append(fills, f)
		}
		return fills, nil, nil
	}

	fills := make([]Fulfillment, len(trades))
	errs := make([]error, len(trades))
	for i := range trades {
		f, err := e.validate(&trades[i], nil)
		if err == nil {
			f, err = e.apply(&trades[i], f)
		}
		fills[i], errs[i] = f, err
	}
	return fills, errs, nil
}

// validate runs every check for a trade without mutating state and stages
// the resulting fulfillment. pending tracks nonce consumption staged by
// earlier trades of an atomic batch.
func (e *Engine) validate(t *Trade, pending map[common.Address]map[uint64]struct{}) (Fulfillment, error) {
	if err := e.preflight(t); err != nil {
		return Fulfillment{}, err
	}

	// Signature over the order digest, or over the batch-root digest with
	// a membership proof for the order's hash.
	orderHash := e.hasher.Hash(t.Maker)
	digest := e.hasher.Digest(t.Maker)
	if t.Batch != nil {
		if !order.VerifyProof(t.Batch.Root, orderHash, t.Batch.Proof) {
			return Fulfillment{}, ErrBatchProofInvalid
		}
		digest = e.hasher.BatchDigest(t.Batch.Root)
	}
	if err := e.verifier.Verify(digest, t.Maker.Signer, t.MakerSignature); err != nil {
		return Fulfillment{}, err
	}

	if err := e.nonces.Validate(t.Maker); err != nil {
		return Fulfillment{}, err
	}
	if pending != nil {
		if consumed, ok := pending[t.Maker.Signer]; ok {
			if _, hit := consumed[t.Maker.OrderNonce]; hit {
				return Fulfillment{}, nonce.ErrOrderNonceCancelled
			}
		}
	}

	entry, err := e.strategies.Resolve(t.Maker.StrategyID)
	if err != nil {
		return Fulfillment{}, err
	}

	var exec strategy.Execution
	switch t.Kind {
	case TakerBid:
		exec, err = entry.Impl.ExecuteTakerBid(t.Taker, t.Maker, entry.Selector)
	default:
		exec, err = entry.Impl.ExecuteTakerAsk(t.Taker, t.Maker, entry.Selector)
	}
	if err != nil {
		return Fulfillment{}, err
	}

	breakdown, err := e.schedule.Compute(entry.ProtocolFeeBp, exec.Price, t.Maker.Collection, exec.ItemIDs, t.Affiliate)
	if err != nil {
		return Fulfillment{}, err
	}

	if pending != nil && exec.InvalidateNonce {
		consumed, ok := pending[t.Maker.Signer]
		if !ok {
			consumed = make(map[uint64]struct{})
			pending[t.Maker.Signer] = consumed
		}
		consumed[t.Maker.OrderNonce] = struct{}{}
	}

	return Fulfillment{
		Kind:       t.Kind,
		OrderHash:  orderHash,
		Maker:      t.Maker.Signer,
		Taker:      t.Taker.Recipient,
		StrategyID: t.Maker.StrategyID,
		Collection: t.Maker.Collection,
		Currency:   t.Maker.Currency,
		ItemIDs:    exec.ItemIDs,
		Amounts:    exec.Amounts,
		Price:      exec.Price,
		Fees:       breakdown,
		ExecutedAt: e.now(),

		invalidateNonce: exec.InvalidateNonce,
	}, nil
}

// apply commits a validated trade: the external transfer leg first, then
// nonce consumption, then the event. A failed transfer aborts the trade
// with no state change, so the order stays executable. The reentrancy
// guard is still held across the transfer, so nothing can replay the
// order before its nonce is consumed.
func (e *Engine) apply(t *Trade, f Fulfillment) (Fulfillment, error) {
	assetFrom, assetTo := f.Maker, f.Taker
	if t.Kind == TakerAsk {
		assetFrom, assetTo = f.Taker, f.Maker
	}

	var err error
	if len(f.ItemIDs) == 1 {
		err = e.executor.TransferSingle(f.Collection, t.Maker.AssetType, assetFrom, assetTo, f.ItemIDs[0], f.Amounts[0])
	} else {
		err = e.executor.TransferBatch(f.Collection, t.Maker.AssetType, assetFrom, assetTo, f.ItemIDs, f.Amounts)
	}
	if err != nil {
		return Fulfillment{}, fmt.Errorf("asset transfer: %w", err)
	}

	if f.invalidateNonce {
		e.nonces.Consume(t.Maker.Signer, t.Maker.OrderNonce)
	}

	if e.publisher != nil {
		e.publisher.Fulfilled(f)
	}
	log.Printf("settlement: %s order %s filled at %s (%d items)",
		f.Kind, f.OrderHash.Hex(), f.Price.String(), len(f.ItemIDs))
	return f, nil
}

// CancelAllOrders bumps both of the caller's direction counters,
// invalidating every outstanding signed order.
func (e *Engine) CancelAllOrders(user common.Address) (askNonce, bidNonce uint64) {
	askNonce = e.nonces.IncrementAskNonce(user)
	bidNonce = e.nonces.IncrementBidNonce(user)
	return askNonce, bidNonce
}

// CancelOrderNonces forwards targeted cancellation to the nonce manager.
func (e *Engine) CancelOrderNonces(user common.Address, nonces []uint64) error {
	return e.nonces.CancelOrderNonces(user, nonces)
}

// CancelSubsetNonces forwards subset cancellation to the nonce manager.
func (e *Engine) CancelSubsetNonces(user common.Address, nonces []uint64) error {
	return e.nonces.CancelSubsetNonces(user, nonces)
}
