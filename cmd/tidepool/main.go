package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/tidepool-markets/tidepool/internal/config"
	"github.com/tidepool-markets/tidepool/internal/fees"
	"github.com/tidepool-markets/tidepool/internal/ledger"
	"github.com/tidepool-markets/tidepool/internal/nonce"
	"github.com/tidepool-markets/tidepool/internal/oracle"
	"github.com/tidepool-markets/tidepool/internal/order"
	"github.com/tidepool-markets/tidepool/internal/settlement"
	"github.com/tidepool-markets/tidepool/internal/signature"
	"github.com/tidepool-markets/tidepool/internal/strategy"
)

// Strategy ids for the stock deployment. Signed maker orders reference
// these, so they must never be renumbered.
const (
	strategyFixedPriceAsk uint16 = iota + 1
	strategyFixedPriceBid
	strategyFloorPremiumFixed
	strategyFloorPremiumBp
	strategyFloorDiscountFixed
	strategyFloorDiscountBp
	strategyUSDDynamicAsk
	strategyCollectionOffer
	strategyCollectionOfferProof
)

const (
	defaultProtocolFeeBp = 150
	maxProtocolFeeBp     = 200
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Tidepool settlement engine starting (env=%s, chain=%d)\n", cfg.Env, cfg.Protocol.ChainID)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	writer := ledger.NewWriter(&redisAdapter{rdb})
	go writer.Run(ctx)

	maxLatency := time.Duration(cfg.Oracle.MaxLatencySec) * time.Second
	feeds := oracle.NewFeedRegistry(cfg.Oracle.AllowFeedRebind)
	gateway := oracle.NewGateway(oracle.DefaultGatewayConfig(cfg.Oracle.GatewayURL))
	ethUSDFeed := gateway.Feed("eth-usd")
	if cfg.Oracle.GatewayURL != "" {
		if err := gateway.Connect(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect oracle gateway: %v\n", err)
			os.Exit(1)
		}
		defer gateway.Close()
	}

	strategies := strategy.NewRegistry()
	registerStrategies(strategies, feeds, ethUSDFeed, maxLatency, cfg)

	engine := settlement.NewEngine(settlement.Config{
		Hasher: order.NewHasher(&order.Domain{
			Name:              cfg.Protocol.DomainName,
			Version:           cfg.Protocol.DomainVersion,
			ChainID:           big.NewInt(cfg.Protocol.ChainID),
			VerifyingContract: common.HexToAddress(cfg.Protocol.VerifyingContract),
		}),
		Verifier:   signature.NewVerifier(nil, nil),
		Nonces:     nonce.NewManager(writer),
		Strategies: strategies,
		Schedule:   fees.NewSchedule(common.HexToAddress(cfg.Protocol.ProtocolRecipient), nil),
		Currencies: parseCurrencies(cfg.Protocol.Currencies),
		Executor:   &loggingExecutor{},
		Publisher:  writer,
	})

	admin, err := settlement.NewAdminServer(cfg.Engine.AdminSocketPath, engine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create admin server: %v\n", err)
		os.Exit(1)
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- admin.Serve()
	}()

	fmt.Println("Tidepool ready")

	select {
	case <-ctx.Done():
		fmt.Println("Tidepool shutting down")
		admin.Close()
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "admin server error: %v\n", err)
			os.Exit(1)
		}
	}
}

func registerStrategies(r *strategy.Registry, feeds *oracle.FeedRegistry, ethUSD oracle.PriceFeed, maxLatency time.Duration, cfg *config.Config) {
	fixed := strategy.NewFixedPrice()
	floor := strategy.NewChainlinkFloor(feeds, false)
	usd := strategy.NewUSDDynamicAsk(ethUSD, maxLatency)
	collection := strategy.NewCollectionOffer(
		common.HexToAddress(cfg.Oracle.SignerAddress),
		time.Duration(cfg.Oracle.ValidityWindowSec)*time.Second,
	)

	add := func(id uint16, impl strategy.Strategy, sel [4]byte) {
		err := r.Add(id, strategy.Entry{
			Impl:          impl,
			Selector:      sel,
			ProtocolFeeBp: defaultProtocolFeeBp,
			MaxFeeBp:      maxProtocolFeeBp,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to register strategy %d: %v\n", id, err)
			os.Exit(1)
		}
	}

	add(strategyFixedPriceAsk, fixed, strategy.SelectorFixedTakerBid)
	add(strategyFixedPriceBid, fixed, strategy.SelectorFixedTakerAsk)
	add(strategyFloorPremiumFixed, floor, strategy.SelectorFloorPremiumFixedTakerBid)
	add(strategyFloorPremiumBp, floor, strategy.SelectorFloorPremiumBpTakerBid)
	add(strategyFloorDiscountFixed, floor, strategy.SelectorFloorDiscountFixedTakerAsk)
	add(strategyFloorDiscountBp, floor, strategy.SelectorFloorDiscountBpTakerAsk)
	add(strategyUSDDynamicAsk, usd, strategy.SelectorUSDDynamicAskTakerBid)
	add(strategyCollectionOffer, collection, strategy.SelectorCollectionOfferTakerAsk)
	add(strategyCollectionOfferProof, collection, strategy.SelectorCollectionOfferProofTakerAsk)
}

func parseCurrencies(hexAddrs []string) []common.Address {
	// The native asset (zero address) is always tradable.
	out := []common.Address{{}}
	for _, a := range hexAddrs {
		if common.IsHexAddress(a) {
			out = append(out, common.HexToAddress(a))
		} else {
			log.Printf("main: skipping invalid currency address %q", a)
		}
	}
	return out
}

// redisAdapter narrows *redis.Client to the ledger's interface.
type redisAdapter struct {
	c *redis.Client
}

func (r *redisAdapter) HSet(ctx context.Context, key string, values ...any) error {
	return r.c.HSet(ctx, key, values...).Err()
}

// loggingExecutor stands in for the on-chain transfer executor in
// development environments; it records the transfer it would perform.
type loggingExecutor struct{}

func (*loggingExecutor) TransferSingle(collection common.Address, assetType order.AssetType, from, to common.Address, itemID, amount *big.Int) error {
	log.Printf("executor: %s transfer %s item %s x%s %s -> %s",
		assetType, collection.Hex(), itemID.String(), amount.String(), from.Hex(), to.Hex())
	return nil
}

func (*loggingExecutor) TransferBatch(collection common.Address, assetType order.AssetType, from, to common.Address, itemIDs, amounts []*big.Int) error {
	log.Printf("executor: %s batch transfer %s (%d items) %s -> %s",
		assetType, collection.Hex(), len(itemIDs), from.Hex(), to.Hex())
	return nil
}

func (*loggingExecutor) TransferBatchAcrossCollections(collections []common.Address, assetTypes []order.AssetType, from, to common.Address, itemIDs, amounts [][]*big.Int) error {
	log.Printf("executor: cross-collection batch transfer (%d collections) %s -> %s",
		len(collections), from.Hex(), to.Hex())
	return nil
}
