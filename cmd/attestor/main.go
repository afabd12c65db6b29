package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awnumar/memguard"

	"github.com/tidepool-markets/tidepool/internal/attestor"
	"github.com/tidepool-markets/tidepool/internal/config"
	"github.com/tidepool-markets/tidepool/internal/kms"
)

func main() {
	defer memguard.Purge()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Tidepool attestor starting (env=%s, socket=%s)\n", cfg.Env, cfg.Attestor.SocketPath)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ttl := time.Duration(cfg.Attestor.SessionTTLSec) * time.Second
	session := attestor.NewSession(ttl)

	if err := activate(ctx, cfg, session); err != nil {
		fmt.Fprintf(os.Stderr, "failed to activate session: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Attestor session active (oracle=%s)\n", session.Address().Hex())

	srv, err := attestor.NewServer(cfg.Attestor.SocketPath, session)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create attestor server: %v\n", err)
		os.Exit(1)
	}

	// Run the server in a goroutine so we can wait for shutdown signals.
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve()
	}()

	fmt.Println("Attestor ready — listening on UDS")

	select {
	case <-ctx.Done():
		fmt.Println("Attestor shutting down gracefully...")
		session.Destroy()
		srv.Close()
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "attestor server error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("Attestor stopped")
}

// activate unseals the oracle key through KMS straight into the session
// enclave.
func activate(ctx context.Context, cfg *config.Config, session *attestor.Session) error {
	client, err := kms.New(ctx, cfg.Attestor.AWSRegion, cfg.LocalStackEndpoint)
	if err != nil {
		return err
	}
	return client.UnsealKey(ctx, cfg.Attestor.KeyCiphertextPath, session.Activate)
}
