package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/zatoshilabs/zord/internal/api"
	"github.com/zatoshilabs/zord/internal/cache"
	"github.com/zatoshilabs/zord/internal/chainclient"
	"github.com/zatoshilabs/zord/internal/config"
	"github.com/zatoshilabs/zord/internal/indexer"
	"github.com/zatoshilabs/zord/internal/ledger"
	"github.com/zatoshilabs/zord/internal/livefeed"
	"github.com/zatoshilabs/zord/internal/store"
	"github.com/zatoshilabs/zord/pkg/workerpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("zord: failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("zord: failed to connect to store: %v", err)
	}
	defer s.Close()

	if err := initStartHeight(ctx, s, cfg.StartHeight); err != nil {
		log.Fatalf("zord: failed to initialize start height: %v", err)
	}

	chain := chainclient.NewRPCClient(cfg.RPCURL, cfg.RPCUsername, cfg.RPCPassword)
	tip := chainclient.NewTipPush(cfg.TipPushURL)
	defer tip.Close()

	poolCfg := workerpool.DefaultConfig()
	pool, err := workerpool.New(poolCfg)
	if err != nil {
		log.Fatalf("zord: failed to start worker pool: %v", err)
	}
	defer pool.Close()

	c, err := cache.New(&cache.Config{
		Addr:    cfg.CacheRedisAddr,
		Enabled: cfg.CacheRedisAddr != "",
	})
	if err != nil {
		log.Fatalf("zord: failed to connect to cache: %v", err)
	}
	defer c.Close()

	hub := livefeed.NewHub()
	go hub.Run()
	defer hub.Stop()

	ix := indexer.New(s, chain, pool, tip, hub)
	ix.Start(ctx)
	defer ix.Stop()

	router := api.NewRouter(s, chain, c, hub)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.APIPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("zord: API server listening on port %d", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("zord: API server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("zord: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("zord: API server forced to shutdown: %v", err)
	}

	log.Println("zord: exited cleanly")
}

// initStartHeight seeds core_height to startHeight-1 on a brand-new store
// so the indexer's first processed block is startHeight, per §6.
func initStartHeight(ctx context.Context, s *store.Store, startHeight uint64) error {
	rt, err := s.BeginRead(ctx)
	if err != nil {
		return err
	}
	height, err := ledger.GetMetaUint64(rt, ledger.MetaCoreHeight)
	rt.Close()
	if err != nil {
		return err
	}
	if height != 0 || startHeight <= 1 {
		return nil
	}

	wt, err := s.BeginWrite(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = wt.Abort()
		}
	}()
	if err := ledger.SetMetaUint64(wt, ledger.MetaCoreHeight, startHeight-1); err != nil {
		return err
	}
	if err := wt.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
