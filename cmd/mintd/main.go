package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-mint-engine/internal/auth"
	"github.com/0gfoundation/0g-mint-engine/internal/config"
	"github.com/0gfoundation/0g-mint-engine/internal/deploy"
	"github.com/0gfoundation/0g-mint-engine/internal/ledger"
	"github.com/0gfoundation/0g-mint-engine/internal/metrics"
	"github.com/0gfoundation/0g-mint-engine/internal/relay"
	"github.com/0gfoundation/0g-mint-engine/internal/signer"
	"github.com/0gfoundation/0g-mint-engine/internal/wallet"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Redis ─────────────────────────────────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}

	// ── Ledger (committed events → Redis relay queue) ─────────────────────────
	chainID := big.NewInt(cfg.Chain.ChainID)
	l := ledger.New(chainID, log, ledger.WithSink(relay.NewSink(rdb, relay.DefaultQueue, log)))

	// ── Platform deployment ───────────────────────────────────────────────────
	params, err := deployParams(cfg)
	if err != nil {
		log.Fatal("invalid deployment config", zap.Error(err))
	}
	stack, err := deploy.Run(ctx, l, rdb, params, log)
	if err != nil {
		log.Fatal("platform deployment failed", zap.Error(err))
	}

	// ── Signer (trusted key → payloads / tickets) ─────────────────────────────
	sgn, err := signer.New(cfg.Signer.PrivateKey, chainID, stack.Tickets.Address(), rdb, log)
	if err != nil {
		log.Fatal("signer init failed", zap.Error(err))
	}

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		log.Fatal("metrics init failed", zap.Error(err))
	}

	// ── Goroutines ────────────────────────────────────────────────────────────
	consumer := relay.NewConsumer(rdb, relay.DefaultQueue, 5*time.Second, logEvents(log, m), log)
	go consumer.Run(ctx)

	// ── HTTP server ───────────────────────────────────────────────────────────
	r := gin.New()
	r.Use(gin.Recovery(), m.Middleware())
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "block": l.BlockNumber()})
	})

	signerHandler := signer.NewHandler(sgn, params.Owner, log)
	deployHandler := deploy.NewHandler(stack, rdb, log)
	r.GET("/signer", signerHandler.Info)
	deployHandler.RegisterPublic(r.Group("/"))

	api := r.Group("/api", auth.Middleware(rdb))
	signerHandler.Register(api)
	deployHandler.Register(api)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}

// deployParams derives the platform deployment from config. The signer
// address comes from the configured key.
func deployParams(cfg *config.Config) (deploy.Params, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.Signer.PrivateKey, "0x"))
	if err != nil {
		return deploy.Params{}, fmt.Errorf("parse SIGNER_KEY: %w", err)
	}
	owners, err := cfg.WalletOwners()
	if err != nil {
		return deploy.Params{}, err
	}
	oracles, err := cfg.Oracles()
	if err != nil {
		return deploy.Params{}, err
	}
	wc := wallet.Config{
		ConsensusRatio: cfg.Wallet.ConsensusRatio,
		MinLimit:       cfg.Wallet.MinLimit,
	}
	for _, o := range owners {
		wc.Owners = append(wc.Owners, wallet.Owner{Addr: o.Addr, Weight: o.Weight})
	}
	return deploy.Params{
		Owner:             common.HexToAddress(cfg.Platform.Owner),
		Signer:            crypto.PubkeyToAddress(key.PublicKey),
		DefaultFeeRate:    cfg.Fees.DefaultRateBps,
		Wallet:            wc,
		RandomnessOracles: oracles,
	}, nil
}

// logEvents is the relay handler: every committed event becomes a log line
// for downstream indexers.
func logEvents(log *zap.Logger, m *metrics.Metrics) relay.Handler {
	return func(_ context.Context, events []ledger.Event) error {
		for _, e := range events {
			m.EventRelayed(e.Name)
			log.Info("event",
				zap.Uint64("block", e.Block),
				zap.String("contract", e.Contract.Hex()),
				zap.String("name", e.Name),
				zap.Any("args", e.Args),
			)
		}
		return nil
	}
}
