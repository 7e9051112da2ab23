// Command coordinator runs the 0x coordinator process: it loads
// configuration, builds the chain registry against real on-chain
// oracles, and serves the HTTP request surface and WebSocket event
// stream until told to stop.
//
// Bootstrap order follows the teacher's NewServer constructors
// (src/chainadapter/rpc, internal/services/wallet): build every
// collaborator, wire them together, then start listening — with
// graceful shutdown on SIGINT/SIGTERM modeled on the shutdown sequence
// in the order-matching-engine reference server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "github.com/lib/pq"

	"github.com/0xproject/coordinator-server/internal/audit"
	"github.com/0xproject/coordinator-server/internal/chainoracle"
	"github.com/0xproject/coordinator-server/internal/chainregistry"
	"github.com/0xproject/coordinator-server/internal/config"
	"github.com/0xproject/coordinator-server/internal/coordinator"
	"github.com/0xproject/coordinator-server/internal/eventbus"
	"github.com/0xproject/coordinator-server/internal/httpapi"
	"github.com/0xproject/coordinator-server/internal/logging"
	"github.com/0xproject/coordinator-server/internal/orderstore"
	"github.com/0xproject/coordinator-server/internal/txstore"
	"github.com/0xproject/coordinator-server/internal/wsapi"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the coordinator's JSON configuration file")
	flag.Parse()

	log, err := logging.FromEnv()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(*configPath, log); err != nil {
		log.Fatal("coordinator exited with error", zap.Error(err))
	}
}

func run(configPath string, log *zap.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	registry, err := chainregistry.Build(cfg, chainoracle.NewOracleFactory())
	if err != nil {
		return err
	}

	orderStore, txStore, closeStores, err := buildStores(cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	bus := eventbus.New()
	svc := coordinator.New(cfg, registry, orderStore, txStore, bus)

	if cfg.AuditLogPath != "" {
		auditLogger, err := audit.NewLogger(cfg.AuditLogPath)
		if err != nil {
			return err
		}
		svc = svc.WithAuditLogger(auditLogger)
		log.Info("audit trail enabled", zap.String("path", cfg.AuditLogPath))
	}

	mux := http.NewServeMux()
	mux.Handle("/v2/requests", wsapi.NewHandler(bus, log))
	mux.Handle("/", httpapi.NewServer(svc, log))

	server := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.HTTPPort),
		Handler: mux,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("coordinator listening", zap.Int("port", cfg.HTTPPort), zap.Int64s("chains", registry.SupportedChainIDs()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-sigCh:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-serverErr
}

// buildStores selects the in-memory stores when cfg.DatabaseURL is
// unset, or opens a Postgres connection pool and the SQL-backed stores
// otherwise. The returned close func is always safe to call.
func buildStores(cfg *config.Config, log *zap.Logger) (orderstore.Store, txstore.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("no DATABASE_URL configured, running with in-memory stores")
		return orderstore.NewMemoryStore(), txstore.NewMemoryStore(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	log.Info("connected to postgres, running with durable stores")
	return orderstore.OpenSQLStore(db), txstore.OpenSQLStore(db), func() { db.Close() }, nil
}
