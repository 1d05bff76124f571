package referral

import (
	"context"
	"os"
	"os/signal"

	"github.com/cryptavpn-crypto/Crypta-referal/internal/pkg/logger"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/catalog"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/config"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/controller"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/graph"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/router"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/storage"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/storage/memory"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/storage/postgres"
	"github.com/cryptavpn-crypto/Crypta-referal/internal/referral/verification"
	"go.uber.org/zap"
)

type App struct {
	router *router.HttpRouter
	logger *zap.Logger
}

func (a *App) Run() error {
	sisChan := make(chan os.Signal, 1)
	go func() {
		if err := a.router.Run(); err != nil {
			a.logger.Error("router.Run failed: ", zap.Error(err))
			sisChan <- os.Interrupt
		}
	}()
	return a.gracefulShutdown(sisChan)
}

func (a *App) gracefulShutdown(sisChan chan os.Signal) error {
	signal.Notify(sisChan, os.Interrupt)
	<-sisChan
	err := a.router.Close()
	if err != nil {
		a.logger.Error("router.Close failed: ", zap.Error(err))
	}
	return a.logger.Sync()
}

func NewApp(cfg *config.Config) *App {
	log, err := logger.InitLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}

	store, storeClose, err := newStorage(cfg, log)
	if err != nil {
		panic(err)
	}

	cat := catalog.Default()
	strategy := newStrategy(cfg, log)
	engine := verification.NewEngine(store, cat, strategy, log.Named("verification"))
	g := graph.New(store, log.Named("graph"))
	c := controller.NewController(cfg, store, cat, engine, g, log.Named("controller"), storeClose)
	r := router.CreateRouter(c, cfg, log)
	return &App{
		router: r,
		logger: log,
	}
}

func newStorage(cfg *config.Config, log *zap.Logger) (storage.Storage, func() error, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := postgres.NewDB(context.Background(), cfg.Storage.PostgresURL, log.Named("postgres"))
		if err != nil {
			return nil, nil, err
		}
		return db, func() error {
			db.Conn.Close()
			return nil
		}, nil
	default:
		store, err := memory.NewStore(cfg.Storage.SnapshotPath, log.Named("memory"))
		if err != nil {
			return nil, nil, err
		}
		// Flush one last snapshot on shutdown.
		return store, func() error {
			return store.Persist(context.Background())
		}, nil
	}
}

func newStrategy(cfg *config.Config, log *zap.Logger) verification.Strategy {
	if cfg.Verification.Mode == "auto" {
		predicate := verification.SimulatedPredicate(cfg.Verification.SuccessRates, cfg.Verification.Latency)
		return verification.NewAutomatic(predicate, cfg.Verification.Timeout, log.Named("verification"))
	}
	return verification.Manual{}
}
