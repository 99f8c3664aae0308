package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/identity-service/internal/config"
	"gitlab.com/dirk.krummacker/identity-service/internal/lock"
	"gitlab.com/dirk.krummacker/identity-service/internal/logger"
	"gitlab.com/dirk.krummacker/identity-service/internal/service"
	"gitlab.com/dirk.krummacker/identity-service/internal/store"
	"go.uber.org/zap"
)

// Usage example on the command line:
// > PORT=8080 DBUSER=dirk DBPWD=bullo92 GIN_MODE=release GIN_LOGGING=OFF go run main.go
// > STORE_DRIVER=memory LOG_FORMAT=console go run main.go
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "identity-service")
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not create logger", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("service stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	contacts, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	locker, closeLocker, err := openLocker(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLocker()

	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := service.SetupHttpRouter(service.RouterConfig{
		Identifier:     service.NewIdentifier(contacts, locker, log),
		Store:          contacts,
		Logger:         log,
		RequestLogging: !cfg.Log.RequestsOff,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("store", cfg.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore creates the contact store selected by STORE_DRIVER.
func openStore(cfg config.Config, log *zap.Logger) (store.Store, func(), error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn("using in-memory store, contacts are lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}
	sqlDB, err := store.OpenDatabase(cfg.Database.DSN(), cfg.Database.MaxConns, cfg.Database.MaxIdle)
	if err != nil {
		return nil, nil, err
	}
	mysqlStore, err := store.NewMySQLStore(sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	log.Info("connected to database", zap.String("host", cfg.Database.Host), zap.String("name", cfg.Database.Name))
	return mysqlStore, func() { _ = mysqlStore.Close() }, nil
}

// openLocker creates a Redis based locker if REDIS_ADDR is set, so that several instances of the
// service can run side by side, and a process local one otherwise.
func openLocker(ctx context.Context, cfg config.Config, log *zap.Logger) (lock.Locker, func(), error) {
	if !cfg.Redis.Enabled() {
		log.Info("using process local locks")
		return lock.NewLocalLocker(), func() {}, nil
	}
	client, err := lock.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	log.Info("using redis locks", zap.String("addr", cfg.Redis.Addr))
	locker := lock.NewRedisLocker(client, lock.WithTTL(cfg.Lock.TTL), lock.WithWait(cfg.Lock.Wait))
	return locker, func() { _ = client.Close() }, nil
}
