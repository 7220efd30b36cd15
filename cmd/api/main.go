package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/gatehouse/internal/config"
	"github.com/ovaphlow/gatehouse/internal/router"
	userrepo "github.com/ovaphlow/gatehouse/internal/user/repo"
	"github.com/ovaphlow/gatehouse/pkg/database"
	"github.com/ovaphlow/gatehouse/pkg/utilities"
)

func main() {
	// load .env file if present so env parsing picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// init logger
	lg, err := utilities.Init(utilities.Config{Level: cfg.LogLevel, Dev: cfg.LogDev, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Infow("starting gatehouse", "env", cfg.AppEnv, "addr", cfg.HTTPAddr)

	// init db
	db, err := database.Connect(database.Config{
		DSN:            cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		Timeout:        cfg.DatabaseTimeout,
		TimeZone:       cfg.DatabaseTimeZone,
		ClientEncoding: cfg.DatabaseClientEncoding,
	})
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	ids, err := utilities.NewIDGen(cfg.SnowflakeNode)
	if err != nil {
		sugar.Fatalf("id generator: %v", err)
	}

	// make sure the users table exists before serving traffic
	setupCtx, cancelSetup := context.WithTimeout(context.Background(), cfg.DatabaseTimeout)
	err = userrepo.NewUserRepo(db).EnsureTable(setupCtx)
	cancelSetup()
	if err != nil {
		sugar.Fatalf("ensure schema: %v", err)
	}

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar.Info("service is running; press Ctrl+C to stop")

	// mount http server
	handler := router.RegisterRoutes(cfg, sugar, db, ids)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}

	// run server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// shutdown http server first so in-flight requests settle
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	if err := db.PingContext(doneCtx); err != nil {
		sugar.Warnf("db ping on shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
