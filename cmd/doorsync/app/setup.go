package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"doorsync/internal/config"
	"doorsync/internal/connectivity"
	"doorsync/internal/db"
	"doorsync/internal/gateway"
	"doorsync/internal/store/sqlite"
	"doorsync/internal/syncer"
)

// environment bundles the wired application components shared by the
// subcommands.
type environment struct {
	cfg     config.Config
	logger  *log.Logger
	diags   *sqlite.DiagnosticStore
	access  *sqlite.AccessStore
	client  *gateway.Client
	monitor *connectivity.Monitor
	orch    *syncer.Orchestrator

	closers []func()
}

// setup loads configuration and wires the stores, gateway client and
// orchestrator.  Callers must invoke close when done.
func setup() (*environment, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	env := &environment{cfg: cfg}
	env.logger = newLogger(cfg.Log, env)

	database, err := db.Open(context.Background(), db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		env.close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	env.closers = append(env.closers, func() {
		if err := database.Close(); err != nil {
			env.logger.Printf("close database: %v", err)
		}
	})

	writer := db.NewWorker(database)
	env.closers = append(env.closers, writer.Close)

	env.diags = sqlite.NewDiagnosticStore(database, writer)
	env.access = sqlite.NewAccessStore(database, writer)

	env.client = gateway.NewClient(gateway.ClientConfig{
		BaseURL:  cfg.Remote.BaseURL,
		Timeout:  time.Duration(cfg.Remote.TimeoutSeconds) * time.Second,
		MaxTries: uint(cfg.Remote.MaxRetries),
		Logger:   env.logger,
	})

	env.monitor = connectivity.NewMonitor(env.logger)

	env.orch = syncer.NewOrchestrator(syncer.Config{
		Diagnostics: env.diags,
		Access:      env.access,
		Gateway:     env.client,
		Monitor:     env.monitor,
		Logger:      env.logger,
		MaxInFlight: cfg.Sync.MaxInFlight,
	})

	return env, nil
}

// close tears the environment down in reverse wiring order.
func (e *environment) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func newLogger(cfg config.LogConfig, env *environment) *log.Logger {
	var out io.Writer = os.Stderr
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		env.closers = append(env.closers, func() { _ = rotator.Close() })
		out = rotator
	}
	return log.New(out, "[doorsync] ", log.LstdFlags)
}
