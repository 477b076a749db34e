package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"hwstrat/internal/ops"
	"hwstrat/internal/recorder"
	"hwstrat/pkg/conn"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	configReload := flag.Duration("config-reload-interval", 2*time.Second, "Feature flag reload interval (0=disable)")
	marketPath := flag.String("market", "", "Hex vector file of market bus words")
	tcpPath := flag.String("tcp", "", "Hex vector file of TCP reply words")
	udsPath := flag.String("uds", "", "Unix socket for the host link")
	walDir := flag.String("wal-dir", "", "Audit trail directory (overrides config)")
	dbPath := flag.String("db", "", "SQLite archive path (overrides config)")
	snapshotPath := flag.String("snapshot-path", "", "Table snapshot output (default: <wal-dir>/tables.json)")
	recoverEnabled := flag.Bool("recover", false, "Rebuild tables from snapshot + audit trail before starting")
	logFile := flag.String("log-file", "", "Rotating log file, tee'd with stderr")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (overrides config)")
	flag.Parse()

	if *logFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    64, // Megabytes
			MaxBackups: 3,
			MaxAge:     7, // Days
			Compress:   true,
		}))
	}

	loaded, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *walDir != "" {
		cfg := recorder.DefaultConfig(*walDir)
		if loaded.Recorder != nil {
			cfg = *loaded.Recorder
			cfg.Dir = *walDir
		}
		loaded.Recorder = &cfg
	}
	if *dbPath != "" {
		loaded.Database = ops.DatabaseConfig{Driver: conn.DriverSQLite, DSN: *dbPath}
	}
	if *pyroscopeAddr != "" {
		loaded.Profiling.ServerAddress = *pyroscopeAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if loaded.Profiling.ServerAddress != "" {
		profiler, err := startProfiler(loaded.Profiling)
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	flags := newRuntimeFlags(loaded.Features)
	if *configPath != "" && *configReload > 0 {
		go watchConfig(ctx, *configPath, *configReload, flags.Update)
	}

	opts := runOptions{
		marketPath:   *marketPath,
		tcpPath:      *tcpPath,
		udsPath:      *udsPath,
		snapshotPath: resolveSnapshotPath(loaded.Recorder, *snapshotPath),
		recover:      *recoverEnabled,
	}
	if err := run(ctx, loaded, flags, opts); err != nil {
		log.Fatalf("run failed: %v", err)
	}
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return ops.Default(), nil
	}
	return ops.Load(path)
}

func resolveSnapshotPath(rec *recorder.Config, path string) string {
	if path != "" {
		return path
	}
	if rec == nil {
		return ""
	}
	return filepath.Join(rec.Dir, "tables.json")
}

func databaseOption(cfg ops.DatabaseConfig) conn.Option {
	if cfg.Driver == conn.DriverSQLite {
		return conn.Option{Driver: conn.DriverSQLite, Path: cfg.DSN}
	}
	return conn.Option{Driver: conn.DriverPostgres, ConnString: cfg.DSN}
}
