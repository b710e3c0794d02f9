// dbpool runs and checks database connection pools.
//
// Usage:
//
//	dbpool [flags] check     Open the pool, validate one connection and exit
//	dbpool [flags] serve     Run the pool with the status server until signalled
//	dbpool [flags] init      Write a configuration file with the defaults
//	dbpool [flags] top       Watch a running pool through its status server
//
// Flags:
//
//	-config string
//	    Path to configuration file (default "dbpool.toml")
//	-listen string
//	    Status server address for serve and top (default "127.0.0.1:9470")
//	-v
//	    Enable verbose logging
//	-version
//	    Print version and exit
//
// The URL and credentials may also come from DBPOOL_URL, DBPOOL_USERNAME
// and DBPOOL_PASSWORD.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/go-i2p/dbpool/lib/config"
	"github.com/go-i2p/dbpool/lib/driver"
	"github.com/go-i2p/dbpool/lib/metrics"
	"github.com/go-i2p/dbpool/lib/pool"
	"github.com/go-i2p/dbpool/lib/tui"
	"github.com/go-i2p/dbpool/lib/web"
	"github.com/go-i2p/dbpool/version"
)

const (
	defaultConfigPath = "dbpool.toml"
	defaultListenAddr = "127.0.0.1:9470"
	shutdownTimeout   = 10 * time.Second
	checkTimeout      = 30 * time.Second
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dbpool", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	listenAddr := fs.String("listen", defaultListenAddr, "Status server address (serve, top)")
	verbose := fs.Bool("v", false, "Enable verbose logging")
	showVersion := fs.Bool("version", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "dbpool - database connection pool\n\n")
		fmt.Fprintf(stderr, "Usage:\n")
		fmt.Fprintf(stderr, "  dbpool [flags] check      Validate the configuration and one connection\n")
		fmt.Fprintf(stderr, "  dbpool [flags] serve      Run the pool and the status server\n")
		fmt.Fprintf(stderr, "  dbpool [flags] init       Write a default configuration file\n")
		fmt.Fprintf(stderr, "  dbpool [flags] top        Watch a running pool\n\n")
		fmt.Fprintf(stderr, "Drivers: %v\n\n", driver.Drivers())
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintf(stdout, "dbpool version %s\n", version.Full())
		return 0
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	switch fs.Arg(0) {
	case "init":
		return handleInit(logger, *configPath)
	case "check":
		return handleCheck(logger, stdout, *configPath)
	case "serve":
		return handleServe(logger, *configPath, *listenAddr)
	case "top":
		return handleTop(stderr, *listenAddr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", fs.Arg(0))
		fs.Usage()
		return 2
	}
}

// handleInit writes the default options to path unless it exists.
func handleInit(logger *slog.Logger, path string) int {
	if _, err := os.Stat(path); err == nil {
		logger.Error("config file already exists", "path", path)
		return 1
	}

	opts := config.Default()
	opts.DriverClassName = "postgres"
	opts.URL = "postgres://localhost:5432/postgres"
	if err := config.Save(opts, path); err != nil {
		logger.Error("failed to write config", "error", err)
		return 1
	}
	logger.Info("wrote config", "path", path)
	return 0
}

// openPool loads the configuration and starts a pool.
func openPool(logger *slog.Logger, path string) (*pool.Pool, error) {
	opts, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	p, err := pool.New(opts.PoolConfig())
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	logger.Info("pool created", "name", p.Name(), "driver", opts.DriverClassName)
	return p, nil
}

// handleCheck borrows one connection, validates it and prints the stats.
func handleCheck(logger *slog.Logger, stdout io.Writer, path string) int {
	p, err := openPool(logger, path)
	if err != nil {
		logger.Error("check failed", "error", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := p.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	err = p.WithConnection(ctx, func(conn driver.Conn) error {
		return conn.Ping(ctx)
	})
	if err != nil {
		logger.Error("check failed", "error", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p.Stats()); err != nil {
		logger.Error("writing stats", "error", err)
		return 1
	}
	logger.Info("connection ok")
	return 0
}

// handleServe runs the pool and its status server until SIGINT or SIGTERM.
func handleServe(logger *slog.Logger, path, listenAddr string) int {
	p, err := openPool(logger, path)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return 1
	}

	srv, err := web.New(web.Config{
		ListenAddr: listenAddr,
		Pool:       p,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to create status server", "error", err)
		return 1
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	exit := 0
	if err := srv.Start(); err != nil {
		logger.Error("failed to start status server", "error", err)
		exit = 1
	} else {
		metrics.RecordStartTime()
		logger.Info("dbpool started", "pool", p.Name(), "version", version.Full())
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("status server shutdown error", "error", err)
		exit = 1
	}
	if err := p.Shutdown(shutdownCtx); err != nil {
		logger.Error("pool shutdown error", "error", err)
		exit = 1
	}

	logger.Info("dbpool stopped")
	return exit
}

// handleTop launches the terminal view against a running status server.
func handleTop(stderr io.Writer, statusAddr string) int {
	app, err := tui.New(tui.Config{
		StatusAddr:      statusAddr,
		RefreshInterval: tui.DefaultRefreshInterval,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(stderr, "Error running TUI: %v\n", err)
		return 1
	}
	return 0
}
