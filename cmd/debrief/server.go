package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/debrief/internal/analytics"
	"github.com/kalambet/debrief/internal/api"
	"github.com/kalambet/debrief/internal/config"
	"github.com/kalambet/debrief/internal/ledger"
	"github.com/kalambet/debrief/internal/ollama"
	"github.com/kalambet/debrief/internal/storage"
	"github.com/kalambet/debrief/internal/transcript"
	"github.com/kalambet/debrief/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the debrief server (foreground)",
	Long: `Start the HTTP API, the MCP stdio server, and (when watch.enabled is
set) the transcripts directory watcher. Runs in the foreground until
interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show debrief system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "debrief.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "debrief version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Refuse to start twice. Check the health endpoint before claiming the
	// PID file.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Check Ollama readiness and pull the model if needed.
	client := ollama.New(cfg.Ollama.BaseURL)
	if err := ollama.EnsureReady(ctx, client, cfg.Ollama.Model, 30*time.Second, os.Stderr); err != nil {
		return err
	}

	// Open run history storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	// Ensure the transcripts directory exists so the watcher can attach.
	if err := os.MkdirAll(cfg.Paths.TranscriptsDir, 0o755); err != nil {
		return fmt.Errorf("creating transcripts directory: %w", err)
	}

	source := transcript.NewSource(cfg.Paths.TranscriptsDir)
	contracts := ledger.NewStore(cfg.Paths.LedgerPath)
	analyticsLog := analytics.NewLog(cfg.Paths.AnalyticsPath)
	runner := buildRunner(cfg, client, store)

	handler := api.NewAppHandler(api.AppDeps{
		Runner:      runner,
		Transcripts: source,
		Contracts:   contracts,
		Analytics:   analyticsLog,
		Runs:        store,
		Token:       cfg.Server.APIToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	g, gctx := errgroup.WithContext(ctx)

	// HTTP server.
	g.Go(func() error {
		slog.Info("debrief listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Directory watcher: process transcripts as they land.
	if cfg.Watch.Enabled {
		w, err := watcher.New(cfg.Paths.TranscriptsDir, func(handleCtx context.Context, name string) {
			done, err := store.HasProcessed(name)
			if err != nil {
				slog.Error("checking run history", "file", name, "error", err)
				return
			}
			if done {
				slog.Debug("transcript already processed", "file", name)
				return
			}
			file, err := source.ByName(name)
			if err != nil {
				slog.Error("resolving transcript", "file", name, "error", err)
				return
			}
			if _, err := runner.Run(handleCtx, file); err != nil {
				slog.Error("pipeline run failed", "file", name, "error", err)
			}
		}, 0)
		if err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		defer w.Close()

		g.Go(func() error {
			if err := w.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watcher error: %w", err)
			}
			return nil
		})
	}

	// MCP server (stdio transport).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Runner:      runner,
		Transcripts: source,
		Contracts:   contracts,
		Runs:        store,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "shutting down...")
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	// Check Ollama.
	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	printStatus("Model", "%s", cfg.Ollama.Model)
	printStatus("Transcripts", "%s", cfg.Paths.TranscriptsDir)
	printStatus("Ledger", "%s", cfg.Paths.LedgerPath)

	// Show counts from local files.
	if records, err := ledger.NewStore(cfg.Paths.LedgerPath).List(); err == nil {
		printStatus("Contracts", "%d", len(records))
	}
	source := transcript.NewSource(cfg.Paths.TranscriptsDir)
	if files, err := source.List(); err == nil {
		printStatus("Transcripts found", "%d", len(files))
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
