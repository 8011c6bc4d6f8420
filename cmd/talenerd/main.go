package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talenerd/internal/config"
	"talenerd/internal/llm"
	"talenerd/internal/logging"
	"talenerd/internal/memory"
	"talenerd/internal/reflect"
	"talenerd/internal/store"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var (
	// Global flags
	verbose    bool
	apiKey     string
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "talenerd",
	Short: "talenerd - background reflection engine for generative storytelling",
	Long: `talenerd runs critique and self-reflection in the background of a
generative storytelling session.

It records every generative invocation in a bounded ledger, critiques finished
calls, evolves a set of memory documents that steer future generation, and
publishes an end-of-turn reflection note once both the narrative and
world-edit streams have been reviewed.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

// runCmd drives the engine from a line-delimited JSON event stream on stdin.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reflection engine against an event stream on stdin",
	Long: `Reads line-delimited JSON call events from stdin and feeds them to the
reflection engine. Each line is one event:

  {"event":"begin","id":"c1","category":"chat_text","model":"m","prompt":"..."}
  {"event":"finish","id":"c1","response":"..."}
  {"event":"fail","id":"c1","error":"..."}
  {"event":"system","category":"manual_edit","prompt":"...","response":"..."}

Reflection reports are printed to stdout as they are produced. The engine
drains in-flight work on EOF or SIGINT.`,
	RunE: runEngine,
}

// callsCmd lists recorded calls from the ledger.
var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "List recorded generative calls, newest first",
	RunE:  listCalls,
}

// memoryCmd groups the memory-document subcommands.
var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and manage the reflection memory documents",
}

var memoryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print all memory documents as JSON",
	RunE:  exportMemory,
}

var memoryImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Replace all memory documents from a JSON export",
	Args:  cobra.ExactArgs(1),
	RunE:  importMemory,
}

var memoryResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset reflection state: memory documents, call ledger, task queue",
	RunE:  resetMemory,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Generator API key (or GEMINI_API_KEY)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".talenerd/config.yaml", "Path to config file")

	memoryCmd.AddCommand(memoryExportCmd)
	memoryCmd.AddCommand(memoryImportCmd)
	memoryCmd.AddCommand(memoryResetCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(callsCmd)
	rootCmd.AddCommand(memoryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// streamEvent is one line of the run command's stdin protocol.
type streamEvent struct {
	Event    string `json:"event"`
	ID       string `json:"id,omitempty"`
	Category string `json:"category,omitempty"`
	Model    string `json:"model,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	key := apiKey
	if key == "" {
		key = cfg.LLM.APIKey
	}
	if key == "" {
		key = os.Getenv("GEMINI_API_KEY")
	}
	gen, err := llm.NewGenAIGenerator(key, cfg.LLM.Model, cfg.LLMTimeout())
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	blobs, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}
	defer blobs.Close()

	engine := reflect.New(cfg.Reflection, reflect.Deps{
		Generator: gen,
		Blobs:     blobs,
		Model:     cfg.LLM.Model,
		Sink: func(msg reflect.Message) {
			out, _ := json.Marshal(msg)
			fmt.Println(string(out))
		},
	})
	defer engine.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Scheduler constants are fixed at engine construction; a reload only
	// re-applies logging settings.
	watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
		if err := logging.ReloadConfig(); err != nil {
			logger.Warn("Logging config reload failed", zap.Error(err))
		}
		logger.Info("Config reloaded", zap.String("path", configPath))
	})
	if err != nil {
		logger.Warn("Config watcher unavailable", zap.Error(err))
	} else if err := watcher.Start(); err != nil {
		logger.Warn("Config watcher failed to start", zap.Error(err))
	} else {
		defer watcher.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		defer cancel()
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if ctx.Err() != nil {
				return nil
			}
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var ev streamEvent
			if err := json.Unmarshal(line, &ev); err != nil {
				logger.Warn("Skipping malformed event", zap.Error(err))
				continue
			}
			applyEvent(engine, ev)
		}
		return scanner.Err()
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("event stream error: %w", err)
	}

	logger.Info("Event stream closed, draining reflection work",
		zap.Int("pending", engine.PendingTaskCount()))
	return nil
}

// applyEvent translates one stdin event into an engine call.
func applyEvent(engine *reflect.Engine, ev streamEvent) {
	switch ev.Event {
	case "begin":
		id := ev.ID
		if id == "" {
			id = uuid.NewString()
		}
		if err := engine.BeginCall(id, ev.Category, ev.Model, ev.Prompt); err != nil {
			logger.Warn("BeginCall rejected", zap.String("id", id), zap.Error(err))
		}
	case "finish":
		engine.FinishCall(ev.ID, ev.Response)
	case "fail":
		engine.FailCall(ev.ID, ev.Error)
	case "system":
		engine.RecordSystemEvent(ev.ID, ev.Category, ev.Prompt, ev.Response)
	default:
		logger.Warn("Unknown event type", zap.String("event", ev.Event))
	}
}

// openOffline builds an engine over the persisted state without a generator,
// for inspection commands that never dispatch work.
func openOffline() (*reflect.Engine, *store.SQLiteStore, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	blobs, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open blob store: %w", err)
	}
	engine := reflect.New(cfg.Reflection, reflect.Deps{Blobs: blobs})
	return engine, blobs, nil
}

func listCalls(cmd *cobra.Command, args []string) error {
	engine, blobs, err := openOffline()
	if err != nil {
		return err
	}
	defer blobs.Close()
	defer engine.Close()

	calls := engine.ListCalls()
	if len(calls) == 0 {
		fmt.Println("No recorded calls.")
		return nil
	}
	for _, rec := range calls {
		line := fmt.Sprintf("%s  %-20s %-10s %s",
			rec.StartedAt.Format(time.RFC3339), rec.Category, rec.Status, rec.ID)
		if rec.DurationMs > 0 {
			line += fmt.Sprintf("  (%dms)", rec.DurationMs)
		}
		fmt.Println(line)
		if rec.Critique != "" {
			fmt.Printf("    critique: %s\n", firstLine(rec.Critique))
		}
	}
	return nil
}

func exportMemory(cmd *cobra.Command, args []string) error {
	engine, blobs, err := openOffline()
	if err != nil {
		return err
	}
	defer blobs.Close()
	defer engine.Close()

	out, err := json.MarshalIndent(engine.ExportMemory(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode memory: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func importMemory(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}
	var set memory.DocumentSet
	if err := json.Unmarshal(data, &set); err != nil {
		return fmt.Errorf("failed to decode import file: %w", err)
	}

	engine, blobs, err := openOffline()
	if err != nil {
		return err
	}
	defer blobs.Close()
	defer engine.Close()

	engine.ImportMemory(set)
	fmt.Printf("Imported %d documents.\n", len(set.Documents))
	return nil
}

func resetMemory(cmd *cobra.Command, args []string) error {
	engine, blobs, err := openOffline()
	if err != nil {
		return err
	}
	defer blobs.Close()
	defer engine.Close()

	engine.Reset()
	fmt.Println("Reflection state reset; memory documents restored to defaults.")
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
