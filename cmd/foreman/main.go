// foreman is an autonomous task-execution agent: it plans a goal, dispatches
// plan steps to specialized workers, and revises the plan from observed
// results until a final response is ready or user input is needed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"foreman/internal/agent"
	"foreman/internal/checkpoint"
	"foreman/internal/config"
	"foreman/internal/kb"
	"foreman/internal/orchestrator"
	"foreman/internal/reasoner"
	"foreman/internal/shell"
	"foreman/internal/state"
	"foreman/internal/tools"
	"foreman/internal/tools/fsops"
	"foreman/internal/tools/shellops"
	"foreman/internal/tools/webops"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var (
	stepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
)

var rootCmd = &cobra.Command{
	Use:   "foreman",
	Short: "foreman - autonomous task-execution agent",
	Long: `foreman expands a natural-language goal into a hierarchical plan,
dispatches each step to a specialized worker (files, shell, browser,
knowledge base), observes the results, and revises the plan until a final
response is produced or the user is asked for input.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		zapCfg := zap.NewProductionConfig()
		if cfg.Logging.Format == "console" {
			zapCfg.Encoding = "console"
			zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else if level, parseErr := zapcore.ParseLevel(cfg.Logging.Level); parseErr == nil {
			zapCfg.Level = zap.NewAtomicLevelAt(level)
		}
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run [goal]",
	Short: "Plan and execute a goal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		goal := strings.Join(args, " ")
		return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
			st, err := rt.controller.Run(ctx, goal)
			return report(st, err)
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume [run-id] [reply]",
	Short: "Resume a suspended run with a reply to its question",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]
		reply := strings.Join(args[1:], " ")
		return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
			st, err := rt.controller.Resume(ctx, runID, reply)
			return report(st, err)
		})
	},
}

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the knowledge base",
}

var kbAddCmd = &cobra.Command{
	Use:   "add [file...]",
	Short: "Ingest files into the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, ingestor, err := openKB(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		for _, path := range args {
			chunks, err := ingestor.AddFile(ctx, path)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d chunks\n", path, chunks)
		}
		return nil
	},
}

var kbWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the configured directory and ingest documents as they change",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.KB.WatchDir == "" {
			return fmt.Errorf("kb.watch_dir is not configured")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, ingestor, err := openKB(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		watcher := kb.NewWatcher(ingestor, cfg.KB.WatchDir, logger)
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List known runs and their status",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := checkpoint.Open(cfg.CheckpointPath())
		if err != nil {
			return err
		}
		defer store.Close()

		snaps, err := store.List()
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No runs recorded")
			return nil
		}
		for _, snap := range snaps {
			line := fmt.Sprintf("%s  %-10s %s", snap.RunID, snap.Status,
				snap.UpdatedAt.Format("2006-01-02 15:04:05"))
			if snap.Status == checkpoint.StatusSuspended && snap.Prompt != "" {
				line += "  awaiting: " + snap.Prompt
			}
			fmt.Println(line)
		}
		return nil
	},
}

// runtime bundles the wired-up components for one invocation.
type runtime struct {
	controller *orchestrator.Controller
	shell      *shell.Manager
	browser    *webops.Browser
	kbStore    *kb.Store
	checkpoint *checkpoint.Store
}

// withRuntime wires all components, runs fn, and tears everything down.
func withRuntime(parent context.Context, fn func(context.Context, *runtime) error) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := reasoner.NewGeminiClient(reasoner.GeminiConfig{
		APIKey:          cfg.Reasoner.APIKey,
		BaseURL:         cfg.Reasoner.BaseURL,
		Model:           cfg.Reasoner.Model,
		Timeout:         config.ParseDuration(cfg.Reasoner.Timeout, 0),
		MaxOutputTokens: cfg.Reasoner.MaxOutputTokens,
	}, logger)
	if err != nil {
		return err
	}

	checkpoints, err := checkpoint.Open(cfg.CheckpointPath())
	if err != nil {
		return err
	}
	defer checkpoints.Close()

	kbStore, _, err := openKB(ctx)
	if err != nil {
		return err
	}
	defer kbStore.Close()

	mgr := shell.NewManager(shell.Options{
		Grace:        config.ParseDuration(cfg.Shell.GracePeriod, 0),
		Settle:       config.ParseDuration(cfg.Shell.SettleDelay, 0),
		PreviewLimit: cfg.Shell.PreviewChars,
	}, logger)
	defer mgr.Shutdown()

	browser := webops.NewBrowser(logger)
	defer browser.Close()

	registry := tools.NewRegistry()
	fsops.RegisterAll(registry)
	shellops.RegisterAll(registry, mgr, cfg.Workspace)
	webops.RegisterAll(registry, browser)

	maxCalls := cfg.Orchestrator.MaxToolCallsPerTurn
	workers := []agent.Worker{
		agent.NewFSWorker(client, registry, maxCalls, logger),
		agent.NewShellWorker(client, registry, maxCalls, logger),
		agent.NewBrowserWorker(client, registry, maxCalls, logger),
		agent.NewKBWorker(client, kbStore, cfg.KB.TopK, cfg.Orchestrator.MaxQueryRewrites, logger),
	}

	dispatcher := orchestrator.NewDispatcher(client, workers, logger)
	controller := orchestrator.NewController(client, dispatcher, checkpoints,
		cfg.Orchestrator.MaxCycles, logger)
	controller.OnProgress(printProgress)

	return fn(ctx, &runtime{
		controller: controller,
		shell:      mgr,
		browser:    browser,
		kbStore:    kbStore,
		checkpoint: checkpoints,
	})
}

// openKB opens the knowledge-base store and its ingestor. The embedder is
// optional: without an API key retrieval degrades to keyword search.
func openKB(ctx context.Context) (*kb.Store, *kb.Ingestor, error) {
	var embedder kb.Embedder
	if cfg.Reasoner.APIKey != "" {
		e, err := kb.NewGenAIEmbedder(ctx, cfg.Reasoner.APIKey, cfg.KB.EmbeddingModel)
		if err != nil {
			return nil, nil, err
		}
		embedder = e
	}

	store, err := kb.OpenStore(cfg.KBPath(), embedder, logger)
	if err != nil {
		return nil, nil, err
	}
	ingestor := kb.NewIngestor(store, cfg.KB.ChunkSize, cfg.KB.ChunkOverlap, logger)
	return store, ingestor, nil
}

// printProgress styles controller transitions for the terminal.
func printProgress(transition string, st *state.State) {
	switch transition {
	case orchestrator.TransitionPlan:
		fmt.Println(noticeStyle.Render(fmt.Sprintf("Plan created (%d steps)", len(st.Plan))))
		for i, step := range st.Plan {
			fmt.Println(stepStyle.Render(fmt.Sprintf("  %d. %s", i+1, step.Description)))
		}
	case orchestrator.TransitionDelegate:
		if n := len(st.PastSteps); n > 0 {
			last := st.PastSteps[n-1]
			fmt.Println(stepStyle.Render("Done: " + last.Step))
		}
	case orchestrator.TransitionReplan:
		if !st.Done() {
			fmt.Println(noticeStyle.Render(fmt.Sprintf("Plan revised (%d steps remaining)", len(st.Plan))))
		}
	}
}

// report renders the run's conclusion: the final response as markdown, a
// suspension as the question to answer, or the error itself.
func report(st *state.State, err error) error {
	var suspension *orchestrator.Suspension
	if errors.As(err, &suspension) {
		fmt.Println(noticeStyle.Render("Input needed: " + suspension.Prompt))
		fmt.Printf("Reply with: foreman resume %s \"<answer>\"\n", suspension.RunID)
		return nil
	}
	if err != nil {
		return err
	}

	rendered, renderErr := glamour.Render(st.Response, "dark")
	if renderErr != nil {
		fmt.Println(st.Response)
		return nil
	}
	fmt.Print(rendered)
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "foreman.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	kbCmd.AddCommand(kbAddCmd, kbWatchCmd)
	rootCmd.AddCommand(runCmd, resumeCmd, kbCmd, sessionsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
