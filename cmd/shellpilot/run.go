package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shellpilot/internal/config"
	"shellpilot/internal/detector"
	"shellpilot/internal/dialogue"
	"shellpilot/internal/gateway"
	"shellpilot/internal/logging"
	"shellpilot/internal/orchestrator"
	"shellpilot/internal/policy"
	"shellpilot/internal/shell"
	"shellpilot/internal/transcript"
	"shellpilot/internal/types"
)

// runCmd pursues a single goal against the local shell.
var runCmd = &cobra.Command{
	Use:   "run [goal]",
	Short: "Pursue a natural-language goal with the agent loop",
	Long: `Runs the full agent loop against the local shell:
  1. Plan: the LLM proposes the next command(s) for the goal
  2. Gate: the risk policy decides whether to auto-dispatch
  3. Execute: the command runs; output lands in the capture history
  4. Detect: polling finds the prompt that marks completion
  5. Analyze: captured output feeds the next planning step

The loop ends when the model reports completion or an error stops it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGoal,
}

func runGoal(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	goal := strings.Join(args, " ")
	logger.Info("Pursuing goal", zap.String("goal", goal))

	if err := logging.Initialize(workspace); err != nil {
		logger.Warn("Debug logging unavailable", zap.Error(err))
	}

	path := configPath
	if path == "" {
		path = config.DefaultPath(workspace)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlagOverrides(cmd, cfg)
	if err := logging.Configure(loggingSettings(cfg)); err != nil {
		logger.Warn("Debug logging unavailable", zap.Error(err))
	}

	// Wiring: history <- runner (writes), detector + orchestrator (read).
	history := shell.NewHistory()
	runner := shell.NewRunner(history, workspace, 60*time.Second)
	defer runner.Close()

	pollInterval, _ := cfg.PollInterval()
	det := detector.New(history,
		detector.WithInterval(pollInterval),
		detector.WithMaxPolls(cfg.Detector.MaxPolls),
	)

	dc := dialogue.NewContext(orchestrator.DefaultSystemPrompt, dialogue.Limits{
		MaxHistoryLength: cfg.Agent.MaxHistoryLength,
		MaxOutputLines:   cfg.Agent.MaxOutputLines,
		MaxOutputLength:  cfg.Agent.MaxOutputLength,
	})

	gw, err := gateway.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create LLM gateway: %w", err)
	}

	opts := []orchestrator.Option{
		orchestrator.WithSettings(policy.Settings{
			AutoRun:     cfg.Agent.AutoRun,
			MaxAutoRisk: cfg.MaxAutoRiskLevel(),
		}),
	}
	if cfg.Store.Enabled {
		store, err := transcript.NewStore(cfg.Store.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open transcript store: %w", err)
		}
		defer store.Close()
		opts = append(opts, orchestrator.WithRecorder(store))
	}

	orch := orchestrator.New(gw, history, dc, det, runner.Dispatch, opts...)

	g, gctx := errgroup.WithContext(ctx)

	// Hot-reload of execution settings while the session runs.
	watcher, err := config.NewWatcher(path, func(next *config.Config) {
		orch.UpdateSettings(policy.Settings{
			AutoRun:     next.Agent.AutoRun,
			MaxAutoRisk: next.MaxAutoRiskLevel(),
		})
		if lerr := logging.Configure(loggingSettings(next)); lerr != nil {
			logger.Warn("Debug logging unavailable", zap.Error(lerr))
		}
		logger.Info("Execution settings reloaded",
			zap.Bool("auto_run", next.Agent.AutoRun),
			zap.String("max_auto_risk", next.Agent.MaxAutoRisk))
	})
	if err == nil {
		if werr := watcher.Start(gctx); werr != nil {
			logger.Debug("Config watcher not started", zap.Error(werr))
		} else {
			defer watcher.Stop()
		}
	}

	g.Go(func() error {
		if err := orch.SubmitGoal(gctx, goal); err != nil {
			return err
		}
		return followTask(gctx, orch)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	final := orch.Snapshot()
	if final != nil && final.State == types.TaskError {
		return fmt.Errorf("task ended in error; see transcript above")
	}
	return nil
}

// loggingSettings maps the config file's logging section onto the logging
// package.
func loggingSettings(cfg *config.Config) logging.Settings {
	return logging.Settings{
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		Categories: cfg.Logging.Categories,
		JSONFormat: cfg.Logging.JSONFormat,
	}
}

// applyFlagOverrides lets run flags win over the config file.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if cmd.Flags().Changed("auto") {
		cfg.Agent.AutoRun = autoRun
	}
	if maxRisk != "" {
		cfg.Agent.MaxAutoRisk = maxRisk
	}
}

// followTask renders new content blocks as the loop appends them and returns
// when the task reaches a terminal state. When auto-execution is off it
// confirms each held command batch with the user before dispatching.
func followTask(ctx context.Context, orch *orchestrator.Orchestrator) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	rendered := 0
	for {
		select {
		case <-ctx.Done():
			orch.Reset()
			return ctx.Err()
		case <-ticker.C:
			task := orch.Snapshot()
			if task == nil {
				continue
			}
			for _, block := range task.Message.Blocks[rendered:] {
				renderBlock(block)
				rendered++
			}
			if task.State.Terminal() {
				renderFinal(task)
				return nil
			}
			if task.State == types.TaskExecuting && !task.AutoExecute {
				if err := confirmAndRun(ctx, orch, task); err != nil {
					return err
				}
			}
		}
	}
}

// confirmAndRun asks the user about the held command batch. Accepting turns
// auto-execute on for the dispatch; declining skips the batch.
func confirmAndRun(ctx context.Context, orch *orchestrator.Orchestrator, task *types.Task) error {
	blk := task.Message.LastCommandBlock()
	if blk == nil || len(blk.Commands) == 0 || blk.Commands[0].Executed {
		return nil
	}

	fmt.Print(promptStyle.Render("Run the proposed command(s)? [y/N/s(kip)] "))
	var answer string
	fmt.Scanln(&answer)
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		// Progression runs through the same completion path as auto mode, so
		// the flag has to be on before dispatch.
		orch.ToggleAutoExecute()
		for _, c := range blk.Commands {
			fmt.Println(commandStyle.Render("$ " + c.Text))
		}
		return orch.DispatchPending(ctx)
	case "s", "skip":
		orch.ToggleAutoExecute()
		return orch.Skip(ctx)
	default:
		orch.Reset()
		return fmt.Errorf("aborted by user")
	}
}
