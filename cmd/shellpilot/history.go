package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shellpilot/internal/config"
	"shellpilot/internal/transcript"
)

var historyLimit int

// historyCmd lists persisted task transcripts.
var historyCmd = &cobra.Command{
	Use:   "history [task-id]",
	Short: "List recorded tasks, or replay one task's transcript",
	Args:  cobra.MaximumNArgs(1),
	RunE:  showHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "max tasks to list")
}

func showHistory(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath(workspace)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Store.Enabled {
		fmt.Println("transcript persistence is disabled; set store.enabled in the config to record sessions")
		return nil
	}

	store, err := transcript.NewStore(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open transcript store: %w", err)
	}
	defer store.Close()

	if len(args) == 1 {
		blocks, err := store.Blocks(args[0])
		if err != nil {
			return err
		}
		if len(blocks) == 0 {
			fmt.Println("no transcript for task", args[0])
			return nil
		}
		for _, b := range blocks {
			fmt.Printf("[%s] %s\n", b.Kind, b.Text)
			for _, c := range b.Commands {
				fmt.Println(commandStyle.Render("  $ "+c.Text), riskStyle.Render("["+c.Risk.String()+"]"))
			}
		}
		return nil
	}

	tasks, err := store.ListTasks(historyLimit)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("no recorded tasks")
		return nil
	}
	for _, t := range tasks {
		fmt.Printf("%s  %-9s  %s  %s\n",
			t.ID, t.State, t.CreatedAt.Format("2006-01-02 15:04"), t.Goal)
	}
	return nil
}
