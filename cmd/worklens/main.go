package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"worklens/internal/analyzer"
	"worklens/internal/config"
	"worklens/internal/report"
	"worklens/internal/watch"
)

var (
	configPath string
	verbose    bool
	asJSON     bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "worklens",
	Short: "Reconstruct unified work sessions from local developer tool logs",
	Long: `worklens reads the local activity stores of developer tools - an editor
assistant's binary store, a terminal emulator's network log, a terminal
conversation database, and a flat command history file - reconstructs work
sessions from them, and merges sessions that happened concurrently across
tools into one unified view.

All sources are read-only; nothing is written back and nothing is persisted
between runs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		zapConfig.OutputPaths = []string{"stderr"}
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a full analysis and print the activity report",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		result, err := analyzer.New(cfg, logger).Run(cmd.Context())
		if err != nil {
			return err
		}

		if asJSON {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(result)
		}

		fmt.Fprint(cmd.OutOrStdout(), report.RenderReport(result.Stats, result.Sessions))
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List reconstructed unified sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		result, err := analyzer.New(cfg, logger).Run(cmd.Context())
		if err != nil {
			return err
		}

		for _, session := range result.Sessions {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-16s  %3.0fm  %4d commands  %s\n",
				session.Timespan.Start.Format("2006-01-02 15:04"),
				session.Source,
				session.Timespan.Minutes(),
				len(session.Commands),
				session.ID)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Render the Markdown view of one unified session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		result, err := analyzer.New(cfg, logger).Run(cmd.Context())
		if err != nil {
			return err
		}

		for _, session := range result.Sessions {
			if session.ID == args[0] {
				fmt.Fprint(cmd.OutOrStdout(), report.RenderSession(session))
				return nil
			}
		}
		return fmt.Errorf("no session with id %q in this run", args[0])
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run the analysis whenever a source store changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		run := func() {
			result, err := analyzer.New(cfg, logger).Run(cmd.Context())
			if err != nil {
				logger.Warn("analysis run failed", zap.Error(err))
				return
			}
			fmt.Fprint(cmd.OutOrStdout(), report.RenderReport(result.Stats, result.Sessions))
		}
		run()

		watcher := watch.New([]string{
			cfg.Sources.EditorStoreDir,
			cfg.Sources.TerminalLogPath,
			cfg.Sources.ConversationDBPath,
			cfg.Sources.HistoryFilePath,
		}, logger)
		return watcher.Run(cmd.Context(), run)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	analyzeCmd.Flags().BoolVar(&asJSON, "json", false, "Emit the full result as JSON")

	rootCmd.AddCommand(analyzeCmd, sessionsCmd, showCmd, watchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "worklens error: %v\n", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".worklens.yaml"
	}
	return home + "/.worklens.yaml"
}
