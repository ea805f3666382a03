// Package cli implements the robot-brain CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rcliao/robot-brain/internal/config"
	"github.com/rcliao/robot-brain/internal/logging"
	"github.com/rcliao/robot-brain/internal/model"
	"github.com/rcliao/robot-brain/internal/store"
)

var (
	configPath string
	memoryPath string
	logLevel   string
	formatFlag string

	cfg     *config.Config
	logFile io.Closer
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "robot-brain",
	Short: "Personality layer for a small robot car",
	Long: "Conversation, memory, modes and exploration for a PiCar-X style robot. " +
		"Run it against the simulator or inspect and edit what the robot remembers.",
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $ROBOT_BRAIN_CONFIG or ~/.robot-brain/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&memoryPath, "memory", "m", "", "Memory file (default: $ROBOT_BRAIN_MEMORY or memory.path from config)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("ROBOT_BRAIN_CONFIG"); env != "" {
		return env
	}
	return config.DefaultPath()
}

func getMemoryPath() string {
	if memoryPath != "" {
		return memoryPath
	}
	if env := os.Getenv("ROBOT_BRAIN_MEMORY"); env != "" {
		return env
	}
	return cfg.Memory.Path
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.LoadFromPath(getConfigPath())
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	cfg = c

	closer, err := logging.Setup(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	logFile = closer
	return nil
}

func teardown(*cobra.Command, []string) error {
	if logFile != nil {
		return logFile.Close()
	}
	return nil
}

func openStore(ctx context.Context) (*store.Store, error) {
	path := getMemoryPath()
	var (
		b   store.Backend
		err error
	)
	switch cfg.Memory.Backend {
	case "sqlite":
		b, err = store.NewSQLiteBackend(path)
	default:
		b, err = store.NewFileBackend(path)
	}
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, b,
		store.WithMaxPerEntity(cfg.Memory.MaxPerEntity),
		store.WithOnWrite(func(e model.Entity, err error) {
			if err != nil {
				log.Warn().Err(err).Str("component", "memory").Str("entity", string(e)).Msg("observation dropped")
			}
		}),
	), nil
}

// printJSON writes v indented to the command's output.
func printJSON(cmd *cobra.Command, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
