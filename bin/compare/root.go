package main

import (
	"log/slog"
	"os"

	"image-compare/internal/config"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var envFile string
	var verbose bool

	root := &cobra.Command{
		Use:           "compare",
		Short:         "Compare two images and produce a luma difference mask",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", config.EnvOrDefaultValue("ENV_FILE", ".env"), "Optional dotenv file to load")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logs")

	root.AddCommand(newRunCommand())
	root.AddCommand(newDescribeCommand())
	return root
}
