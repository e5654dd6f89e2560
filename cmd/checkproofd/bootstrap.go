package main

import (
	"strings"

	"github.com/spf13/cobra"

	"checkproof/internal/config"
	"checkproof/internal/daemonrun"
)

type flags struct {
	configPath string
	socketPath string
	logLevel   string
}

func (f flags) runOptions() daemonrun.Options {
	return daemonrun.Options{
		SocketPath: strings.TrimSpace(f.socketPath),
		LogLevel:   strings.TrimSpace(f.logLevel),
	}
}

// newRootCommand builds the daemon entrypoint. run is swapped out in tests.
func newRootCommand(run func(cmd *cobra.Command, cfg *config.Config, opts daemonrun.Options) error) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "checkproofd",
		Short:         "Run the checkproof capture daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, _, err := config.Load(strings.TrimSpace(f.configPath))
			if err != nil {
				return err
			}
			return run(cmd, cfg, f.runOptions())
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&f.socketPath, "socket", "", "IPC socket path override")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Override logging.level")
	return cmd
}

func runDaemon(cmd *cobra.Command, cfg *config.Config, opts daemonrun.Options) error {
	return daemonrun.Run(cmd.Context(), cfg, opts)
}
