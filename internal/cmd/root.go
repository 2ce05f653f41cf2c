// Package cmd holds the tictactoe command line.
package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jaminalder/cube-tic-tac-toe/internal/config"
)

func Root() *cobra.Command {
	root := &cobra.Command{
		Use:     "tictactoe",
		Short:   "Generalized tic-tac-toe on squares and cubes",
		Args:    cobra.NoArgs,
		Version: "v0.1.0",

		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cmd.Flag("trace").Changed {
				logrus.SetLevel(logrus.TraceLevel)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.BoolP("trace", "t", false, "Log at trace level")
	flags.StringP("config", "c", "", "Config file (default: searched in the XDG config dirs)")

	root.AddCommand(Serve())
	root.AddCommand(PlayCmd())
	root.AddCommand(Lines())

	return root
}

// loadConfig reads the file named by --config, or the XDG default, and
// applies its log level unless --trace asked for more.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if !cmd.Flag("trace").Changed {
		logrus.SetLevel(cfg.Level())
	}
	return cfg, nil
}
