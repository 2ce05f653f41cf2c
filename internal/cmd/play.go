package cmd

import (
	"errors"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/jaminalder/cube-tic-tac-toe/internal/cli"
	"github.com/jaminalder/cube-tic-tac-toe/internal/domain"
	"github.com/jaminalder/cube-tic-tac-toe/internal/selector"
)

func PlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play against the computer in the terminal",
		Long: heredoc.Doc(`
			Play against the computer in the terminal.

			Enter a move as a cell number, or as coordinates: "row col" on a
			square board and "layer row col" on a cube. Enter q to quit.
		`),
		Example: heredoc.Doc(`
			$ tictactoe play --size 4 --shape cube --difficulty strategic
		`),
		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defaults, err := settingsFrom(cfg.Defaults)
			if err != nil {
				return err
			}
			opts := cli.Options{
				Size:       defaults.Size,
				Shape:      defaults.Shape,
				Difficulty: defaults.Difficulty,
				Delay:      cfg.ComputerDelay,
			}

			flags := cmd.Flags()
			if flags.Changed("size") {
				opts.Size, _ = flags.GetInt("size")
			}
			if flags.Changed("shape") {
				v, _ := flags.GetString("shape")
				if opts.Shape, err = domain.ParseShape(v); err != nil {
					return err
				}
			}
			if flags.Changed("difficulty") {
				v, _ := flags.GetString("difficulty")
				if opts.Difficulty, err = selector.ParseKind(v); err != nil {
					return err
				}
			}
			if flags.Changed("delay") {
				opts.Delay, _ = flags.GetDuration("delay")
			}
			opts.HumanSecond, _ = flags.GetBool("second")
			opts.Seed, _ = flags.GetInt64("seed")

			_, err = cli.Play(cmd.Context(), os.Stdin, cmd.OutOrStdout(), opts)
			if errors.Is(err, cli.ErrQuit) {
				return nil
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.IntP("size", "n", 3, "Board edge length")
	flags.StringP("shape", "s", "square", "Board shape: square or cube")
	flags.StringP("difficulty", "d", "random", "Computer strategy: random or strategic")
	flags.Bool("second", false, "Let the computer open")
	flags.Duration("delay", 0, "Time the computer pretends to think")
	flags.Int64("seed", 0, "Seed for the random strategy (0 picks one)")
	return cmd
}
