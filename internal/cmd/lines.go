package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jaminalder/cube-tic-tac-toe/internal/domain"
)

func Lines() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lines <size>",
		Short: "Lists the winning lines of a board",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: size %q", domain.ErrConfiguration, args[0])
			}
			name, _ := cmd.Flags().GetString("shape")
			shape, err := domain.ParseShape(name)
			if err != nil {
				return err
			}
			lines, err := domain.Lines(size, shape)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d lines on a %d %s\n", len(lines), size, shape)
			if count, _ := cmd.Flags().GetBool("count"); count {
				return nil
			}
			for i, line := range lines {
				cells := make([]string, len(line))
				for j, c := range line {
					cells[j] = strconv.Itoa(c)
				}
				fmt.Fprintf(out, "%3d: %s\n", i, strings.Join(cells, " "))
			}
			return nil
		},
	}

	cmd.Flags().StringP("shape", "s", "square", "Board shape: square or cube")
	cmd.Flags().Bool("count", false, "Only print the number of lines")
	return cmd
}
