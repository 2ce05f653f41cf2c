// Package cli plays a game against the computer on a terminal.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/sirupsen/logrus"

	"github.com/jaminalder/cube-tic-tac-toe/internal/domain"
	"github.com/jaminalder/cube-tic-tac-toe/internal/selector"
)

// SPIN is the spinner.CharSets entry shown while the computer thinks.
const SPIN = 14

// ErrQuit is returned when the player leaves the game.
var ErrQuit = errors.New("quit")

type Options struct {
	Size       int
	Shape      domain.Shape
	Difficulty selector.Kind
	// HumanSecond lets the computer open.
	HumanSecond bool
	Delay       time.Duration
	Seed        int64
}

// Play runs one game, reading moves from in and drawing to out. It returns
// the final outcome and the side the human played.
func Play(ctx context.Context, in io.Reader, out io.Writer, opts Options) (domain.Outcome, error) {
	g, err := domain.New(opts.Size, opts.Shape)
	if err != nil {
		return domain.Outcome{}, err
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sel, err := selector.New(opts.Difficulty, g.Geometry(), g.Candidates(), rand.New(rand.NewSource(seed)))
	if err != nil {
		return domain.Outcome{}, err
	}
	human := domain.Player(0)
	if opts.HumanSecond {
		human = 1
	}
	logrus.WithFields(logrus.Fields{
		"size":       opts.Size,
		"shape":      opts.Shape,
		"difficulty": opts.Difficulty,
	}).Debug("starting terminal game")

	reader := bufio.NewReader(in)
	for !g.Outcome().Over() {
		if err := ctx.Err(); err != nil {
			return g.Outcome(), err
		}
		me := g.ToMove()
		var cell int
		if me == human {
			Draw(out, g)
			cell, err = readMove(reader, out, g)
			if err != nil {
				return g.Outcome(), err
			}
		} else {
			if err := think(ctx, out, opts.Delay); err != nil {
				return g.Outcome(), err
			}
			cand := g.Candidates()
			cell, err = sel.Select(g.Remaining(), cand[me], cand[me.Opponent()])
			if err != nil {
				return g.Outcome(), err
			}
			fmt.Fprintf(out, "Computer plays %s\n", label(g.Geometry(), cell))
		}
		if _, err := g.Play(me, cell); err != nil {
			return g.Outcome(), err
		}
	}

	Draw(out, g)
	res := g.Outcome()
	switch {
	case res.Status == domain.Drawn:
		fmt.Fprintln(out, "Draw")
	case res.Winner == human:
		fmt.Fprintln(out, "You win!!")
	default:
		fmt.Fprintln(out, "You lose...")
	}
	return res, nil
}

// think waits for delay with a spinner, returning early if ctx ends.
func think(ctx context.Context, out io.Writer, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	s := spinner.New(spinner.CharSets[SPIN], 100*time.Millisecond, spinner.WithWriter(out))
	s.Suffix = " Computer's turn"
	s.Start()
	defer s.Stop()

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// readMove prompts until the player enters a free cell, either as an index
// or as coordinates ("row col" or "layer row col").
func readMove(r *bufio.Reader, out io.Writer, g *domain.Game) (int, error) {
	geo := g.Geometry()
	board := g.Board()
	for {
		fmt.Fprint(out, "Your move: ")
		line, err := r.ReadString('\n')
		input := strings.TrimSpace(line)
		if input == "" && err != nil {
			if errors.Is(err, io.EOF) {
				return 0, ErrQuit
			}
			return 0, err
		}
		if input == "q" || input == "quit" {
			return 0, ErrQuit
		}
		cell, perr := parseMove(geo, input)
		switch {
		case perr != nil:
			fmt.Fprintln(out, "Enter a cell number or coordinates, e.g. 4 or 1 1.")
		case board[cell] != domain.Empty:
			fmt.Fprintln(out, "This cell is already selected.")
		default:
			return cell, nil
		}
		if err != nil {
			return 0, ErrQuit
		}
	}
}

func parseMove(geo *domain.Geometry, input string) (int, error) {
	fields := strings.FieldsFunc(input, func(r rune) bool { return r == ' ' || r == ',' })
	nums := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return 0, err
		}
		nums[i] = n
	}
	switch len(nums) {
	case 1:
		if nums[0] < 0 || nums[0] >= geo.Cells {
			return 0, domain.ErrOutOfBounds
		}
		return nums[0], nil
	default:
		idx, ok := geo.Index(nums...)
		if !ok {
			return 0, domain.ErrOutOfBounds
		}
		return idx, nil
	}
}

func label(geo *domain.Geometry, cell int) string {
	c := geo.Coords(cell)
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = strconv.Itoa(v)
	}
	return fmt.Sprintf("%d (%s)", cell, strings.Join(parts, " "))
}

// Draw prints the board, one grid per cube layer, with the index of each
// free cell.
func Draw(out io.Writer, g *domain.Game) {
	geo := g.Geometry()
	board := g.Board()
	n := geo.Size
	width := len(strconv.Itoa(geo.Cells - 1))
	per := n * n
	for start := 0; start < geo.Cells; start += per {
		if geo.Shape == domain.Cube {
			fmt.Fprintf(out, "layer %d\n", start/per)
		}
		for row := 0; row < n; row++ {
			cells := make([]string, n)
			for col := 0; col < n; col++ {
				i := start + row*n + col
				sym := board[i].String()
				if sym == "" {
					sym = strconv.Itoa(i)
				}
				cells[col] = fmt.Sprintf("%*s", width, sym)
			}
			fmt.Fprintln(out, strings.Join(cells, " | "))
		}
		fmt.Fprintln(out)
	}
}
