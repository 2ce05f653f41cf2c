package domain

import (
	"errors"
	"fmt"
)

// Cell represents a board cell state.
type Cell uint8

const (
	Empty Cell = iota
	X
	O
)

func (c Cell) String() string {
	switch c {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return ""
	}
}

// Player is 0 for the first mover and 1 for the second.
type Player int

// Mark is the cell value the player writes.
func (p Player) Mark() Cell {
	if p == 0 {
		return X
	}
	return O
}

func (p Player) Opponent() Player { return 1 - p }

func (p Player) valid() bool { return p == 0 || p == 1 }

// Status is the lifecycle stage of a game.
type Status uint8

const (
	NotStarted Status = iota
	InProgress
	Won
	Drawn
)

func (s Status) String() string {
	switch s {
	case InProgress:
		return "in progress"
	case Won:
		return "won"
	case Drawn:
		return "draw"
	default:
		return "not started"
	}
}

// Outcome is the result of a move. Winner and Line are meaningful only when
// Status is Won.
type Outcome struct {
	Status Status
	Winner Player
	Line   int
}

// Over reports whether the game has terminated.
func (o Outcome) Over() bool { return o.Status == Won || o.Status == Drawn }

// Candidates holds each player's live line set, indexed by Player.
type Candidates [2]Bitset

// Errors returned by domain operations.
var (
	ErrConfiguration = errors.New("invalid configuration")
	ErrOutOfBounds   = errors.New("out of bounds")
	ErrOccupied      = errors.New("cell occupied")
	ErrOutOfTurn     = errors.New("out of turn")
	ErrGameOver      = errors.New("game over")
)

// Game holds the current state of a match on a square or cube board.
type Game struct {
	geo       *Geometry
	board     []Cell
	remaining Bitset
	live      Candidates
	// marks[p][l] counts player p's cells on line l.
	marks   [2][]int
	turn    int
	outcome Outcome
}

// New returns a game with player 0 to move.
func New(size int, shape Shape) (*Game, error) {
	geo, err := GeometryFor(size, shape)
	if err != nil {
		return nil, err
	}
	g := &Game{geo: geo}
	g.Reset()
	return g, nil
}

// Reset clears the board and restores both live sets; the geometry is reused.
func (g *Game) Reset() {
	g.board = make([]Cell, g.geo.Cells)
	g.remaining = FullBitset(g.geo.Cells)
	nl := len(g.geo.Lines)
	for p := range g.live {
		g.live[p] = FullBitset(nl)
		g.marks[p] = make([]int, nl)
	}
	g.turn = 0
	g.outcome = Outcome{Status: InProgress, Line: -1}
}

// Play marks cell for player. On error the game is left untouched.
func (g *Game) Play(player Player, cell int) (Outcome, error) {
	if g.geo == nil {
		return g.outcome, fmt.Errorf("%w: game not started", ErrConfiguration)
	}
	if g.outcome.Over() {
		return g.outcome, ErrGameOver
	}
	if cell < 0 || cell >= g.geo.Cells {
		return g.outcome, ErrOutOfBounds
	}
	if g.board[cell] != Empty {
		return g.outcome, ErrOccupied
	}
	if !player.valid() || player != g.ToMove() {
		return g.outcome, ErrOutOfTurn
	}

	g.board[cell] = player.Mark()
	g.remaining.Remove(cell)

	opp := player.Opponent()
	won := -1
	for _, l := range g.geo.CellLines[cell] {
		g.live[opp].Remove(l)
		g.marks[player][l]++
		if won < 0 && g.live[player].Has(l) && g.marks[player][l] == g.geo.Size {
			won = l
		}
	}

	switch {
	case won >= 0:
		g.outcome = Outcome{Status: Won, Winner: player, Line: won}
	case g.remaining.Empty():
		g.outcome = Outcome{Status: Drawn, Line: -1}
	default:
		g.turn++
	}
	return g.outcome, nil
}

// Board returns a copy of the cells.
func (g *Game) Board() []Cell {
	out := make([]Cell, len(g.board))
	copy(out, g.board)
	return out
}

// Remaining returns the empty cell indices in ascending order.
func (g *Game) Remaining() []int { return g.remaining.Values() }

// Candidates returns a snapshot of both players' live line sets.
func (g *Game) Candidates() Candidates {
	return Candidates{g.live[0].Clone(), g.live[1].Clone()}
}

func (g *Game) Geometry() *Geometry { return g.geo }

// Turn is the ply counter; it stops advancing once the game is over.
func (g *Game) Turn() int { return g.turn }

// ToMove is the player whose turn it is.
func (g *Game) ToMove() Player { return Player(g.turn % 2) }

// Moves is the number of marked cells.
func (g *Game) Moves() int {
	if g.geo == nil {
		return 0
	}
	return g.geo.Cells - g.remaining.Len()
}

func (g *Game) Status() Status { return g.outcome.Status }

func (g *Game) Outcome() Outcome { return g.outcome }
