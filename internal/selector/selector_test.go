package selector

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/jaminalder/cube-tic-tac-toe/internal/domain"
)

// setup plays cells alternately on a fresh board.
func setup(t *testing.T, n int, shape domain.Shape, cells ...int) *domain.Game {
	t.Helper()
	g, err := domain.New(n, shape)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i, c := range cells {
		if _, err := g.Play(g.ToMove(), c); err != nil {
			t.Fatalf("move %d (cell %d): %v", i, c, err)
		}
	}
	return g
}

func strategicFor(t *testing.T, g *domain.Game) *StrategicSelector {
	t.Helper()
	s, err := NewStrategic(g.Geometry(), g.Candidates())
	if err != nil {
		t.Fatalf("NewStrategic: %v", err)
	}
	return s
}

func selectFor(t *testing.T, s Selector, g *domain.Game) int {
	t.Helper()
	cand := g.Candidates()
	me := g.ToMove()
	c, err := s.Select(g.Remaining(), cand[me], cand[me.Opponent()])
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	return c
}

func TestStrategicBlocks(t *testing.T) {
	// X holds 0 and 1, O must take 2
	g := setup(t, 3, domain.Square, 0, 8, 1)
	if got := selectFor(t, strategicFor(t, g), g); got != 2 {
		t.Fatalf("expected block at 2, got %d", got)
	}
}

func TestStrategicPrefersWinOverBlock(t *testing.T) {
	// X: 0 1 _ , O: 3 4 _ with X to move
	g := setup(t, 3, domain.Square, 0, 3, 1, 4)
	if got := selectFor(t, strategicFor(t, g), g); got != 2 {
		t.Fatalf("expected X to win at 2, got %d", got)
	}
	// X wastes a move on 8; O now wins at 5 rather than blocking 2
	if _, err := g.Play(0, 8); err != nil {
		t.Fatalf("play: %v", err)
	}
	if got := selectFor(t, strategicFor(t, g), g); got != 5 {
		t.Fatalf("expected O to win at 5, got %d", got)
	}
}

func TestStrategicBlocksInCube(t *testing.T) {
	// X holds two cells of the space diagonal 0-13-26
	g := setup(t, 3, domain.Cube, 0, 1, 13)
	if got := selectFor(t, strategicFor(t, g), g); got != 26 {
		t.Fatalf("expected block at 26, got %d", got)
	}
}

func TestStrategicHeuristic(t *testing.T) {
	g := setup(t, 3, domain.Square)
	s := strategicFor(t, g)
	full := domain.FullBitset(len(g.Geometry().Lines))
	none := domain.NewBitset(len(g.Geometry().Lines))
	// with no opponent lines the center, on four lines, scores highest
	c, err := s.Select(g.Remaining(), full, none)
	if err != nil || c != 4 {
		t.Fatalf("expected center, got %d (%v)", c, err)
	}
	// equal scores everywhere fall back to the lowest index
	c, err = s.Select(g.Remaining(), full, full)
	if err != nil || c != 0 {
		t.Fatalf("expected cell 0 on ties, got %d (%v)", c, err)
	}
}

func TestStrategicUsesInitialCandidates(t *testing.T) {
	g := setup(t, 3, domain.Square)
	s := strategicFor(t, g)
	c, err := s.Select(g.Remaining(), domain.Bitset{}, domain.Bitset{})
	if err != nil || c != 0 {
		t.Fatalf("expected cell 0, got %d (%v)", c, err)
	}
}

func TestStrategicInitialCandidatesFollowMover(t *testing.T) {
	g := setup(t, 3, domain.Square, 0)
	lines := len(g.Geometry().Lines)
	// only X has live lines, and O is to move
	initial := domain.Candidates{domain.FullBitset(lines), domain.NewBitset(lines)}
	s, err := NewStrategic(g.Geometry(), initial)
	if err != nil {
		t.Fatalf("NewStrategic: %v", err)
	}
	// O scores each cell by minus X's lines through it, so an edge wins
	c, err := s.Select(g.Remaining(), domain.Bitset{}, domain.Bitset{})
	if err != nil || c != 1 {
		t.Fatalf("expected edge cell 1, got %d (%v)", c, err)
	}
}

func TestStrategicRejectsMismatchedCandidates(t *testing.T) {
	g := setup(t, 3, domain.Square)
	other := setup(t, 4, domain.Square)
	if _, err := NewStrategic(g.Geometry(), other.Candidates()); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if _, err := NewStrategic(nil, g.Candidates()); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for nil geometry, got %v", err)
	}
}

func TestRandomPicksRemaining(t *testing.T) {
	r := NewRandom(rand.New(rand.NewSource(7)))
	remaining := []int{2, 5, 11}
	seen := map[int]int{}
	for i := 0; i < 300; i++ {
		c, err := r.Select(remaining, domain.Bitset{}, domain.Bitset{})
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		seen[c]++
	}
	for _, c := range remaining {
		if seen[c] == 0 {
			t.Fatalf("cell %d never chosen: %v", c, seen)
		}
	}
	if len(seen) != len(remaining) {
		t.Fatalf("chose a cell outside remaining: %v", seen)
	}
}

func TestSelectWithoutMoves(t *testing.T) {
	g := setup(t, 3, domain.Square)
	for _, s := range []Selector{NewRandom(nil), strategicFor(t, g)} {
		if _, err := s.Select(nil, domain.Bitset{}, domain.Bitset{}); !errors.Is(err, ErrNoMoves) {
			t.Fatalf("%v: expected ErrNoMoves, got %v", s.Kind(), err)
		}
	}
}

func TestNewByKind(t *testing.T) {
	g := setup(t, 3, domain.Square)
	for _, k := range []Kind{Random, Strategic} {
		s, err := New(k, g.Geometry(), g.Candidates(), nil)
		if err != nil {
			t.Fatalf("New(%v): %v", k, err)
		}
		if s.Kind() != k {
			t.Fatalf("New(%v) built %v", k, s.Kind())
		}
	}
	if _, err := New(Kind(9), g.Geometry(), g.Candidates(), nil); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if k, err := ParseKind("1"); err != nil || k != Strategic {
		t.Fatalf("ParseKind(1) = %v, %v", k, err)
	}
}

func TestStrategicSurvivesOpeningAgainstRandom(t *testing.T) {
	// strategic as O against random X: every time X threatens, O blocks or wins
	rng := rand.New(rand.NewSource(3))
	for game := 0; game < 50; game++ {
		g := setup(t, 3, domain.Square)
		rnd := NewRandom(rng)
		st := strategicFor(t, g)
		for !g.Outcome().Over() {
			var c int
			if g.ToMove() == 0 {
				c = selectFor(t, rnd, g)
			} else {
				c = selectFor(t, st, g)
			}
			if _, err := g.Play(g.ToMove(), c); err != nil {
				t.Fatalf("play %d: %v", c, err)
			}
		}
		if out := g.Outcome(); out.Status == domain.Won && out.Winner == 0 && g.Moves() < 6 {
			t.Fatalf("game %d: random X won in %d moves against strategic O", game, g.Moves())
		}
	}
}
