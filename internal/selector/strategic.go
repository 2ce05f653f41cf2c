package selector

import (
	"fmt"
	"sort"

	"github.com/jaminalder/cube-tic-tac-toe/internal/domain"
)

// StrategicSelector completes its own line when it can, blocks the
// opponent's otherwise, and else takes the cell with the best balance of
// own live lines over opponent live lines.
type StrategicSelector struct {
	geo     *domain.Geometry
	initial domain.Candidates
}

// NewStrategic binds the selector to a board geometry. initial is indexed by
// player and stands in for live sets that are not supplied to Select.
func NewStrategic(geo *domain.Geometry, initial domain.Candidates) (*StrategicSelector, error) {
	if geo == nil {
		return nil, fmt.Errorf("%w: strategic selector needs a geometry", domain.ErrConfiguration)
	}
	for p, set := range initial {
		if set.Cap() != 0 && set.Cap() != len(geo.Lines) {
			return nil, fmt.Errorf("%w: candidates of player %d cover %d lines, board has %d",
				domain.ErrConfiguration, p, set.Cap(), len(geo.Lines))
		}
	}
	return &StrategicSelector{geo: geo, initial: initial}, nil
}

func (s *StrategicSelector) Kind() Kind { return Strategic }

func (s *StrategicSelector) Select(remaining []int, own, opp domain.Bitset) (int, error) {
	if len(remaining) == 0 {
		return 0, ErrNoMoves
	}
	// X opens and turns alternate, so the marked count names the mover.
	mover := domain.Player((s.geo.Cells - len(remaining)) % 2)
	if own.Cap() == 0 {
		own = s.initial[mover]
	}
	if opp.Cap() == 0 {
		opp = s.initial[mover.Opponent()]
	}

	cells := append([]int(nil), remaining...)
	sort.Ints(cells)

	// empties[l] is the number of unmarked cells on line l. A live line with
	// a single empty cell holds only the owner's marks everywhere else.
	empties := make([]int, len(s.geo.Lines))
	for _, c := range cells {
		if c < 0 || c >= s.geo.Cells {
			return 0, fmt.Errorf("%w: cell %d", domain.ErrOutOfBounds, c)
		}
		for _, l := range s.geo.CellLines[c] {
			empties[l]++
		}
	}

	if c, ok := s.completing(cells, empties, own); ok {
		return c, nil
	}
	if c, ok := s.completing(cells, empties, opp); ok {
		return c, nil
	}

	best, bestScore := cells[0], 0
	for i, c := range cells {
		score := 0
		for _, l := range s.geo.CellLines[c] {
			if own.Has(l) {
				score++
			}
			if opp.Has(l) {
				score--
			}
		}
		if i == 0 || score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, nil
}

// completing returns the lowest cell that finishes a line of live.
func (s *StrategicSelector) completing(cells []int, empties []int, live domain.Bitset) (int, bool) {
	for _, c := range cells {
		for _, l := range s.geo.CellLines[c] {
			if empties[l] == 1 && live.Has(l) {
				return c, true
			}
		}
	}
	return 0, false
}
