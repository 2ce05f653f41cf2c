// Package selector holds the move choice strategies used for the computer
// player.
package selector

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/jaminalder/cube-tic-tac-toe/internal/domain"
)

// Kind tags the selector variant. It doubles as the difficulty level.
type Kind uint8

const (
	Random Kind = iota
	Strategic
)

func (k Kind) String() string {
	switch k {
	case Random:
		return "random"
	case Strategic:
		return "strategic"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Errors returned by selectors.
var (
	ErrNoMoves     = errors.New("no remaining cells")
	ErrUnknownKind = errors.New("unknown selector kind")
)

// ParseKind accepts the names above or the difficulty level as a number.
func ParseKind(v string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "random", "0":
		return Random, nil
	case "strategic", "1":
		return Strategic, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, v)
}

// Selector picks the computer's next cell. own and opp are the live line
// sets of the mover and of its opponent; Random ignores them.
type Selector interface {
	Kind() Kind
	Select(remaining []int, own, opp domain.Bitset) (int, error)
}

// New builds the selector for kind. geo and initial are only used by
// Strategic; rng only by Random.
func New(kind Kind, geo *domain.Geometry, initial domain.Candidates, rng *rand.Rand) (Selector, error) {
	switch kind {
	case Random:
		return NewRandom(rng), nil
	case Strategic:
		return NewStrategic(geo, initial)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
}

// RandomSelector samples uniformly among the remaining cells.
type RandomSelector struct {
	rng *rand.Rand
}

// NewRandom returns a RandomSelector; a nil rng uses the global source.
func NewRandom(rng *rand.Rand) *RandomSelector { return &RandomSelector{rng: rng} }

func (r *RandomSelector) Kind() Kind { return Random }

func (r *RandomSelector) Select(remaining []int, _, _ domain.Bitset) (int, error) {
	if len(remaining) == 0 {
		return 0, ErrNoMoves
	}
	if r.rng == nil {
		return remaining[rand.Intn(len(remaining))], nil
	}
	return remaining[r.rng.Intn(len(remaining))], nil
}
