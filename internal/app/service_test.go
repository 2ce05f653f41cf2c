package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jaminalder/cube-tic-tac-toe/internal/domain"
	"github.com/jaminalder/cube-tic-tac-toe/internal/selector"
)

// minimal renderer for tests: encode marked cell count as bytes
func testRenderer(gs GameState) []byte {
	return []byte(fmt.Sprintf("moves=%d", len(gs.Board)-len(gs.Remaining)))
}

var square3 = Settings{Size: 3, Shape: domain.Square, Difficulty: selector.Random}

// waitFor polls the game until cond holds or fails the test after 2s.
func waitFor(t *testing.T, s *Service, id string, cond func(GameState) bool) GameState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		gs, ok := s.Get(id)
		if !ok {
			t.Fatalf("game %s vanished", id)
		}
		if cond(*gs) {
			return *gs
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out; last state: turn=%d board=%v thinking=%v", gs.Turn, gs.Board, gs.Thinking)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func marked(gs GameState) int { return len(gs.Board) - len(gs.Remaining) }

func TestCreateAndGet(t *testing.T) {
	s := NewServiceWithRenderer(testRenderer)
	gs, err := s.CreateGame("p1", square3)
	if err != nil {
		t.Fatalf("CreateGame error: %v", err)
	}
	if gs.ID == "" {
		t.Fatalf("expected non-empty game ID")
	}
	if gs.Turn != 0 || gs.Human != 0 || !gs.HumanToMove() {
		t.Fatalf("expected human to open")
	}
	if len(gs.Board) != 9 || len(gs.Remaining) != 9 {
		t.Fatalf("expected empty 3x3 board, got %d cells, %d remaining", len(gs.Board), len(gs.Remaining))
	}
	if gs.Created.IsZero() || gs.Updated.IsZero() {
		t.Fatalf("expected timestamps to be set")
	}
	got, ok := s.Get(gs.ID)
	if !ok || got.ID != gs.ID || got.Owner != "p1" {
		t.Fatalf("Get should find created game")
	}
}

func TestCreateRejectsBadSettings(t *testing.T) {
	s := NewService()
	cases := []Settings{
		{Size: 2, Shape: domain.Square},
		{Size: 3, Shape: domain.Shape(7)},
		{Size: 3, Shape: domain.Cube, Difficulty: selector.Kind(5)},
	}
	for _, c := range cases {
		if _, err := s.CreateGame("p1", c); !errors.Is(err, domain.ErrConfiguration) {
			t.Fatalf("%+v: expected ErrConfiguration, got %v", c, err)
		}
	}
}

func TestPlayEnforcesOwnerAndTurn(t *testing.T) {
	s := NewServiceWithRenderer(testRenderer, WithComputerDelay(time.Hour))
	gs, _ := s.CreateGame("p1", square3)

	if _, err := s.Play(gs.ID, "p2", 0); !errors.Is(err, ErrNotAPlayer) {
		t.Fatalf("expected ErrNotAPlayer, got %v", err)
	}
	st, err := s.Play(gs.ID, "p1", 4)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if st.Board[4] != domain.X || st.Turn != 1 || !st.Thinking {
		t.Fatalf("unexpected state after move: turn=%d cell4=%v thinking=%v", st.Turn, st.Board[4], st.Thinking)
	}
	// the computer has not answered yet
	if _, err := s.Play(gs.ID, "p1", 0); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if _, err := s.Play("missing", "p1", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPlayPassesDomainErrors(t *testing.T) {
	s := NewService(WithComputerDelay(0))
	gs, _ := s.CreateGame("p1", square3)
	if _, err := s.Play(gs.ID, "p1", 42); !errors.Is(err, domain.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	if _, err := s.Play(gs.ID, "p1", 0); err != nil {
		t.Fatalf("play: %v", err)
	}
	waitFor(t, s, gs.ID, GameState.HumanToMove)
	if _, err := s.Play(gs.ID, "p1", 0); !errors.Is(err, domain.ErrOccupied) {
		t.Fatalf("expected ErrOccupied, got %v", err)
	}
}

func TestComputerReplies(t *testing.T) {
	s := NewService(WithComputerDelay(0), WithSeed(1))
	gs, _ := s.CreateGame("p1", square3)
	if _, err := s.Play(gs.ID, "p1", 0); err != nil {
		t.Fatalf("play: %v", err)
	}
	st := waitFor(t, s, gs.ID, func(gs GameState) bool { return marked(gs) == 2 })
	if st.Thinking || !st.HumanToMove() {
		t.Fatalf("expected the human to move after the reply, thinking=%v turn=%d", st.Thinking, st.Turn)
	}
	noughts := 0
	for _, c := range st.Board {
		if c == domain.O {
			noughts++
		}
	}
	if noughts != 1 {
		t.Fatalf("expected one O on the board, got %v", st.Board)
	}
}

func TestStrategicComputerBlocks(t *testing.T) {
	s := NewService(WithComputerDelay(0))
	gs, _ := s.CreateGame("p1", Settings{Size: 3, Shape: domain.Square, Difficulty: selector.Strategic})
	if _, err := s.Play(gs.ID, "p1", 0); err != nil {
		t.Fatalf("play: %v", err)
	}
	st := waitFor(t, s, gs.ID, func(gs GameState) bool { return marked(gs) == 2 })
	// an edge away from the corner balances best
	if st.Board[5] != domain.O {
		t.Fatalf("expected computer at 5, got %v", st.Board)
	}
	if _, err := s.Play(gs.ID, "p1", 1); err != nil {
		t.Fatalf("play: %v", err)
	}
	st = waitFor(t, s, gs.ID, func(gs GameState) bool { return marked(gs) == 4 })
	if st.Board[2] != domain.O {
		t.Fatalf("expected computer to block at 2, got %v", st.Board)
	}
}

func TestStaleComputerMoveDiscarded(t *testing.T) {
	s := NewService(WithComputerDelay(30 * time.Millisecond))
	gs, _ := s.CreateGame("p1", square3)
	if _, err := s.Play(gs.ID, "p1", 4); err != nil {
		t.Fatalf("play: %v", err)
	}
	st, err := s.Reset(gs.ID, "p1")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if st.Thinking || marked(*st) != 0 {
		t.Fatalf("expected a clean board after reset")
	}
	time.Sleep(100 * time.Millisecond)
	latest, _ := s.Get(gs.ID)
	if marked(*latest) != 0 || latest.Turn != 0 {
		t.Fatalf("stale computer move was applied: %v", latest.Board)
	}

	// same for a size change in the middle of the wait
	if _, err := s.Play(gs.ID, "p1", 4); err != nil {
		t.Fatalf("play: %v", err)
	}
	if _, err := s.Configure(gs.ID, "p1", Settings{Size: 4, Shape: domain.Cube}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	latest, _ = s.Get(gs.ID)
	if len(latest.Board) != 64 || marked(*latest) != 0 {
		t.Fatalf("expected empty 4x4x4 board, got %d cells with %d marked", len(latest.Board), marked(*latest))
	}
}

func TestOnlyOwnerControlsGame(t *testing.T) {
	s := NewService(WithComputerDelay(time.Hour))
	gs, _ := s.CreateGame("owner", square3)
	if _, err := s.Play(gs.ID, "owner", 4); err != nil {
		t.Fatalf("play: %v", err)
	}
	if _, err := s.Reset(gs.ID, "stranger"); !errors.Is(err, ErrNotAPlayer) {
		t.Fatalf("reset: expected ErrNotAPlayer, got %v", err)
	}
	if _, err := s.SwapSides(gs.ID, "stranger"); !errors.Is(err, ErrNotAPlayer) {
		t.Fatalf("swap: expected ErrNotAPlayer, got %v", err)
	}
	if _, err := s.Configure(gs.ID, "stranger", Settings{Size: 4, Shape: domain.Cube}); !errors.Is(err, ErrNotAPlayer) {
		t.Fatalf("configure: expected ErrNotAPlayer, got %v", err)
	}
	latest, _ := s.Get(gs.ID)
	if marked(*latest) != 1 || latest.Board[4] != domain.X || latest.Human != 0 || latest.Settings != square3 {
		t.Fatalf("stranger changed the game: human=%d settings=%+v board=%v", latest.Human, latest.Settings, latest.Board)
	}
	if _, err := s.Reset("missing", "owner"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConfigureRejectsBadSettingsKeepsGame(t *testing.T) {
	s := NewService(WithComputerDelay(time.Hour))
	gs, _ := s.CreateGame("p1", square3)
	if _, err := s.Play(gs.ID, "p1", 4); err != nil {
		t.Fatalf("play: %v", err)
	}
	if _, err := s.Configure(gs.ID, "p1", Settings{Size: 1, Shape: domain.Square}); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	latest, _ := s.Get(gs.ID)
	if latest.Board[4] != domain.X || latest.Settings != square3 {
		t.Fatalf("failed reconfiguration changed the game")
	}
}

func TestSwapSidesComputerOpens(t *testing.T) {
	s := NewService(WithComputerDelay(0))
	gs, _ := s.CreateGame("p1", square3)
	st, err := s.SwapSides(gs.ID, "p1")
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if st.Human != 1 {
		t.Fatalf("expected human to play second")
	}
	st2 := waitFor(t, s, gs.ID, func(gs GameState) bool { return marked(gs) == 1 })
	if !st2.HumanToMove() {
		t.Fatalf("expected human to move after the computer opened")
	}
	// a reset keeps the sides, so the computer opens again
	if _, err := s.Reset(gs.ID, "p1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	waitFor(t, s, gs.ID, func(gs GameState) bool { return marked(gs) == 1 && gs.Human == 1 })
}

func TestGameOverStopsPlay(t *testing.T) {
	s := NewService(WithComputerDelay(0), WithSeed(5))
	gs, _ := s.CreateGame("p1", square3)
	for i := 0; i < 9; i++ {
		st := waitFor(t, s, gs.ID, func(gs GameState) bool { return gs.HumanToMove() || gs.Outcome.Over() })
		if st.Outcome.Over() {
			break
		}
		if _, err := s.Play(gs.ID, "p1", st.Remaining[0]); err != nil {
			t.Fatalf("play: %v", err)
		}
	}
	st := waitFor(t, s, gs.ID, func(gs GameState) bool { return gs.Outcome.Over() })
	if _, err := s.Play(gs.ID, "p1", 0); !errors.Is(err, domain.ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
	if st.HumanToMove() {
		t.Fatalf("nobody moves after the game is over")
	}
}

func TestSubscribeAndBroadcast(t *testing.T) {
	s := NewServiceWithRenderer(testRenderer, WithComputerDelay(time.Hour))
	gs, _ := s.CreateGame("p1", square3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*2)
	defer cancel()
	ch, unsub, err := s.Subscribe(ctx, gs.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	if _, err := s.Play(gs.ID, "p1", 0); err != nil {
		t.Fatalf("play failed: %v", err)
	}

	select {
	case b, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed unexpectedly")
		}
		if string(b) != "moves=1" {
			t.Fatalf("unexpected broadcast payload: %q", string(b))
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for broadcast")
	}

	if _, _, err := s.Subscribe(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDropSlowSubscriber(t *testing.T) {
	s := NewServiceWithRenderer(testRenderer, WithComputerDelay(time.Hour))
	gs, _ := s.CreateGame("p1", square3)

	// Slow subscriber: never read
	ctxSlow, cancelSlow := context.WithCancel(context.Background())
	defer cancelSlow()
	slowCh, _, _ := s.Subscribe(ctxSlow, gs.ID)

	// Fast subscriber: will read
	ctxFast, cancelFast := context.WithTimeout(context.Background(), time.Second*2)
	defer cancelFast()
	fastCh, unsubFast, _ := s.Subscribe(ctxFast, gs.ID)
	defer unsubFast()

	// Two quick updates; slow should be dropped to avoid blocking fast
	if _, err := s.Play(gs.ID, "p1", 0); err != nil {
		t.Fatalf("play1: %v", err)
	}
	<-fastCh
	if _, err := s.Reset(gs.ID, "p1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	select {
	case <-fastCh:
	case <-ctxFast.Done():
		t.Fatalf("fast subscriber did not receive updates in time")
	}

	// the slow channel holds the first payload and is then closed
	<-slowCh
	if _, ok := <-slowCh; ok {
		t.Fatalf("expected slow subscriber to be closed")
	}
}

func TestDeleteAndPrune(t *testing.T) {
	s := NewService(WithComputerDelay(time.Hour))
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	old, _ := s.CreateGame("p1", square3)
	clock = clock.Add(time.Hour)
	fresh, _ := s.CreateGame("p2", square3)

	ch, _, _ := s.Subscribe(context.Background(), old.ID)
	if n := s.Prune(30 * time.Minute); n != 1 {
		t.Fatalf("expected 1 pruned session, got %d", n)
	}
	if _, ok := s.Get(old.ID); ok {
		t.Fatalf("old session should be gone")
	}
	if _, ok := <-ch; ok {
		t.Fatalf("subscribers of a deleted session should be closed")
	}
	if !s.Delete(fresh.ID) || s.Delete(fresh.ID) {
		t.Fatalf("Delete should succeed exactly once")
	}
}

func TestClaimUnownedSession(t *testing.T) {
	s := NewService()
	gs, _ := s.CreateGame("", square3)
	st, err := s.Claim(gs.ID, "p9")
	if err != nil || st.Owner != "p9" {
		t.Fatalf("expected p9 to claim, got %+v, %v", st, err)
	}
	st, _ = s.Claim(gs.ID, "p10")
	if st.Owner != "p9" {
		t.Fatalf("claim must not steal an owned session")
	}
}
