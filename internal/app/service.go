package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jaminalder/cube-tic-tac-toe/internal/domain"
	"github.com/jaminalder/cube-tic-tac-toe/internal/selector"
)

// Errors exposed by the service layer.
var (
	ErrNotFound    = errors.New("game not found")
	ErrNotYourTurn = errors.New("not your turn")
	ErrNotAPlayer  = errors.New("not a player")
)

// Settings choose the board and the computer opponent of a session.
type Settings struct {
	Size       int
	Shape      domain.Shape
	Difficulty selector.Kind
}

// GameState is a snapshot of a session, safe to use without the lock.
type GameState struct {
	ID        string
	Owner     string
	Settings  Settings
	Board     []domain.Cell
	Remaining []int
	Turn      int
	Human     domain.Player
	Outcome   domain.Outcome
	// Thinking is set while a computer move is pending.
	Thinking bool
	Created  time.Time
	Updated  time.Time
}

// HumanToMove reports whether the human may play now.
func (gs GameState) HumanToMove() bool {
	return !gs.Outcome.Over() && domain.Player(gs.Turn%2) == gs.Human
}

// session is the per-game state owned by the service.
type session struct {
	id       string
	owner    string
	settings Settings
	game     *domain.Game
	sel      selector.Selector
	human    domain.Player
	created  time.Time
	updated  time.Time

	// gen changes whenever the game is rebuilt or reset; a pending computer
	// move carrying an older gen is dropped.
	gen     uint64
	pending *time.Timer
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

// send delivers without blocking; false means the subscriber is too slow.
func (s *subscriber) send(b []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- b:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Service manages sessions and subscribers.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*session
	subs     map[string]map[*subscriber]struct{}
	render   func(GameState) []byte
	delay    time.Duration
	rng      *rand.Rand
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRenderer sets the renderer for broadcast payloads.
func WithRenderer(renderer func(GameState) []byte) Option {
	return func(s *Service) { s.setRendererLocked(renderer) }
}

// WithComputerDelay sets how long the computer waits before moving.
func WithComputerDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithSeed makes the random selectors reproducible.
func WithSeed(seed int64) Option {
	return func(s *Service) { s.rng = rand.New(rand.NewSource(seed)) }
}

// NewService creates a service with a renderer that encodes nothing.
func NewService(opts ...Option) *Service {
	s := &Service{
		sessions: make(map[string]*session),
		subs:     make(map[string]map[*subscriber]struct{}),
		render:   func(GameState) []byte { return nil },
		delay:    time.Second,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceWithRenderer allows injecting a renderer for broadcast payloads.
func NewServiceWithRenderer(renderer func(GameState) []byte, opts ...Option) *Service {
	return NewService(append([]Option{WithRenderer(renderer)}, opts...)...)
}

// SetRenderer replaces the broadcast renderer function.
func (s *Service) SetRenderer(renderer func(GameState) []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setRendererLocked(renderer)
}

func (s *Service) setRendererLocked(renderer func(GameState) []byte) {
	if renderer == nil {
		s.render = func(GameState) []byte { return nil }
		return
	}
	s.render = renderer
}

func logFor(sess *session) *logrus.Entry {
	return logrus.WithField("session", sess.id)
}

// build constructs the game and selector for settings.
func (s *Service) build(settings Settings) (*domain.Game, selector.Selector, error) {
	g, err := domain.New(settings.Size, settings.Shape)
	if err != nil {
		return nil, nil, err
	}
	sel, err := selector.New(settings.Difficulty, g.Geometry(), g.Candidates(), s.rng)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return g, sel, nil
}

// CreateGame creates and registers a new session owned by owner. The human
// plays first.
func (s *Service) CreateGame(owner string, settings Settings) (*GameState, error) {
	g, sel, err := s.build(settings)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess := &session{
		id:       uuid.NewString(),
		owner:    owner,
		settings: settings,
		game:     g,
		sel:      sel,
		created:  now,
		updated:  now,
	}
	s.sessions[sess.id] = sess
	logFor(sess).WithFields(logrus.Fields{
		"size":       settings.Size,
		"shape":      settings.Shape,
		"difficulty": settings.Difficulty,
	}).Info("game created")
	cp := snapshot(sess)
	return &cp, nil
}

// Get returns a snapshot of the session if present.
func (s *Service) Get(id string) (*GameState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	cp := snapshot(sess)
	return &cp, true
}

// Claim makes playerID the owner of an unowned session.
func (s *Service) Claim(id, playerID string) (*GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if sess.owner == "" {
		sess.owner = playerID
		sess.updated = s.now()
	}
	cp := snapshot(sess)
	return &cp, nil
}

// Delete ends a session, cancelling any pending computer move and closing
// its subscribers.
func (s *Service) Delete(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		s.invalidateLocked(sess)
		delete(s.sessions, id)
	}
	subs := s.subs[id]
	delete(s.subs, id)
	s.mu.Unlock()

	for sub := range subs {
		sub.close()
	}
	if ok {
		logFor(sess).Info("game deleted")
	}
	return ok
}

// Prune deletes sessions idle for longer than maxIdle and returns how many
// were removed.
func (s *Service) Prune(maxIdle time.Duration) int {
	s.mu.Lock()
	cutoff := s.now().Add(-maxIdle)
	var stale []string
	for id, sess := range s.sessions {
		if sess.updated.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	s.mu.Unlock()

	n := 0
	for _, id := range stale {
		if s.Delete(id) {
			n++
		}
	}
	return n
}

// Play validates the seat and turn, applies the human move, and schedules
// the computer's reply.
func (s *Service) Play(id, playerID string, cell int) (*GameState, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if sess.owner != playerID {
		s.mu.Unlock()
		return nil, ErrNotAPlayer
	}
	if !sess.game.Outcome().Over() && sess.game.ToMove() != sess.human {
		s.mu.Unlock()
		return nil, ErrNotYourTurn
	}
	out, err := sess.game.Play(sess.human, cell)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, domain.ErrOutOfTurn) {
			return nil, ErrNotYourTurn
		}
		return nil, err
	}
	sess.updated = s.now()
	logFor(sess).WithFields(logrus.Fields{"cell": cell, "status": out.Status}).Debug("human move")
	if !out.Over() {
		s.scheduleLocked(sess)
	}
	return s.publishLocked(sess), nil
}

// Reset clears the board keeping the settings; the computer opens when the
// human plays second.
func (s *Service) Reset(id, playerID string) (*GameState, error) {
	s.mu.Lock()
	sess, err := s.ownedLocked(id, playerID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.invalidateLocked(sess)
	sess.game.Reset()
	s.restartLocked(sess)
	logFor(sess).Debug("game reset")
	return s.publishLocked(sess), nil
}

// Configure rebuilds the session's game and selector for new settings.
func (s *Service) Configure(id, playerID string, settings Settings) (*GameState, error) {
	g, sel, err := s.build(settings)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	sess, err := s.ownedLocked(id, playerID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.invalidateLocked(sess)
	sess.settings, sess.game, sess.sel = settings, g, sel
	s.restartLocked(sess)
	logFor(sess).WithFields(logrus.Fields{
		"size":       settings.Size,
		"shape":      settings.Shape,
		"difficulty": settings.Difficulty,
	}).Info("game reconfigured")
	return s.publishLocked(sess), nil
}

// SwapSides lets the human play the other side and restarts the game.
func (s *Service) SwapSides(id, playerID string) (*GameState, error) {
	s.mu.Lock()
	sess, err := s.ownedLocked(id, playerID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.invalidateLocked(sess)
	sess.human = sess.human.Opponent()
	sess.game.Reset()
	s.restartLocked(sess)
	logFor(sess).WithField("human", sess.human).Debug("sides swapped")
	return s.publishLocked(sess), nil
}

// ownedLocked looks up session id and checks that playerID owns it.
func (s *Service) ownedLocked(id, playerID string) (*session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if sess.owner != playerID {
		return nil, ErrNotAPlayer
	}
	return sess, nil
}

// invalidateLocked drops any pending computer move.
func (s *Service) invalidateLocked(sess *session) {
	sess.gen++
	if sess.pending != nil {
		sess.pending.Stop()
		sess.pending = nil
	}
}

func (s *Service) restartLocked(sess *session) {
	sess.updated = s.now()
	if sess.game.ToMove() != sess.human {
		s.scheduleLocked(sess)
	}
}

func (s *Service) scheduleLocked(sess *session) {
	if sess.pending != nil {
		sess.pending.Stop()
	}
	id, gen := sess.id, sess.gen
	sess.pending = time.AfterFunc(s.delay, func() { s.computerMove(id, gen) })
}

func (s *Service) computerMove(id string, gen uint64) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok || sess.gen != gen {
		s.mu.Unlock()
		logrus.WithField("session", id).Debug("discarding stale computer move")
		return
	}
	sess.pending = nil
	g := sess.game
	me := g.ToMove()
	if g.Outcome().Over() || me == sess.human {
		s.mu.Unlock()
		return
	}
	cand := g.Candidates()
	cell, err := sess.sel.Select(g.Remaining(), cand[me], cand[me.Opponent()])
	if err == nil {
		_, err = g.Play(me, cell)
	}
	if err != nil {
		s.mu.Unlock()
		logFor(sess).WithError(err).Error("computer move failed")
		return
	}
	sess.updated = s.now()
	logFor(sess).WithFields(logrus.Fields{
		"cell":     cell,
		"selector": sess.sel.Kind(),
		"status":   g.Status(),
	}).Debug("computer move")
	s.publishLocked(sess)
}

// publishLocked snapshots the session, renders it, releases the lock and
// fans the payload out; slow subscribers are dropped.
func (s *Service) publishLocked(sess *session) *GameState {
	cp := snapshot(sess)
	subs := s.copySubsLocked(sess.id)
	payload := s.render(cp)
	s.mu.Unlock()

	var toDrop []*subscriber
	for sub := range subs {
		if !sub.send(payload) {
			sub.close()
			toDrop = append(toDrop, sub)
		}
	}
	if len(toDrop) > 0 {
		s.mu.Lock()
		for _, sub := range toDrop {
			if set, ok := s.subs[sess.id]; ok {
				delete(set, sub)
			}
		}
		s.mu.Unlock()
	}
	return &cp
}

// Subscribe registers a subscriber for a game. Returns a channel and an
// unsubscribe func; the channel is closed when ctx ends.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan []byte, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return nil, func() {}, ErrNotFound
	}
	set := s.subs[id]
	if set == nil {
		set = make(map[*subscriber]struct{})
		s.subs[id] = set
	}
	sub := &subscriber{ch: make(chan []byte, 1)}
	set[sub] = struct{}{}

	unsubOnce := &sync.Once{}
	unsub := func() {
		unsubOnce.Do(func() {
			s.mu.Lock()
			if set, ok := s.subs[id]; ok {
				delete(set, sub)
			}
			s.mu.Unlock()
			sub.close()
		})
	}
	go func() {
		<-ctx.Done()
		unsub()
	}()
	return sub.ch, unsub, nil
}

func (s *Service) copySubsLocked(id string) map[*subscriber]struct{} {
	out := make(map[*subscriber]struct{})
	if set, ok := s.subs[id]; ok {
		for k := range set {
			out[k] = struct{}{}
		}
	}
	return out
}

func snapshot(sess *session) GameState {
	return GameState{
		ID:        sess.id,
		Owner:     sess.owner,
		Settings:  sess.settings,
		Board:     sess.game.Board(),
		Remaining: sess.game.Remaining(),
		Turn:      sess.game.Turn(),
		Human:     sess.human,
		Outcome:   sess.game.Outcome(),
		Thinking:  sess.pending != nil,
		Created:   sess.created,
		Updated:   sess.updated,
	}
}
