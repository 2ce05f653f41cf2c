package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/jaminalder/cube-tic-tac-toe/internal/app"
	"github.com/jaminalder/cube-tic-tac-toe/internal/domain"
	"github.com/jaminalder/cube-tic-tac-toe/internal/selector"
)

type handlers struct {
	svc      *app.Service
	tpl      *templates
	sizes    []int
	defaults app.Settings
}

func (h *handlers) renderBoard(gs app.GameState, errMsg string) []byte {
	return renderTemplate(h.tpl.board, "", h.newPageData(&gs, errMsg))
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(renderTemplate(h.tpl.index, "", h.newPageData(nil, "")))
}

// parseSettings reads size/shape/difficulty form values, falling back to
// fallback for missing fields.
func (h *handlers) parseSettings(r *http.Request, fallback app.Settings) (app.Settings, error) {
	_ = r.ParseForm()
	s := fallback
	if v := r.Form.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("%w: size %q", domain.ErrConfiguration, v)
		}
		s.Size = n
	}
	if !h.allowed(s.Size) {
		return s, fmt.Errorf("%w: size %d is not offered", domain.ErrConfiguration, s.Size)
	}
	if v := r.Form.Get("shape"); v != "" {
		shape, err := domain.ParseShape(v)
		if err != nil {
			return s, err
		}
		s.Shape = shape
	}
	if v := r.Form.Get("difficulty"); v != "" {
		kind, err := selector.ParseKind(v)
		if err != nil {
			return s, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
		}
		s.Difficulty = kind
	}
	return s, nil
}

func (h *handlers) allowed(size int) bool {
	for _, s := range h.sizes {
		if s == size {
			return true
		}
	}
	return false
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	pid := ensurePlayerCookie(w, r)
	settings, err := h.parseSettings(r, h.defaults)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	gs, err := h.svc.CreateGame(pid, settings)
	if err != nil {
		http.Error(w, "failed to create", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/game/"+gs.ID, http.StatusSeeOther)
}

func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// ensure cookie and auto-claim an unowned game
	pid := ensurePlayerCookie(w, r)
	gs, err := h.svc.Claim(id, pid)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	data := h.newPageData(gs, "")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	// Render page with embedded board container
	_, _ = w.Write(renderTemplate(h.tpl.game, "", data))
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, app.ErrNotYourTurn):
		return "Not your turn"
	case errors.Is(err, app.ErrNotAPlayer):
		return "You are a spectator"
	case errors.Is(err, domain.ErrOccupied):
		return "This cell is already selected"
	case errors.Is(err, domain.ErrOutOfBounds):
		return "Out of bounds"
	case errors.Is(err, domain.ErrGameOver):
		return "Game is over"
	case errors.Is(err, domain.ErrConfiguration):
		return "Invalid settings"
	default:
		return "Invalid move"
	}
}

// writeBoard answers an htmx action with the board fragment, showing err as
// an alert when the action failed.
func (h *handlers) writeBoard(w http.ResponseWriter, r *http.Request, id string, gs *app.GameState, err error) {
	var errMsg string
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		errMsg = errorMessage(err)
		if gs == nil {
			if g, ok := h.svc.Get(id); ok {
				gs = g
			}
		}
	}
	if gs == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(h.renderBoard(*gs, errMsg))
}

func (h *handlers) play(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	_ = r.ParseForm()
	cell, err := strconv.Atoi(r.Form.Get("cell"))
	if err != nil {
		h.writeBoard(w, r, id, nil, domain.ErrOutOfBounds)
		return
	}
	gs, err := h.svc.Play(id, pid, cell)
	h.writeBoard(w, r, id, gs, err)
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	gs, err := h.svc.Reset(id, pid)
	h.writeBoard(w, r, id, gs, err)
}

func (h *handlers) swap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	gs, err := h.svc.SwapSides(id, pid)
	h.writeBoard(w, r, id, gs, err)
}

func (h *handlers) settings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	cur, ok := h.svc.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	settings, err := h.parseSettings(r, cur.Settings)
	if err != nil {
		h.writeBoard(w, r, id, cur, err)
		return
	}
	gs, err := h.svc.Configure(id, pid, settings)
	h.writeBoard(w, r, id, gs, err)
}

type stateResponse struct {
	ID         string `json:"id"`
	Size       int    `json:"size"`
	Shape      string `json:"shape"`
	Difficulty string `json:"difficulty"`
	Board      []int  `json:"board"`
	Remaining  []int  `json:"remaining"`
	Turn       int    `json:"turn"`
	Human      int    `json:"human"`
	Status     string `json:"status"`
	Winner     *int   `json:"winner,omitempty"`
	Thinking   bool   `json:"thinking"`
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	gs, ok := h.svc.Get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	resp := stateResponse{
		ID:         gs.ID,
		Size:       gs.Settings.Size,
		Shape:      gs.Settings.Shape.String(),
		Difficulty: gs.Settings.Difficulty.String(),
		Board:      make([]int, len(gs.Board)),
		Remaining:  gs.Remaining,
		Turn:       gs.Turn,
		Human:      int(gs.Human),
		Status:     gs.Outcome.Status.String(),
		Thinking:   gs.Thinking,
	}
	// -1 empty, otherwise the owning player
	for i, c := range gs.Board {
		switch c {
		case domain.X:
			resp.Board[i] = 0
		case domain.O:
			resp.Board[i] = 1
		default:
			resp.Board[i] = -1
		}
	}
	if gs.Outcome.Status == domain.Won {
		winner := int(gs.Outcome.Winner)
		resp.Winner = &winner
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logrus.WithError(err).Warn("encode state")
	}
}

var heartbeatInterval = 15 * time.Second

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.svc.Get(id); !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	// In tests or non-EventSource requests, just acknowledge headers and return
	if r.Header.Get("Accept") != "text/event-stream" {
		w.WriteHeader(http.StatusOK)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx := r.Context()
	ch, unsub, err := h.svc.Subscribe(ctx, id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer unsub()
	// heartbeat ticker
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	// Initial flush of headers
	flusher.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		case b, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, "board", b)
			flusher.Flush()
		}
	}
}

// writeEvent emits one SSE event; every payload line gets its own data field.
func writeEvent(w io.Writer, name string, payload []byte) {
	_, _ = fmt.Fprintf(w, "event: %s\n", name)
	for _, line := range strings.Split(string(payload), "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = io.WriteString(w, "\n")
}
