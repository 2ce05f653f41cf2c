package web

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jaminalder/cube-tic-tac-toe/internal/app"
	"github.com/jaminalder/cube-tic-tac-toe/internal/domain"
	"github.com/jaminalder/cube-tic-tac-toe/internal/selector"
)

type templates struct {
	base  *template.Template
	game  *template.Template
	board *template.Template
	index *template.Template
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"cellSymbol": func(c domain.Cell) string { return c.String() },
		"eq":         func(a, b any) bool { return a == b },
	}
}

func loadTemplates() *templates {
	base := template.Must(template.New("base").Funcs(funcs()).Parse(`<!doctype html><html><head>
<meta charset="utf-8"/>
<title>Tic Tac Toe</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<script src="https://unpkg.com/htmx.org/dist/ext/sse.js"></script>
<style>
.layer{display:inline-grid;gap:2px;margin:4px}
.cell{width:50px;height:50px}
.cell.x{background:#f66}.cell.o{background:#69f}
</style>
</head><body>{{template "content" .}}</body></html>`))
	// Define the board template within the same set so game can include it
	template.Must(base.New("board").Funcs(funcs()).Parse(boardTemplate))
	template.Must(base.New("settings").Funcs(funcs()).Parse(settingsTemplate))
	index := template.Must(template.Must(base.Clone()).New("content").Parse(`<h1>Welcome to Tic Tac Toe!</h1>
<form action="/game" method="post">{{template "settings" .}}<button>Create</button></form>`))
	game := template.Must(template.Must(base.Clone()).New("content").Parse(`
<h1>Tic Tac Toe</h1>
<form hx-post="/game/{{.ID}}/settings" hx-target="#board" hx-swap="outerHTML">{{template "settings" .}}<button>Apply</button></form>
<button hx-post="/game/{{.ID}}/swap" hx-target="#board" hx-swap="outerHTML">Change Turn</button>
<button hx-post="/game/{{.ID}}/reset" hx-target="#board" hx-swap="outerHTML">Reset</button>
<div hx-ext="sse" sse-connect="/game/{{.ID}}/events">
  <div sse-swap="board" hx-target="#board" hx-swap="outerHTML">{{template "board" .}}</div>
</div>`))
	// Standalone board template used for fragment rendering
	board := template.Must(template.New("board_only").Funcs(funcs()).Parse(boardTemplate))
	return &templates{base: base, game: game, board: board, index: index}
}

func renderTemplate(t *template.Template, name string, data any) []byte {
	var buf bytes.Buffer
	if name == "" {
		_ = t.Execute(&buf, data)
	} else {
		_ = t.ExecuteTemplate(&buf, name, data)
	}
	return buf.Bytes()
}

const settingsTemplate = `
<label>Board Size
  <select name="size">{{range .Sizes}}<option value="{{.}}"{{if eq . $.Settings.Size}} selected{{end}}>{{.}}</option>{{end}}</select>
</label>
<label>Shape
  <select name="shape">{{range .Shapes}}<option value="{{.}}"{{if eq . $.Settings.Shape.String}} selected{{end}}>{{.}}</option>{{end}}</select>
</label>
<label>Difficulty
  <select name="difficulty">{{range .Difficulties}}<option value="{{.}}"{{if eq . $.Settings.Difficulty.String}} selected{{end}}>{{.}}</option>{{end}}</select>
</label>
`

const boardTemplate = `
<div id="board">
  {{if .Error}}
  <div class="alert">{{.Error}}</div>
  {{end}}
  <p class="status">{{.Status}}</p>
  {{range $l := .Layers}}
  <div class="layer" style="grid-template-columns:repeat({{$.Size}},50px)">
    {{range $l}}
      <form hx-post="/game/{{$.ID}}/play" hx-target="#board" hx-swap="outerHTML" method="post">
        <input type="hidden" name="cell" value="{{.Index}}">
        <button type="submit" class="cell {{.Class}}"{{if not $.Playable}} disabled{{end}}>{{cellSymbol .Cell}}</button>
      </form>
    {{end}}
  </div>
  {{end}}
</div>
`

// Data models for templates
type cellView struct {
	Index int
	Cell  domain.Cell
	Class string
}

type pageData struct {
	ID           string
	Size         int
	Settings     app.Settings
	Sizes        []int
	Shapes       []string
	Difficulties []string
	Layers       [][]cellView
	Status       string
	Playable     bool
	Error        string
}

func (h *handlers) newPageData(gs *app.GameState, errMsg string) pageData {
	d := pageData{
		Settings:     h.defaults,
		Sizes:        h.sizes,
		Shapes:       []string{domain.Square.String(), domain.Cube.String()},
		Difficulties: []string{selector.Random.String(), selector.Strategic.String()},
		Error:        errMsg,
	}
	if gs == nil {
		return d
	}
	d.ID = gs.ID
	d.Size = gs.Settings.Size
	d.Settings = gs.Settings
	d.Layers = layers(gs)
	d.Status = statusText(gs)
	d.Playable = gs.HumanToMove()
	return d
}

// layers splits the board into one grid per cube layer; a square board is a
// single layer.
func layers(gs *app.GameState) [][]cellView {
	per := gs.Settings.Size * gs.Settings.Size
	if per == 0 {
		return nil
	}
	var out [][]cellView
	for start := 0; start < len(gs.Board); start += per {
		layer := make([]cellView, 0, per)
		for i := start; i < start+per && i < len(gs.Board); i++ {
			c := gs.Board[i]
			layer = append(layer, cellView{Index: i, Cell: c, Class: strings.ToLower(c.String())})
		}
		out = append(out, layer)
	}
	return out
}

func statusText(gs *app.GameState) string {
	switch gs.Outcome.Status {
	case domain.Won:
		if gs.Outcome.Winner == gs.Human {
			return "You win!!"
		}
		return "You lose..."
	case domain.Drawn:
		return "Draw"
	}
	if gs.HumanToMove() {
		return "Your turn"
	}
	return "Computer's turn"
}

// Helper to set cookie
func ensurePlayerCookie(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie("player_id"); err == nil && c.Value != "" {
		return c.Value
	}
	// Generate UUIDv4 for player ID
	v := uuid.NewString()
	http.SetCookie(w, &http.Cookie{Name: "player_id", Value: v, Path: "/"})
	return v
}
