package web

import (
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/qZheng/sidequests/internal/db"
	"github.com/qZheng/sidequests/internal/selector"
)

// Handlers contains HTTP route handlers for the widget surface. The widget
// reads only the shared blob and history tables; it never runs the selector.
type Handlers struct {
	db       *sql.DB
	log      *zap.Logger
	renderer *Renderer
}

// HandleWidget handles GET /widget — render the most recently served prompt.
func (h *Handlers) HandleWidget(w http.ResponseWriter, r *http.Request) {
	served, ok, err := selector.Latest(h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data := WidgetPageData{
		PageData: PageData{
			Title:   "SideQuests",
			Version: h.renderer.version,
		},
		HasPrompt: ok,
	}
	if ok {
		data.Prompt = served
		data.RenderedText = renderMarkdown(served.Text)
		data.ServedAt = formatTime(served.ServedAt)
		data.TimesOfDay = joinTimesOfDay(served.Metadata.TimesOfDay)
	}

	h.renderer.renderPage(w, "widget", data)
}

// HandleAPILatest handles GET /api/latest — the served prompt as JSON.
// Returns a null item when nothing has been served yet.
func (h *Handlers) HandleAPILatest(w http.ResponseWriter, r *http.Request) {
	served, ok, err := selector.Latest(h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if !ok {
		renderJSON(w, http.StatusOK, map[string]any{"item": nil})
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"item": served})
}

// HandleAPIStatus handles GET /api/status — serving statistics.
func (h *Handlers) HandleAPIStatus(w http.ResponseWriter, r *http.Request) {
	count, err := db.CountHistory(h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	payload := map[string]any{
		"version":       h.renderer.version,
		"history_count": count,
		"served":        false,
	}
	if served, ok, err := selector.Latest(h.db); err == nil && ok {
		payload["served"] = true
		payload["served_at"] = served.ServedAt
		payload["pack_name"] = served.PackName
	}
	payload["time"] = time.Now().Unix()

	renderJSON(w, http.StatusOK, payload)
}
