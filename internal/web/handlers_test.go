package web

import (
	"database/sql"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qZheng/sidequests/internal/db"
	"github.com/qZheng/sidequests/internal/prefs"
	"github.com/qZheng/sidequests/internal/quest"
)

func setupTest(t *testing.T) *Handlers {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}
	log := zap.NewNop()
	renderer := NewRenderer(templateSub, "test", log)

	return &Handlers{
		db:       database,
		log:      log,
		renderer: renderer,
	}
}

// seedServed publishes a served prompt into the shared blob and history.
func seedServed(t *testing.T, database *sql.DB, text, packName string) quest.ServedPrompt {
	t.Helper()
	served := quest.Served(quest.Prompt{
		ID:   uuid.New(),
		Text: text,
		Metadata: quest.Metadata{
			Vibe:            "calm",
			DurationMinutes: 10,
			TimesOfDay:      []quest.TimeOfDay{quest.Day},
			LocationContext: quest.LocationAny,
		},
		PackName: packName,
	}, time.Now().Unix())

	data, err := json.Marshal(served)
	if err != nil {
		t.Fatalf("marshal served prompt: %v", err)
	}
	if err := db.PutBlob(database, prefs.LatestPromptBlobKey, data); err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	if _, err := db.AppendHistory(database, served.ID.String(), packName, time.Unix(served.ServedAt, 0)); err != nil {
		t.Fatalf("seed history: %v", err)
	}
	return served
}

func TestHandleWidget_Empty(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/widget", nil)
	rec := httptest.NewRecorder()
	h.HandleWidget(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No quest yet") {
		t.Error("expected empty state in response")
	}
}

func TestHandleWidget_WithPrompt(t *testing.T) {
	h := setupTest(t)
	seedServed(t, h.db, "Sketch something *small*", "Creative Pack")

	req := httptest.NewRequest("GET", "/widget", nil)
	rec := httptest.NewRecorder()
	h.HandleWidget(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Creative Pack") {
		t.Error("expected pack name in response")
	}
	// Markdown emphasis rendered to HTML.
	if !strings.Contains(body, "<em>small</em>") {
		t.Error("expected rendered markdown in response")
	}
	if !strings.Contains(body, "10 min") {
		t.Error("expected duration chip in response")
	}
}

func TestHandleAPILatest_Empty(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/api/latest", nil)
	rec := httptest.NewRecorder()
	h.HandleAPILatest(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload["item"] != nil {
		t.Errorf("item = %v, want null", payload["item"])
	}
}

func TestHandleAPILatest_WithPrompt(t *testing.T) {
	h := setupTest(t)
	served := seedServed(t, h.db, "Take the long way home", "Outdoors")

	req := httptest.NewRequest("GET", "/api/latest", nil)
	rec := httptest.NewRecorder()
	h.HandleAPILatest(rec, req)

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	item, ok := payload["item"].(map[string]any)
	if !ok {
		t.Fatalf("item = %v, want object", payload["item"])
	}
	if item["id"] != served.ID.String() {
		t.Errorf("item id = %v, want %v", item["id"], served.ID)
	}
	if item["packName"] != "Outdoors" {
		t.Errorf("item packName = %v, want Outdoors", item["packName"])
	}
}

func TestHandleAPIStatus(t *testing.T) {
	h := setupTest(t)

	t.Run("before serving", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/status", nil)
		rec := httptest.NewRecorder()
		h.HandleAPIStatus(rec, req)

		var payload map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if payload["served"] != false {
			t.Errorf("served = %v, want false", payload["served"])
		}
		if payload["history_count"].(float64) != 0 {
			t.Errorf("history_count = %v, want 0", payload["history_count"])
		}
	})

	seedServed(t, h.db, "Stretch for five minutes", "Wellness")

	t.Run("after serving", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/status", nil)
		rec := httptest.NewRecorder()
		h.HandleAPIStatus(rec, req)

		var payload map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if payload["served"] != true {
			t.Errorf("served = %v, want true", payload["served"])
		}
		if payload["history_count"].(float64) != 1 {
			t.Errorf("history_count = %v, want 1", payload["history_count"])
		}
		if payload["pack_name"] != "Wellness" {
			t.Errorf("pack_name = %v, want Wellness", payload["pack_name"])
		}
	})
}

func TestServer_RootRedirectsAndSetsHeaders(t *testing.T) {
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	srv := NewServer(database, zap.NewNop(), "test", "127.0.0.1", 0)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/widget" {
		t.Errorf("Location = %q, want /widget", loc)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected X-Content-Type-Options header")
	}
}
