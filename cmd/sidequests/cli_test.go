package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qZheng/sidequests/internal/config"
	"github.com/qZheng/sidequests/internal/db"
	"github.com/qZheng/sidequests/internal/quest"
)

// newTestEngine builds an engine over a temporary base directory with a
// single pack of context-free prompts on disk.
func newTestEngine(t *testing.T) (*engine, quest.Pack) {
	t.Helper()

	baseDir := t.TempDir()
	database, err := db.Init(baseDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	pack := quest.Pack{
		ID:       uuid.New(),
		Name:     "Test Pack",
		IconName: "sparkles",
		Prompts: []quest.Prompt{
			{
				ID:   uuid.New(),
				Text: "Take a short walk",
				Metadata: quest.Metadata{
					DurationMinutes: 10,
					TimesOfDay:      quest.AllTimesOfDay,
					LocationContext: quest.LocationAny,
				},
			},
			{
				ID:   uuid.New(),
				Text: "Sketch something nearby",
				Metadata: quest.Metadata{
					DurationMinutes: 15,
					TimesOfDay:      quest.AllTimesOfDay,
					LocationContext: quest.LocationAny,
				},
			},
		},
	}

	packsDir := filepath.Join(baseDir, "questpacks")
	if err := os.MkdirAll(packsDir, 0o755); err != nil {
		t.Fatalf("failed to create packs dir: %v", err)
	}
	data, err := json.Marshal(pack)
	if err != nil {
		t.Fatalf("failed to marshal pack: %v", err)
	}
	if err := os.WriteFile(filepath.Join(packsDir, "test.json"), data, 0o644); err != nil {
		t.Fatalf("failed to write pack file: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.PacksDir = packsDir

	eng, err := newEngine(database, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	t.Cleanup(eng.Close)

	if len(eng.packs) != 1 {
		t.Fatalf("expected 1 loaded pack, got %d", len(eng.packs))
	}
	return eng, eng.packs[0]
}

// runCommand runs the CLI app with the given args and parses its stdout
// as JSON. A non-nil error is the command's error; output is nil then.
func runCommand(t *testing.T, eng *engine, args ...string) (map[string]any, error) {
	t.Helper()

	app := newCLIApp(eng)

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := app.Run(append([]string{"sidequests"}, args...))

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	if err != nil {
		return nil, err
	}

	var output map[string]any
	if jerr := json.Unmarshal(buf.Bytes(), &output); jerr != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", jerr, buf.String())
	}
	return output, nil
}

func TestCLINext(t *testing.T) {
	eng, pack := newTestEngine(t)

	t.Run("nothing selected", func(t *testing.T) {
		output, err := runCommand(t, eng, "next")
		if err != nil {
			t.Fatalf("next failed: %v", err)
		}
		if output["available"] != false {
			t.Errorf("available = %v, want false", output["available"])
		}
		if output["reason"] != "emptyUniverse" {
			t.Errorf("reason = %v, want emptyUniverse", output["reason"])
		}
	})

	t.Run("serves after toggle", func(t *testing.T) {
		if _, err := runCommand(t, eng, "toggle", pack.ID.String()); err != nil {
			t.Fatalf("toggle failed: %v", err)
		}
		output, err := runCommand(t, eng, "next")
		if err != nil {
			t.Fatalf("next failed: %v", err)
		}
		if output["available"] != true {
			t.Fatalf("available = %v, want true", output["available"])
		}
		prompt, ok := output["prompt"].(map[string]any)
		if !ok {
			t.Fatalf("prompt missing from output: %v", output)
		}
		if prompt["text"] == "" {
			t.Error("expected non-empty prompt text")
		}
	})
}

func TestCLILatest(t *testing.T) {
	eng, pack := newTestEngine(t)

	output, err := runCommand(t, eng, "latest")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if output["item"] != nil {
		t.Errorf("item = %v, want null before anything served", output["item"])
	}

	if _, err := runCommand(t, eng, "toggle", pack.ID.String()); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if _, err := runCommand(t, eng, "next"); err != nil {
		t.Fatalf("next failed: %v", err)
	}

	output, err = runCommand(t, eng, "latest")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	item, ok := output["item"].(map[string]any)
	if !ok {
		t.Fatalf("item missing after serving: %v", output)
	}
	if item["packName"] != "Test Pack" {
		t.Errorf("packName = %v, want Test Pack", item["packName"])
	}
}

func TestCLIPacks(t *testing.T) {
	eng, pack := newTestEngine(t)

	output, err := runCommand(t, eng, "packs")
	if err != nil {
		t.Fatalf("packs failed: %v", err)
	}

	items, ok := output["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 rows (favorites + pack), got %v", output["items"])
	}

	first := items[0].(map[string]any)
	if first["id"] != uuid.Nil.String() {
		t.Errorf("first row id = %v, want favorites sentinel", first["id"])
	}
	if first["name"] != "Favorites" {
		t.Errorf("first row name = %v, want Favorites", first["name"])
	}

	second := items[1].(map[string]any)
	if second["name"] != pack.Name {
		t.Errorf("second row name = %v, want %v", second["name"], pack.Name)
	}
	if second["active"] != false {
		t.Errorf("second row active = %v, want false", second["active"])
	}
}

func TestCLIToggle(t *testing.T) {
	eng, pack := newTestEngine(t)

	t.Run("malformed id", func(t *testing.T) {
		_, err := runCommand(t, eng, "toggle", "not-a-uuid")
		if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
			t.Errorf("expected INVALID_REQUEST, got %v", err)
		}
	})

	t.Run("unknown pack", func(t *testing.T) {
		_, err := runCommand(t, eng, "toggle", uuid.NewString())
		if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
			t.Errorf("expected NOT_FOUND, got %v", err)
		}
	})

	t.Run("known pack", func(t *testing.T) {
		output, err := runCommand(t, eng, "toggle", pack.ID.String())
		if err != nil {
			t.Fatalf("toggle failed: %v", err)
		}
		active, ok := output["active_pack_ids"].([]any)
		if !ok || len(active) != 1 {
			t.Fatalf("active_pack_ids = %v, want one entry", output["active_pack_ids"])
		}
		if active[0] != pack.ID.String() {
			t.Errorf("active pack = %v, want %v", active[0], pack.ID)
		}
	})

	t.Run("favorites alias", func(t *testing.T) {
		output, err := runCommand(t, eng, "toggle", "favorites")
		if err != nil {
			t.Fatalf("toggle failed: %v", err)
		}
		if output["favorites_mode"] != true {
			t.Errorf("favorites_mode = %v, want true", output["favorites_mode"])
		}
	})
}

func TestCLIFavorite(t *testing.T) {
	eng, pack := newTestEngine(t)
	promptID := pack.Prompts[0].ID.String()

	_, err := runCommand(t, eng, "favorite", uuid.NewString())
	if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("expected NOT_FOUND for unknown prompt, got %v", err)
	}

	output, err := runCommand(t, eng, "favorite", promptID)
	if err != nil {
		t.Fatalf("favorite failed: %v", err)
	}
	if output["favorited"] != true {
		t.Errorf("favorited = %v, want true", output["favorited"])
	}

	output, err = runCommand(t, eng, "favorite", promptID)
	if err != nil {
		t.Fatalf("favorite failed: %v", err)
	}
	if output["favorited"] != false {
		t.Errorf("favorited = %v, want false after second toggle", output["favorited"])
	}
}

func TestCLIHome(t *testing.T) {
	eng, _ := newTestEngine(t)

	t.Run("set explicit coordinate", func(t *testing.T) {
		output, err := runCommand(t, eng, "home", "set", "--lat", "40.7", "--lng", "-74.0")
		if err != nil {
			t.Fatalf("home set failed: %v", err)
		}
		home := output["home"].(map[string]any)
		if home["latitude"] != 40.7 {
			t.Errorf("latitude = %v, want 40.7", home["latitude"])
		}
	})

	t.Run("lat without lng", func(t *testing.T) {
		_, err := runCommand(t, eng, "home", "set", "--lat", "40.7")
		if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
			t.Errorf("expected INVALID_REQUEST, got %v", err)
		}
	})

	t.Run("capture denied without authorization", func(t *testing.T) {
		_, err := runCommand(t, eng, "home", "set")
		if err == nil || !strings.Contains(err.Error(), "PERMISSION_DENIED") {
			t.Errorf("expected PERMISSION_DENIED, got %v", err)
		}
	})

	t.Run("status", func(t *testing.T) {
		output, err := runCommand(t, eng, "home", "status")
		if err != nil {
			t.Fatalf("home status failed: %v", err)
		}
		if output["home"] == nil {
			t.Error("expected home coordinate in status")
		}
		if output["authorization"] != "notDetermined" {
			t.Errorf("authorization = %v, want notDetermined", output["authorization"])
		}
	})

	t.Run("clear", func(t *testing.T) {
		output, err := runCommand(t, eng, "home", "clear")
		if err != nil {
			t.Fatalf("home clear failed: %v", err)
		}
		if output["home"] != nil {
			t.Errorf("home = %v, want null after clear", output["home"])
		}
		if output["presence"] != "unknown" {
			t.Errorf("presence = %v, want unknown after clear", output["presence"])
		}
	})
}

func TestCLIHistory(t *testing.T) {
	eng, pack := newTestEngine(t)

	if _, err := runCommand(t, eng, "toggle", pack.ID.String()); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if _, err := runCommand(t, eng, "next"); err != nil {
		t.Fatalf("next failed: %v", err)
	}

	output, err := runCommand(t, eng, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	items, ok := output["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected 1 history entry, got %v", output["items"])
	}
	entry := items[0].(map[string]any)
	if entry["pack_name"] != "Test Pack" {
		t.Errorf("pack_name = %v, want Test Pack", entry["pack_name"])
	}

	output, err = runCommand(t, eng, "history", "clear")
	if err != nil {
		t.Fatalf("history clear failed: %v", err)
	}
	if output["deleted"] != float64(1) {
		t.Errorf("deleted = %v, want 1", output["deleted"])
	}

	output, err = runCommand(t, eng, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if items, _ := output["items"].([]any); len(items) != 0 {
		t.Errorf("expected empty history after clear, got %v", items)
	}
}

func TestCLIStatus(t *testing.T) {
	eng, _ := newTestEngine(t)

	output, err := runCommand(t, eng, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if output["presence"] != "unknown" {
		t.Errorf("presence = %v, want unknown", output["presence"])
	}
	if output["home"] != nil {
		t.Errorf("home = %v, want null", output["home"])
	}
	if output["location_filtering"] != true {
		t.Errorf("location_filtering = %v, want true", output["location_filtering"])
	}
	if output["history_count"] != float64(0) {
		t.Errorf("history_count = %v, want 0", output["history_count"])
	}
	if output["max_duration"] != float64(15) {
		t.Errorf("max_duration = %v, want 15", output["max_duration"])
	}
	if output["theme"] != "system" {
		t.Errorf("theme = %v, want system", output["theme"])
	}
}

func TestCLISettings(t *testing.T) {
	eng, _ := newTestEngine(t)

	t.Run("defaults", func(t *testing.T) {
		output, err := runCommand(t, eng, "settings")
		if err != nil {
			t.Fatalf("settings failed: %v", err)
		}
		if output["max_duration"] != float64(15) {
			t.Errorf("max_duration = %v, want 15", output["max_duration"])
		}
		if output["time_filtering"] != true {
			t.Errorf("time_filtering = %v, want true", output["time_filtering"])
		}
	})

	t.Run("update", func(t *testing.T) {
		output, err := runCommand(t, eng, "settings",
			"--max-duration", "30", "--theme", "dark", "--time-filter=false")
		if err != nil {
			t.Fatalf("settings failed: %v", err)
		}
		if output["max_duration"] != float64(30) {
			t.Errorf("max_duration = %v, want 30", output["max_duration"])
		}
		if output["theme"] != "dark" {
			t.Errorf("theme = %v, want dark", output["theme"])
		}
		if output["time_filtering"] != false {
			t.Errorf("time_filtering = %v, want false", output["time_filtering"])
		}
	})

	t.Run("invalid theme", func(t *testing.T) {
		_, err := runCommand(t, eng, "settings", "--theme", "neon")
		if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
			t.Errorf("expected INVALID_REQUEST, got %v", err)
		}
	})

	t.Run("invalid max duration", func(t *testing.T) {
		_, err := runCommand(t, eng, "settings", "--max-duration", "0")
		if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
			t.Errorf("expected INVALID_REQUEST, got %v", err)
		}
	})
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"sidequests"}, false},
		{"known command", []string{"sidequests", "next"}, true},
		{"help flag", []string{"sidequests", "--help"}, true},
		{"version flag", []string{"sidequests", "-v"}, true},
		{"unknown arg", []string{"sidequests", "bogus"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			os.Args = tt.args
			defer func() { os.Args = oldArgs }()

			if got := isCLIMode(); got != tt.expected {
				t.Errorf("isCLIMode() = %v, want %v", got, tt.expected)
			}
		})
	}
}
