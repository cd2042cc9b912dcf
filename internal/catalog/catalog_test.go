package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qZheng/sidequests/internal/quest"
)

const packTemplate = `{
	"id": "%s",
	"name": "%s",
	"iconName": "sparkles",
	"prompts": [
		{
			"id": "%s",
			"text": "Look out a window and find something new.",
			"metadata": {"durationInMinutes": 5, "tools": [], "timesOfDay": ["day"]}
		}
	]
}`

func writePack(t *testing.T, dir, file, name string) (uuid.UUID, uuid.UUID) {
	t.Helper()
	packID, promptID := uuid.New(), uuid.New()
	content := fmt.Sprintf(packTemplate, packID, name, promptID)
	if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return packID, promptID
}

func TestLoad_StampsPackNameAndSorts(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "b.json", "Wander")
	writePack(t, dir, "a.json", "Mindful Moments")

	packs, err := Load(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(packs) != 2 {
		t.Fatalf("len(packs) = %d, want 2", len(packs))
	}
	// Sorted by name, not filename
	if packs[0].Name != "Mindful Moments" || packs[1].Name != "Wander" {
		t.Errorf("pack order = %q, %q", packs[0].Name, packs[1].Name)
	}
	if packs[0].Prompts[0].PackName != "Mindful Moments" {
		t.Errorf("PackName = %q, want Mindful Moments", packs[0].Prompts[0].PackName)
	}
}

func TestLoad_SkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "good.json", "Good Pack")

	bad := []byte("{definitely not json")
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), bad, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	// Not a .json file, ignored entirely
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	packs, err := Load(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(packs) != 1 {
		t.Fatalf("len(packs) = %d, want 1", len(packs))
	}
	if packs[0].Name != "Good Pack" {
		t.Errorf("Name = %q, want Good Pack", packs[0].Name)
	}
}

func TestLoad_SkipsReservedPackID(t *testing.T) {
	dir := t.TempDir()

	content := fmt.Sprintf(packTemplate, uuid.Nil, "Impostor Favorites", uuid.New())
	if err := os.WriteFile(filepath.Join(dir, "favorites.json"), []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	packs, err := Load(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(packs) != 0 {
		t.Errorf("len(packs) = %d, want 0 (reserved id must be skipped)", len(packs))
	}
}

func TestLoad_MissingDirectory(t *testing.T) {
	packs, err := Load(filepath.Join(t.TempDir(), "nowhere"), zap.NewNop())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(packs) != 0 {
		t.Errorf("len(packs) = %d, want 0", len(packs))
	}
}

func TestFavoritesPack(t *testing.T) {
	p1 := quest.Prompt{ID: uuid.New(), Text: "one", PackName: "A"}
	p2 := quest.Prompt{ID: uuid.New(), Text: "two", PackName: "B"}
	p3 := quest.Prompt{ID: uuid.New(), Text: "three", PackName: "B"}
	packs := []quest.Pack{
		{ID: uuid.New(), Name: "A", Prompts: []quest.Prompt{p1}},
		{ID: uuid.New(), Name: "B", Prompts: []quest.Prompt{p2, p3}},
	}

	fav := FavoritesPack(packs, map[uuid.UUID]bool{p1.ID: true, p3.ID: true})

	if fav.ID != quest.FavoritesPackID {
		t.Errorf("ID = %v, want sentinel", fav.ID)
	}
	if fav.Name != quest.FavoritesPackName {
		t.Errorf("Name = %q, want %q", fav.Name, quest.FavoritesPackName)
	}
	if len(fav.Prompts) != 2 {
		t.Fatalf("len(Prompts) = %d, want 2", len(fav.Prompts))
	}
	// Favorites keep their origin pack's name
	if fav.Prompts[0].PackName != "A" || fav.Prompts[1].PackName != "B" {
		t.Errorf("PackNames = %q, %q", fav.Prompts[0].PackName, fav.Prompts[1].PackName)
	}
}

func TestFindPack(t *testing.T) {
	id := uuid.New()
	packs := []quest.Pack{{ID: id, Name: "A"}}

	if got := FindPack(packs, id); got == nil || got.Name != "A" {
		t.Errorf("FindPack = %v, want pack A", got)
	}
	if got := FindPack(packs, uuid.New()); got != nil {
		t.Errorf("FindPack(unknown) = %v, want nil", got)
	}
}

func TestSortForDisplay(t *testing.T) {
	a := quest.Pack{ID: uuid.New(), Name: "Alpha"}
	b := quest.Pack{ID: uuid.New(), Name: "Beta"}
	c := quest.Pack{ID: uuid.New(), Name: "Gamma"}
	packs := []quest.Pack{a, b, c}

	sorted := SortForDisplay(packs, map[uuid.UUID]bool{c.ID: true})

	want := []string{"Gamma", "Alpha", "Beta"}
	for i, name := range want {
		if sorted[i].Name != name {
			t.Errorf("sorted[%d] = %q, want %q", i, sorted[i].Name, name)
		}
	}
	// Input order untouched
	if packs[0].Name != "Alpha" || packs[2].Name != "Gamma" {
		t.Errorf("input reordered: %v", packs)
	}
}
