package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qZheng/sidequests/internal/quest"
)

// Load reads every *.json pack file in dir and returns the decoded packs,
// sorted by name. Malformed files are skipped with a warning; one bad pack
// file never prevents the others from loading. A missing directory yields an
// empty catalog, not an error.
func Load(dir string, log *zap.Logger) ([]quest.Pack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("pack directory missing", zap.String("dir", dir))
			return nil, nil
		}
		return nil, err
	}

	packs := make([]quest.Pack, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		pack, err := loadFile(path)
		if err != nil {
			log.Warn("skipping malformed pack file",
				zap.String("file", entry.Name()),
				zap.Error(err))
			continue
		}
		packs = append(packs, pack)
	}

	sort.Slice(packs, func(i, j int) bool {
		return packs[i].Name < packs[j].Name
	})

	log.Info("loaded quest packs", zap.Int("count", len(packs)), zap.String("dir", dir))
	return packs, nil
}

// loadFile decodes a single pack file and stamps its name onto every prompt.
func loadFile(path string) (quest.Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return quest.Pack{}, err
	}

	var pack quest.Pack
	if err := json.Unmarshal(data, &pack); err != nil {
		return quest.Pack{}, err
	}
	if err := validate(pack); err != nil {
		return quest.Pack{}, err
	}

	for i := range pack.Prompts {
		pack.Prompts[i].PackName = pack.Name
	}
	return pack, nil
}

// validate rejects packs that would break catalog invariants.
func validate(pack quest.Pack) error {
	if pack.ID == uuid.Nil {
		// The nil UUID is reserved for the synthetic Favorites pack.
		return fmt.Errorf("pack id is missing or reserved")
	}
	if strings.TrimSpace(pack.Name) == "" {
		return fmt.Errorf("pack name is empty")
	}
	return nil
}

// FindPack returns the pack with the given id, or nil if absent.
func FindPack(packs []quest.Pack, id uuid.UUID) *quest.Pack {
	for i := range packs {
		if packs[i].ID == id {
			return &packs[i]
		}
	}
	return nil
}

// AllPrompts flattens every pack's prompts into one slice.
func AllPrompts(packs []quest.Pack) []quest.Prompt {
	total := 0
	for _, p := range packs {
		total += len(p.Prompts)
	}
	prompts := make([]quest.Prompt, 0, total)
	for _, p := range packs {
		prompts = append(prompts, p.Prompts...)
	}
	return prompts
}

// SortForDisplay orders packs for a listing: active packs first, then by
// name within each group. The input is not modified.
func SortForDisplay(packs []quest.Pack, active map[uuid.UUID]bool) []quest.Pack {
	sorted := append([]quest.Pack(nil), packs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ai, aj := active[sorted[i].ID], active[sorted[j].ID]
		if ai != aj {
			return ai
		}
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

// FavoritesPack synthesizes the reserved Favorites pack from whichever
// prompts across all packs are currently favorited. It is never materialized
// by the catalog itself.
func FavoritesPack(packs []quest.Pack, favoriteIDs map[uuid.UUID]bool) quest.Pack {
	favorites := make([]quest.Prompt, 0, len(favoriteIDs))
	for _, p := range AllPrompts(packs) {
		if favoriteIDs[p.ID] {
			favorites = append(favorites, p)
		}
	}
	return quest.Pack{
		ID:       quest.FavoritesPackID,
		Name:     quest.FavoritesPackName,
		IconName: quest.FavoritesPackIcon,
		Prompts:  favorites,
	}
}
