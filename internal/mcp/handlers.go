package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/qZheng/sidequests/internal/catalog"
	"github.com/qZheng/sidequests/internal/config"
	"github.com/qZheng/sidequests/internal/db"
	"github.com/qZheng/sidequests/internal/dayphase"
	"github.com/qZheng/sidequests/internal/errors"
	"github.com/qZheng/sidequests/internal/presence"
	"github.com/qZheng/sidequests/internal/quest"
	"github.com/qZheng/sidequests/internal/selector"
	"github.com/qZheng/sidequests/internal/session"
)

// Handlers holds the engine services the MCP tools operate on.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	packs    func() []quest.Pack
	session  *session.State
	selector *selector.Selector
	tracker  *presence.Tracker
	clock    *dayphase.Clock
	log      *zap.Logger
}

// Deps bundles the services Handlers needs.
type Deps struct {
	DB       *sql.DB
	Config   *config.Config
	Packs    func() []quest.Pack
	Session  *session.State
	Selector *selector.Selector
	Tracker  *presence.Tracker
	Clock    *dayphase.Clock
	Log      *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		db:       deps.DB,
		cfg:      deps.Config,
		packs:    deps.Packs,
		session:  deps.Session,
		selector: deps.Selector,
		tracker:  deps.Tracker,
		clock:    deps.Clock,
		log:      deps.Log,
	}
}

// Request types for each tool

// TogglePackRequest represents the arguments for quest_toggle_pack.
type TogglePackRequest struct {
	PackID string `json:"pack_id"`
}

// FavoriteRequest represents the arguments for quest_favorite.
type FavoriteRequest struct {
	PromptID string `json:"prompt_id"`
}

// HomeSetRequest represents the arguments for quest_home_set.
// Both coordinates present sets the home explicitly; both absent captures
// the device's current location.
type HomeSetRequest struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// LocationEventRequest represents the arguments for quest_location_event.
type LocationEventRequest struct {
	Event         string   `json:"event"`
	State         string   `json:"state,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	Authorization string   `json:"authorization,omitempty"`
	Message       string   `json:"message,omitempty"`
}

// Handler implementations

// HandleNext handles the quest_next tool call.
func (h *Handlers) HandleNext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.selector.Next()
	if err != nil {
		return errorResult(err), nil
	}

	payload := map[string]any{"available": result.Available()}
	if result.Available() {
		payload["prompt"] = result.Prompt
	} else {
		payload["reason"] = result.Reason
	}
	return successResult(payload)
}

// HandleLatest handles the quest_latest tool call.
func (h *Handlers) HandleLatest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	served, ok, err := selector.Latest(h.db)
	if err != nil {
		return errorResult(err), nil
	}
	if !ok {
		return successResult(map[string]any{"item": nil})
	}
	return successResult(map[string]any{"item": served})
}

// packSummary is one row of the quest_packs listing.
type packSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IconName    string `json:"icon_name"`
	PromptCount int    `json:"prompt_count"`
	Active      bool   `json:"active"`
}

// HandlePacks handles the quest_packs tool call.
func (h *Handlers) HandlePacks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	packs := h.packs()
	snap := h.session.Snapshot()

	favorites := catalog.FavoritesPack(packs, snap.FavoritePromptIDs)
	items := []packSummary{{
		ID:          favorites.ID.String(),
		Name:        favorites.Name,
		IconName:    favorites.IconName,
		PromptCount: len(favorites.Prompts),
		Active:      snap.ActivePackIDs[favorites.ID],
	}}
	for _, pack := range catalog.SortForDisplay(packs, snap.ActivePackIDs) {
		items = append(items, packSummary{
			ID:          pack.ID.String(),
			Name:        pack.Name,
			IconName:    pack.IconName,
			PromptCount: len(pack.Prompts),
			Active:      snap.ActivePackIDs[pack.ID],
		})
	}

	return successResult(map[string]any{
		"items":          items,
		"favorites_mode": snap.FavoritesMode,
	})
}

// HandleTogglePack handles the quest_toggle_pack tool call.
func (h *Handlers) HandleTogglePack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TogglePackRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	id, err := uuid.Parse(input.PackID)
	if err != nil {
		return errorResult(errors.NewInvalidRequest("pack_id must be a UUID")), nil
	}
	if id != quest.FavoritesPackID && catalog.FindPack(h.packs(), id) == nil {
		return errorResult(errors.NewNotFound(input.PackID)), nil
	}

	h.session.TogglePack(id)
	snap := h.session.Snapshot()

	active := make([]string, 0, len(snap.ActivePackIDs))
	for packID := range snap.ActivePackIDs {
		active = append(active, packID.String())
	}
	return successResult(map[string]any{
		"active_pack_ids": active,
		"favorites_mode":  snap.FavoritesMode,
	})
}

// HandleFavorite handles the quest_favorite tool call.
func (h *Handlers) HandleFavorite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FavoriteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	id, err := uuid.Parse(input.PromptID)
	if err != nil {
		return errorResult(errors.NewInvalidRequest("prompt_id must be a UUID")), nil
	}

	known := false
	for _, p := range catalog.AllPrompts(h.packs()) {
		if p.ID == id {
			known = true
			break
		}
	}
	if !known {
		return errorResult(errors.NewNotFound(input.PromptID)), nil
	}

	favorited := h.session.ToggleFavorite(id)
	return successResult(map[string]any{"favorited": favorited})
}

// HandleHomeSet handles the quest_home_set tool call.
func (h *Handlers) HandleHomeSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HomeSetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var coord quest.Coordinate
	switch {
	case input.Latitude != nil && input.Longitude != nil:
		coord = quest.Coordinate{Latitude: *input.Latitude, Longitude: *input.Longitude}
		if err := h.tracker.ConfigureHome(coord); err != nil {
			return errorResult(err), nil
		}
	case input.Latitude == nil && input.Longitude == nil:
		coord, err = h.tracker.CaptureCurrentLocationAsHome()
		if err != nil {
			return errorResult(err), nil
		}
	default:
		return errorResult(errors.NewInvalidRequest("latitude and longitude must be provided together")), nil
	}

	return successResult(map[string]any{
		"home": map[string]any{
			"latitude":  coord.Latitude,
			"longitude": coord.Longitude,
		},
		"presence": h.tracker.Presence(),
	})
}

// HandleHomeClear handles the quest_home_clear tool call.
func (h *Handlers) HandleHomeClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.tracker.ClearHome()
	return successResult(map[string]any{
		"home":     nil,
		"presence": h.tracker.Presence(),
	})
}

// HandleLocationEvent handles the quest_location_event tool call.
func (h *Handlers) HandleLocationEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LocationEventRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	switch input.Event {
	case "enter":
		h.tracker.HandleRegionEnter(presence.HomeRegionID)
	case "exit":
		h.tracker.HandleRegionExit(presence.HomeRegionID)
	case "state":
		state := presence.RegionState(input.State)
		switch state {
		case presence.RegionInside, presence.RegionOutside, presence.RegionUnknown:
		default:
			return errorResult(errors.NewInvalidRequest("state must be inside, outside, or unknown")), nil
		}
		h.tracker.HandleRegionState(presence.HomeRegionID, state)
	case "fix":
		if input.Latitude == nil || input.Longitude == nil {
			return errorResult(errors.NewInvalidRequest("fix events require latitude and longitude")), nil
		}
		h.tracker.HandleLocation(quest.Coordinate{Latitude: *input.Latitude, Longitude: *input.Longitude})
	case "error":
		h.tracker.HandleLocationError(stderrors.New(input.Message))
	case "monitoring_error":
		h.tracker.HandleMonitoringError(presence.HomeRegionID, stderrors.New(input.Message))
	case "authorization":
		auth := presence.Authorization(input.Authorization)
		switch auth {
		case presence.AuthNotDetermined, presence.AuthDenied, presence.AuthRestricted,
			presence.AuthWhenInUse, presence.AuthAlways:
		default:
			return errorResult(errors.NewInvalidRequest("unknown authorization tier")), nil
		}
		if relay, ok := h.tracker.Provider().(*presence.RelayProvider); ok {
			relay.SetAuthorization(auth)
		}
		h.tracker.HandleAuthorizationChange(auth)
	default:
		return errorResult(errors.NewInvalidRequest("unknown event kind")), nil
	}

	return successResult(map[string]any{"presence": h.tracker.Presence()})
}

// HandleStatus handles the quest_status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := h.session.Snapshot()

	var home any
	if coord, ok := h.tracker.Home(); ok {
		home = map[string]any{
			"latitude":  coord.Latitude,
			"longitude": coord.Longitude,
		}
	}

	historyCount, err := db.CountHistory(h.db)
	if err != nil {
		return errorResult(err), nil
	}

	active := make([]string, 0, len(snap.ActivePackIDs))
	for packID := range snap.ActivePackIDs {
		active = append(active, packID.String())
	}

	payload := map[string]any{
		"presence":           h.tracker.Presence(),
		"authorization":      h.tracker.Authorization(),
		"home":               home,
		"time_of_day":        h.clock.Current(),
		"location_filtering": h.session.UseLocationFiltering(),
		"time_filtering":     h.session.FilterByTimeOfDay(),
		"favorites_mode":     snap.FavoritesMode,
		"active_pack_ids":    active,
		"favorite_count":     len(snap.FavoritePromptIDs),
		"history_count":      historyCount,
		"max_duration":       snap.MaxDuration,
		"theme":              snap.SelectedTheme,
	}
	if lastErr := h.tracker.LastError(); lastErr != nil {
		payload["last_location_error"] = map[string]any{
			"code":    lastErr.Code,
			"message": lastErr.Message,
		}
	}
	return successResult(payload)
}

// HandleHistoryClear handles the quest_history_clear tool call.
func (h *Handlers) HandleHistoryClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deleted, err := h.session.ClearHistory()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"deleted": deleted})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var questErr *errors.QuestError
	if stderrors.As(err, &questErr) {
		errorObj := map[string]any{
			"code":    questErr.Code,
			"message": questErr.Message,
			"status":  questErr.Status,
		}
		if questErr.Code != errors.ErrInternal && questErr.Details != nil {
			errorObj["details"] = questErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
