package mcp

import "github.com/mark3labs/mcp-go/mcp"

var nextToolDef = mcp.NewTool("quest_next",
	mcp.WithDescription("Draw the next activity prompt from the active packs, filtered by the current location and time-of-day context."),
)

var latestToolDef = mcp.NewTool("quest_latest",
	mcp.WithDescription("Return the most recently served prompt without drawing a new one. Returns a null item when nothing has been served yet."),
)

var packsToolDef = mcp.NewTool("quest_packs",
	mcp.WithDescription("List all loaded prompt packs, including the synthetic Favorites pack, with their active state."),
)

var togglePackToolDef = mcp.NewTool("quest_toggle_pack",
	mcp.WithDescription("Toggle a pack's membership in the active selection. Toggling the Favorites pack id enters or exits favorites-only mode."),
	mcp.WithString("pack_id",
		mcp.Required(),
		mcp.Description("UUID of the pack to toggle. The all-zero UUID addresses the Favorites pack."),
	),
)

var favoriteToolDef = mcp.NewTool("quest_favorite",
	mcp.WithDescription("Toggle a prompt's favorite flag."),
	mcp.WithString("prompt_id",
		mcp.Required(),
		mcp.Description("UUID of the prompt to favorite or unfavorite."),
	),
)

var homeSetToolDef = mcp.NewTool("quest_home_set",
	mcp.WithDescription("Set the home location. Pass latitude and longitude to set it explicitly, or omit both to capture the device's current location (requires location authorization; may take up to the capture timeout)."),
	mcp.WithNumber("latitude",
		mcp.Description("Home latitude in degrees, -90 to 90."),
	),
	mcp.WithNumber("longitude",
		mcp.Description("Home longitude in degrees, -180 to 180."),
	),
)

var homeClearToolDef = mcp.NewTool("quest_home_clear",
	mcp.WithDescription("Clear the home location and stop geofence monitoring. Presence becomes unknown."),
)

var locationEventToolDef = mcp.NewTool("quest_location_event",
	mcp.WithDescription("Relay a device location event into the presence tracker: geofence enter/exit, a region state answer, a one-shot location fix, a location error, a monitoring error, or an authorization change."),
	mcp.WithString("event",
		mcp.Required(),
		mcp.Description("Event kind: enter, exit, state, fix, error, monitoring_error, or authorization."),
	),
	mcp.WithString("state",
		mcp.Description("Region state for event=state: inside, outside, or unknown."),
	),
	mcp.WithNumber("latitude",
		mcp.Description("Latitude of the fix for event=fix."),
	),
	mcp.WithNumber("longitude",
		mcp.Description("Longitude of the fix for event=fix."),
	),
	mcp.WithString("authorization",
		mcp.Description("New permission tier for event=authorization: notDetermined, denied, restricted, whenInUse, or always."),
	),
	mcp.WithString("message",
		mcp.Description("Platform error description for event=error or event=monitoring_error."),
	),
)

var statusToolDef = mcp.NewTool("quest_status",
	mcp.WithDescription("Report engine status: presence, authorization, home location, time-of-day bucket, filter toggles, active packs, and history size."),
)

var historyClearToolDef = mcp.NewTool("quest_history_clear",
	mcp.WithDescription("Delete all served-prompt history and reset the anti-repeat state."),
)
