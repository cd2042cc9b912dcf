package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"quest_next": {
		def:     nextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNext },
	},
	"quest_latest": {
		def:     latestToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLatest },
	},
	"quest_packs": {
		def:     packsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePacks },
	},
	"quest_toggle_pack": {
		def:     togglePackToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTogglePack },
	},
	"quest_favorite": {
		def:     favoriteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFavorite },
	},
	"quest_home_set": {
		def:     homeSetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHomeSet },
	},
	"quest_home_clear": {
		def:     homeClearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHomeClear },
	},
	"quest_location_event": {
		def:     locationEventToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLocationEvent },
	},
	"quest_status": {
		def:     statusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatus },
	},
	"quest_history_clear": {
		def:     historyClearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryClear },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with the quest tools registered.
// Tools listed in the handlers' config DisabledTools are excluded.
func NewServer(h *Handlers, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"sidequests",
		version,
		server.WithToolCapabilities(true),
	)

	disabled := make(map[string]bool)
	for _, name := range h.cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(h *Handlers, version string) error {
	return server.ServeStdio(NewServer(h, version))
}
