package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/qZheng/sidequests/internal/catalog"
	"github.com/qZheng/sidequests/internal/db"
	"github.com/qZheng/sidequests/internal/errors"
	"github.com/qZheng/sidequests/internal/quest"
	"github.com/qZheng/sidequests/internal/selector"
	"github.com/qZheng/sidequests/internal/web"
)

// newCLIApp creates the CLI application with all commands. The engine may be
// nil for help/version requests, which never run a command action.
func newCLIApp(eng *engine) *cli.App {
	app := &cli.App{
		Name:    "sidequests",
		Usage:   "Contextual activity prompts",
		Version: Version,
		Commands: []*cli.Command{
			nextCmd(eng),
			latestCmd(eng),
			packsCmd(eng),
			toggleCmd(eng),
			favoriteCmd(eng),
			homeCmd(eng),
			historyCmd(eng),
			statusCmd(eng),
			settingsCmd(eng),
			webCmd(eng),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// nextCmd creates the next command.
func nextCmd(eng *engine) *cli.Command {
	return &cli.Command{
		Name:  "next",
		Usage: "Draw the next quest from the active packs",
		Action: func(c *cli.Context) error {
			result, err := eng.selector.Next()
			if err != nil {
				return outputError(err)
			}

			payload := map[string]any{"available": result.Available()}
			if result.Available() {
				payload["prompt"] = result.Prompt
			} else {
				payload["reason"] = result.Reason
			}
			return outputJSON(payload)
		},
	}
}

// latestCmd creates the latest command.
func latestCmd(eng *engine) *cli.Command {
	return &cli.Command{
		Name:  "latest",
		Usage: "Show the most recently served quest without drawing a new one",
		Action: func(c *cli.Context) error {
			served, ok, err := selector.Latest(eng.db)
			if err != nil {
				return outputError(err)
			}
			if !ok {
				return outputJSON(map[string]any{"item": nil})
			}
			return outputJSON(map[string]any{"item": served})
		},
	}
}

// packRow is one row of the packs listing.
type packRow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IconName    string `json:"icon_name"`
	PromptCount int    `json:"prompt_count"`
	Active      bool   `json:"active"`
}

// packsCmd creates the packs command.
func packsCmd(eng *engine) *cli.Command {
	return &cli.Command{
		Name:  "packs",
		Usage: "List quest packs and their active state",
		Action: func(c *cli.Context) error {
			packs := eng.allPacks()
			snap := eng.session.Snapshot()

			favorites := catalog.FavoritesPack(packs, snap.FavoritePromptIDs)
			items := []packRow{{
				ID:          favorites.ID.String(),
				Name:        favorites.Name,
				IconName:    favorites.IconName,
				PromptCount: len(favorites.Prompts),
				Active:      snap.ActivePackIDs[favorites.ID],
			}}
			for _, pack := range catalog.SortForDisplay(packs, snap.ActivePackIDs) {
				items = append(items, packRow{
					ID:          pack.ID.String(),
					Name:        pack.Name,
					IconName:    pack.IconName,
					PromptCount: len(pack.Prompts),
					Active:      snap.ActivePackIDs[pack.ID],
				})
			}

			return outputJSON(map[string]any{
				"items":          items,
				"favorites_mode": snap.FavoritesMode,
			})
		},
	}
}

// toggleCmd creates the toggle command.
func toggleCmd(eng *engine) *cli.Command {
	return &cli.Command{
		Name:      "toggle",
		Usage:     "Toggle a pack in the active selection ('favorites' toggles favorites mode)",
		ArgsUsage: "<pack-id|favorites>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("pack id is required"))
			}

			arg := c.Args().First()
			var id uuid.UUID
			if arg == "favorites" {
				id = quest.FavoritesPackID
			} else {
				parsed, err := uuid.Parse(arg)
				if err != nil {
					return outputError(errors.NewInvalidRequest("pack id must be a UUID or 'favorites'"))
				}
				id = parsed
			}
			if id != quest.FavoritesPackID && catalog.FindPack(eng.allPacks(), id) == nil {
				return outputError(errors.NewNotFound(arg))
			}

			eng.session.TogglePack(id)
			snap := eng.session.Snapshot()

			active := make([]string, 0, len(snap.ActivePackIDs))
			for packID := range snap.ActivePackIDs {
				active = append(active, packID.String())
			}
			return outputJSON(map[string]any{
				"active_pack_ids": active,
				"favorites_mode":  snap.FavoritesMode,
			})
		},
	}
}

// favoriteCmd creates the favorite command.
func favoriteCmd(eng *engine) *cli.Command {
	return &cli.Command{
		Name:      "favorite",
		Usage:     "Toggle a prompt's favorite flag",
		ArgsUsage: "<prompt-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("prompt id is required"))
			}

			id, err := uuid.Parse(c.Args().First())
			if err != nil {
				return outputError(errors.NewInvalidRequest("prompt id must be a UUID"))
			}

			known := false
			for _, p := range catalog.AllPrompts(eng.allPacks()) {
				if p.ID == id {
					known = true
					break
				}
			}
			if !known {
				return outputError(errors.NewNotFound(c.Args().First()))
			}

			favorited := eng.session.ToggleFavorite(id)
			return outputJSON(map[string]any{"favorited": favorited})
		},
	}
}

// homeCmd creates the home command with set/clear/status subcommands.
func homeCmd(eng *engine) *cli.Command {
	return &cli.Command{
		Name:  "home",
		Usage: "Manage the home coordinate and geofence",
		Subcommands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Set the home coordinate (omit flags to capture the current location)",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "lat", Usage: "Latitude in degrees"},
					&cli.Float64Flag{Name: "lng", Usage: "Longitude in degrees"},
				},
				Action: func(c *cli.Context) error {
					var coord quest.Coordinate
					switch {
					case c.IsSet("lat") && c.IsSet("lng"):
						coord = quest.Coordinate{Latitude: c.Float64("lat"), Longitude: c.Float64("lng")}
						if err := eng.tracker.ConfigureHome(coord); err != nil {
							return outputError(err)
						}
					case !c.IsSet("lat") && !c.IsSet("lng"):
						captured, err := eng.tracker.CaptureCurrentLocationAsHome()
						if err != nil {
							return outputError(err)
						}
						coord = captured
					default:
						return outputError(errors.NewInvalidRequest("--lat and --lng must be provided together"))
					}

					return outputJSON(map[string]any{
						"home": map[string]any{
							"latitude":  coord.Latitude,
							"longitude": coord.Longitude,
						},
						"presence": eng.tracker.Presence(),
					})
				},
			},
			{
				Name:  "clear",
				Usage: "Clear the home coordinate and stop geofencing",
				Action: func(c *cli.Context) error {
					eng.tracker.ClearHome()
					return outputJSON(map[string]any{
						"home":     nil,
						"presence": eng.tracker.Presence(),
					})
				},
			},
			{
				Name:  "status",
				Usage: "Show the home coordinate and current presence",
				Action: func(c *cli.Context) error {
					var home any
					if coord, ok := eng.tracker.Home(); ok {
						home = map[string]any{
							"latitude":  coord.Latitude,
							"longitude": coord.Longitude,
						}
					}
					return outputJSON(map[string]any{
						"home":          home,
						"presence":      eng.tracker.Presence(),
						"authorization": eng.tracker.Authorization(),
					})
				},
			},
		},
	}
}

// historyCmd creates the history command. The bare command lists entries;
// the clear subcommand empties the log.
func historyCmd(eng *engine) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List served quests, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum entries to return"},
		},
		Subcommands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "Delete all history entries",
				Action: func(c *cli.Context) error {
					deleted, err := eng.session.ClearHistory()
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"deleted": deleted})
				},
			},
		},
		Action: func(c *cli.Context) error {
			entries, err := eng.session.History(c.Int("limit"))
			if err != nil {
				return outputError(err)
			}
			if entries == nil {
				entries = []db.HistoryEntry{}
			}
			return outputJSON(map[string]any{"items": entries})
		},
	}
}

// statusCmd creates the status command.
func statusCmd(eng *engine) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show engine state: presence, filters, selection, and history",
		Action: func(c *cli.Context) error {
			snap := eng.session.Snapshot()

			var home any
			if coord, ok := eng.tracker.Home(); ok {
				home = map[string]any{
					"latitude":  coord.Latitude,
					"longitude": coord.Longitude,
				}
			}

			historyCount, err := db.CountHistory(eng.db)
			if err != nil {
				return outputError(err)
			}

			active := make([]string, 0, len(snap.ActivePackIDs))
			for packID := range snap.ActivePackIDs {
				active = append(active, packID.String())
			}

			payload := map[string]any{
				"presence":           eng.tracker.Presence(),
				"authorization":      eng.tracker.Authorization(),
				"home":               home,
				"time_of_day":        eng.clock.Current(),
				"location_filtering": eng.session.UseLocationFiltering(),
				"time_filtering":     eng.session.FilterByTimeOfDay(),
				"favorites_mode":     snap.FavoritesMode,
				"active_pack_ids":    active,
				"favorite_count":     len(snap.FavoritePromptIDs),
				"history_count":      historyCount,
				"max_duration":       snap.MaxDuration,
				"theme":              snap.SelectedTheme,
			}
			if lastErr := eng.tracker.LastError(); lastErr != nil {
				payload["last_location_error"] = map[string]any{
					"code":    lastErr.Code,
					"message": lastErr.Message,
				}
			}
			return outputJSON(payload)
		},
	}
}

// settingsCmd creates the settings command.
func settingsCmd(eng *engine) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or update selection settings",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max-duration", Usage: "Maximum quest duration in minutes"},
			&cli.StringFlag{Name: "theme", Usage: "Widget theme: system|light|dark"},
			&cli.BoolFlag{Name: "location-filter", Usage: "Enable or disable the location gate"},
			&cli.BoolFlag{Name: "time-filter", Usage: "Enable or disable the time-of-day gate"},
		},
		Action: func(c *cli.Context) error {
			if c.IsSet("max-duration") {
				minutes := c.Int("max-duration")
				if minutes < 1 {
					return outputError(errors.NewInvalidRequest("max-duration must be at least 1"))
				}
				if err := eng.session.SetMaxDuration(minutes); err != nil {
					return outputError(err)
				}
			}
			if c.IsSet("theme") {
				theme := c.String("theme")
				switch theme {
				case "system", "light", "dark":
				default:
					return outputError(errors.NewInvalidRequest("theme must be system, light, or dark"))
				}
				if err := eng.session.SetTheme(theme); err != nil {
					return outputError(err)
				}
			}
			if c.IsSet("location-filter") {
				if err := eng.session.SetUseLocationFiltering(c.Bool("location-filter")); err != nil {
					return outputError(err)
				}
			}
			if c.IsSet("time-filter") {
				if err := eng.session.SetFilterByTimeOfDay(c.Bool("time-filter")); err != nil {
					return outputError(err)
				}
			}

			snap := eng.session.Snapshot()
			return outputJSON(map[string]any{
				"max_duration":       snap.MaxDuration,
				"theme":              snap.SelectedTheme,
				"location_filtering": eng.session.UseLocationFiltering(),
				"time_filtering":     eng.session.FilterByTimeOfDay(),
			})
		},
	}
}

// webCmd creates the web command, which serves the widget until interrupted.
func webCmd(eng *engine) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Serve the quest widget over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (defaults to config)"},
			&cli.IntFlag{Name: "port", Usage: "Port (defaults to config)"},
		},
		Action: func(c *cli.Context) error {
			bind := eng.cfg.WebBind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := eng.cfg.WebPort
			if c.IsSet("port") {
				port = c.Int("port")
			}

			srv := web.NewServer(eng.db, eng.log, Version, bind, port)
			if err := web.Run(srv, eng.log); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var questErr *errors.QuestError
	if stderrors.As(err, &questErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", questErr.Code, questErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
