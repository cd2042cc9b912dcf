package main

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/qZheng/sidequests/internal/catalog"
	"github.com/qZheng/sidequests/internal/config"
	"github.com/qZheng/sidequests/internal/dayphase"
	"github.com/qZheng/sidequests/internal/mcp"
	"github.com/qZheng/sidequests/internal/prefs"
	"github.com/qZheng/sidequests/internal/presence"
	"github.com/qZheng/sidequests/internal/quest"
	"github.com/qZheng/sidequests/internal/selector"
	"github.com/qZheng/sidequests/internal/session"
)

// engine wires the long-lived services shared by the CLI, MCP server, and
// web modes: the pack catalog, session state, presence tracker, day-phase
// clock, and the selector built on top of them.
type engine struct {
	db       *sql.DB
	cfg      *config.Config
	log      *zap.Logger
	packs    []quest.Pack
	session  *session.State
	tracker  *presence.Tracker
	clock    *dayphase.Clock
	selector *selector.Selector
}

// newLogger builds the zap logger for the configured mode. Output always
// goes to stderr: stdout carries MCP traffic in server mode and JSON in
// CLI mode.
func newLogger(mode string) (*zap.Logger, error) {
	var zcfg zap.Config
	if mode == "prod" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

// newEngine assembles the service graph over an initialized database.
func newEngine(database *sql.DB, cfg *config.Config, log *zap.Logger) (*engine, error) {
	packs, err := catalog.Load(cfg.PacksDir, log)
	if err != nil {
		return nil, err
	}

	store := prefs.NewStore(database)
	sess := session.New(store, database, log)

	provider := presence.NewRelayProvider(presence.AuthNotDetermined)
	tracker := presence.New(provider, store, log, presence.Options{
		Radius:         cfg.HomeRegionRadius,
		CaptureTimeout: time.Duration(cfg.CaptureTimeoutSecs) * time.Second,
	})
	tracker.Restore()

	clock := dayphase.New(tracker.Home, log, dayphase.Options{})
	tracker.Subscribe(clock.NotifyClockChanged)
	clock.Refresh()

	e := &engine{
		db:      database,
		cfg:     cfg,
		log:     log,
		packs:   packs,
		session: sess,
		tracker: tracker,
		clock:   clock,
	}
	e.selector = selector.New(e.allPacks, sess, tracker, clock, database, log, selector.Options{})
	return e, nil
}

// allPacks returns the loaded catalog. Packs are read once at startup;
// editing pack files requires a restart.
func (e *engine) allPacks() []quest.Pack {
	return e.packs
}

// handlers builds the MCP handler set over this engine.
func (e *engine) handlers() *mcp.Handlers {
	return mcp.NewHandlers(mcp.Deps{
		DB:       e.db,
		Config:   e.cfg,
		Packs:    e.allPacks,
		Session:  e.session,
		Selector: e.selector,
		Tracker:  e.tracker,
		Clock:    e.clock,
		Log:      e.log,
	})
}

// Close stops background work and flushes buffered logs.
func (e *engine) Close() {
	e.clock.Stop()
	_ = e.log.Sync()
}
