package cli

import (
	"context"
	"fmt"

	"github.com/entl/dbdeck/internal/config"
	"github.com/entl/dbdeck/internal/history"
	"github.com/entl/dbdeck/internal/lando"
	"github.com/entl/dbdeck/internal/registry"
	"github.com/entl/dbdeck/internal/storage"
	"github.com/entl/dbdeck/internal/suggest"
)

// app bundles the wired services a command works with. CLI invocations are
// short-lived: the history window is loaded from disk on startup and saved
// back by close.
type app struct {
	cfg      *config.Config
	runner   lando.Runner
	registry *registry.Registry
	store    *history.Store
	history  *history.Service
	suggest  *suggest.Service

	db *storage.DB
}

// newApp wires the application services from configuration.
func newApp(cc *cmdContext) (*app, error) {
	store := history.NewStore()
	if err := store.Load(cc.cfg.History.Path); err != nil {
		return nil, err
	}

	var db *storage.DB
	if cc.cfg.History.Archive {
		var err error
		db, err = storage.NewDB(cc.cfg.History.ArchivePath)
		if err != nil {
			return nil, fmt.Errorf("open history archive: %w", err)
		}
	}

	runner := lando.NewCLI(cc.cfg.LandoBin, cc.cfg.ProjectDir, cc.cfg.Query.Timeout, cc.logger)
	histSvc := history.NewService(store, db, cc.logger)

	return &app{
		cfg:      cc.cfg,
		runner:   runner,
		registry: registry.New(),
		store:    store,
		history:  histSvc,
		suggest: suggest.NewService(cc.logger,
			suggest.NewHistoryProvider(store),
			suggest.NewTemplateProvider(),
		),
		db: db,
	}, nil
}

// refreshRegistry populates the registry from a live discovery call.
func (a *app) refreshRegistry(ctx context.Context) error {
	raw, err := a.runner.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover services: %w", err)
	}
	if _, err := a.registry.Refresh(raw); err != nil {
		return err
	}
	return nil
}

// close flushes pending archive writes and persists the history window.
func (a *app) close() error {
	err := a.history.Close()
	if a.db != nil {
		if cerr := a.db.Close(); err == nil {
			err = cerr
		}
	}
	if serr := a.store.Save(a.cfg.History.Path); err == nil {
		err = serr
	}
	return err
}
