package main

import (
	"context"
	"fmt"

	"microplastic-id/analysis"
	"microplastic-id/chat"
	"microplastic-id/db"
	"microplastic-id/matcher"
)

// buildService wires the analysis pipeline from the loaded configuration.
// The returned cleanup closes the history store when one was opened.
func buildService(ctx context.Context, withHistory, withExplainer bool) (*analysis.Service, func(), error) {
	catalog, err := analysis.LoadCatalog(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	classifier, err := analysis.LoadClassifier(ctx, cfg, catalog)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build classifier: %w", err)
	}

	options := analysis.Options{
		Config:     cfg,
		Catalog:    catalog,
		Classifier: classifier,
		Noise:      matcher.SharedNoise{},
	}
	if withExplainer {
		options.Explainer = chat.NewExplainer(ctx)
	}

	cleanup := func() {}
	if withHistory {
		store, err := db.NewHistoryStore(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open history store: %w", err)
		}
		options.Store = store
		cleanup = func() { store.Close() }
	}

	service, err := analysis.NewService(options)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return service, cleanup, nil
}
