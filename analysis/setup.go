package analysis

import (
	"context"
	"log/slog"

	"github.com/mdobak/go-xerrors"

	"microplastic-id/config"
	"microplastic-id/matcher"
	"microplastic-id/utils"
)

// LoadCatalog returns the built-in catalog unless matching.catalog_path
// points at a catalog file.
func LoadCatalog(ctx context.Context, cfg *config.Config) (matcher.Catalog, error) {
	if cfg.Matching.CatalogPath == "" {
		return matcher.DefaultCatalog(), nil
	}
	catalog, usingExample, err := matcher.LoadCatalogFile(cfg.Matching.CatalogPath)
	if err != nil {
		return matcher.Catalog{}, err
	}
	if usingExample {
		utils.GetLogger().WarnContext(ctx, "catalog file missing, using example catalog",
			slog.String("path", cfg.Matching.CatalogPath),
		)
	}
	return catalog, nil
}

// LoadClassifier reads the prototype model and falls back to prototypes
// synthesised from the catalog when no model file exists or it is empty.
func LoadClassifier(ctx context.Context, cfg *config.Config, catalog matcher.Catalog) (*matcher.Classifier, error) {
	classifier, err := matcher.NewClassifierFromFile(cfg.Classifier.ModelPath, cfg.Classifier.K)
	switch {
	case err != nil:
		utils.GetLogger().WarnContext(ctx, "prototype model unavailable, building from catalog",
			slog.String("path", cfg.Classifier.ModelPath),
			slog.Any("error", xerrors.New(err)),
		)
	case classifier.Stats().PrototypeCount == 0:
		utils.GetLogger().WarnContext(ctx, "prototype model is empty, building from catalog",
			slog.String("path", cfg.Classifier.ModelPath),
		)
	default:
		return classifier, nil
	}
	return matcher.NewClassifier(matcher.PrototypesFromCatalog(catalog), cfg.Classifier.K, cfg.Classifier.ModelPath)
}
