package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"microplastic-id/models"
	"microplastic-id/utils"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// HistoryStore persists analysis results.
type HistoryStore interface {
	StoreAnalysis(ctx context.Context, record *models.AnalysisRecord) error
	ListAnalyses(ctx context.Context, limit int) ([]models.AnalysisRecord, error)
	Close() error
}

// NewHistoryStore picks a backend from DB_TYPE: "sqlite" (default), "json"
// or "mongo". SQLite and JSON read DB_PATH; Mongo reads MONGO_URI and MONGO_DB.
func NewHistoryStore(ctx context.Context) (HistoryStore, error) {
	dbType := strings.ToLower(utils.GetEnv("DB_TYPE", "sqlite"))

	switch dbType {
	case "sqlite":
		return NewSQLiteClient(utils.GetEnv("DB_PATH", "data/history.db"))
	case "json", "file":
		return NewJSONFileStore(utils.GetEnv("DB_PATH", "data/history.json"))
	case "mongo", "mongodb":
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return NewMongoClient(ctx,
			utils.GetEnv("MONGO_URI", "mongodb://localhost:27017"),
			utils.GetEnv("MONGO_DB", "microplastics"),
		)
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE: %s", dbType)
	}
}

func prepareRecord(record *models.AnalysisRecord) {
	if record.ID == "" {
		record.ID = utils.GenerateUniqueID()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	record.Timestamp = record.Timestamp.UTC()
	if record.Peaks == nil {
		record.Peaks = []float64{}
	}
}

func normaliseLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}
