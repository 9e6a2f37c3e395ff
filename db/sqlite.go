package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"microplastic-id/models"
	"microplastic-id/utils"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

type SQLiteClient struct {
	db *sql.DB
}

func NewSQLiteClient(dataSourceName string) (*SQLiteClient, error) {
	// Extract the file path before query parameters
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" {
		if err := utils.CreateFolder(dbDir); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	// Add busy timeout param to DSN (milliseconds)
	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %w", err)
	}
	// one writer at a time; batch analysis stores concurrently
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	return &SQLiteClient{db: db}, nil
}

func createTables(db *sql.DB) error {
	createAnalysesTable := `
    CREATE TABLE IF NOT EXISTS analyses (
        id TEXT PRIMARY KEY,
        timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        source TEXT NOT NULL,
        kind TEXT NOT NULL,
        match TEXT NOT NULL,
        polymer TEXT,
        colorant TEXT,
        color TEXT,
        confidence REAL NOT NULL DEFAULT 0,
        similarity REAL NOT NULL DEFAULT 0,
        extraction_confidence REAL NOT NULL DEFAULT 0,
        peaks TEXT NOT NULL,
        explanation TEXT,
        metadata TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_analyses_timestamp ON analyses(timestamp);
    `

	if _, err := db.Exec(createAnalysesTable); err != nil {
		return fmt.Errorf("error creating analyses table: %w", err)
	}
	return nil
}

func (db *SQLiteClient) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// StoreAnalysis inserts a record. Empty IDs and zero timestamps are filled in.
func (db *SQLiteClient) StoreAnalysis(ctx context.Context, record *models.AnalysisRecord) error {
	prepareRecord(record)

	peaksJSON, err := json.Marshal(record.Peaks)
	if err != nil {
		return fmt.Errorf("error marshaling peaks: %w", err)
	}
	explanationJSON, err := marshalOptional(record.Explanation, len(record.Explanation) > 0)
	if err != nil {
		return fmt.Errorf("error marshaling explanation: %w", err)
	}
	metadataJSON, err := marshalOptional(record.Metadata, record.Metadata != nil)
	if err != nil {
		return fmt.Errorf("error marshaling metadata: %w", err)
	}

	_, err = db.db.ExecContext(ctx, `
		INSERT INTO analyses (
			id, timestamp, source, kind, match, polymer, colorant, color,
			confidence, similarity, extraction_confidence, peaks, explanation, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Timestamp,
		record.Source,
		record.Kind,
		record.Match,
		record.Polymer,
		record.Colorant,
		record.Color,
		record.Confidence,
		record.Similarity,
		record.ExtractionConfidence,
		string(peaksJSON),
		explanationJSON,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("error storing analysis: %w", err)
	}
	return nil
}

func marshalOptional(value interface{}, present bool) (*string, error) {
	if !present {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &s, nil
}

// ListAnalyses returns the newest records first.
func (db *SQLiteClient) ListAnalyses(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, timestamp, source, kind, match, polymer, colorant, color,
		       confidence, similarity, extraction_confidence, peaks, explanation, metadata
		FROM analyses
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`, normaliseLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("error querying analyses: %w", err)
	}
	defer rows.Close()

	records := []models.AnalysisRecord{}
	for rows.Next() {
		var r models.AnalysisRecord
		var polymer, colorant, color sql.NullString
		var peaksJSON string
		var explanationJSON, metadataJSON *string

		err := rows.Scan(
			&r.ID,
			&r.Timestamp,
			&r.Source,
			&r.Kind,
			&r.Match,
			&polymer,
			&colorant,
			&color,
			&r.Confidence,
			&r.Similarity,
			&r.ExtractionConfidence,
			&peaksJSON,
			&explanationJSON,
			&metadataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning analysis: %w", err)
		}
		r.Polymer, r.Colorant, r.Color = polymer.String, colorant.String, color.String

		if err := json.Unmarshal([]byte(peaksJSON), &r.Peaks); err != nil {
			return nil, fmt.Errorf("error unmarshaling peaks: %w", err)
		}
		if explanationJSON != nil {
			if err := json.Unmarshal([]byte(*explanationJSON), &r.Explanation); err != nil {
				return nil, fmt.Errorf("error unmarshaling explanation: %w", err)
			}
		}
		if metadataJSON != nil {
			if err := json.Unmarshal([]byte(*metadataJSON), &r.Metadata); err != nil {
				return nil, fmt.Errorf("error unmarshaling metadata: %w", err)
			}
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analyses: %w", err)
	}
	return records, nil
}

// CountAnalyses reports how many records are stored.
func (db *SQLiteClient) CountAnalyses(ctx context.Context) (int, error) {
	var count int
	if err := db.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM analyses").Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting analyses: %w", err)
	}
	return count, nil
}
