package db

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"microplastic-id/models"
	"microplastic-id/utils"
)

// JSONFileStore keeps the whole history in one JSON array. It suits
// single-process deployments without a database.
type JSONFileStore struct {
	path string
	mu   sync.RWMutex
}

func NewJSONFileStore(path string) (*JSONFileStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := utils.CreateFolder(dir); err != nil {
			return nil, fmt.Errorf("error creating directory: %w", err)
		}
	}
	return &JSONFileStore{path: path}, nil
}

// load reads all records; the caller holds the lock.
func (s *JSONFileStore) load() ([]models.AnalysisRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []models.AnalysisRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading history file: %w", err)
	}
	if len(data) == 0 {
		return []models.AnalysisRecord{}, nil
	}

	var records []models.AnalysisRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("error unmarshaling history: %w", err)
	}
	return records, nil
}

func (s *JSONFileStore) StoreAnalysis(ctx context.Context, record *models.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	records, err := s.load()
	if err != nil {
		return err
	}

	prepareRecord(record)
	for _, existing := range records {
		if existing.ID == record.ID {
			return fmt.Errorf("error storing analysis: duplicate id %s", record.ID)
		}
	}
	records = append(records, *record)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling history: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("error writing history file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("error replacing history file: %w", err)
	}
	return nil
}

// ListAnalyses returns the newest records first. Records with equal
// timestamps keep reverse insertion order.
func (s *JSONFileStore) ListAnalyses(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	limit = normaliseLimit(limit)
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *JSONFileStore) Close() error {
	return nil
}
