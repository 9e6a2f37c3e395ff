package models

import (
	"time"
)

// AnalysisRecord is a persisted identification result.
type AnalysisRecord struct {
	ID                   string                 `json:"id" bson:"_id"`
	Timestamp            time.Time              `json:"timestamp" bson:"timestamp"`
	Source               string                 `json:"source" bson:"source"`
	Kind                 string                 `json:"kind" bson:"kind"`
	Match                string                 `json:"match" bson:"match"`
	Polymer              string                 `json:"polymer,omitempty" bson:"polymer,omitempty"`
	Colorant             string                 `json:"colorant,omitempty" bson:"colorant,omitempty"`
	Color                string                 `json:"color,omitempty" bson:"color,omitempty"`
	Confidence           float64                `json:"confidence" bson:"confidence"`
	Similarity           float64                `json:"similarity" bson:"similarity"`
	ExtractionConfidence float64                `json:"extractionConfidence" bson:"extraction_confidence"`
	Peaks                []float64              `json:"peaks" bson:"peaks"`
	Explanation          []string               `json:"explanation,omitempty" bson:"explanation,omitempty"`
	Metadata             map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
}
