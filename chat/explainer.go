package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mdobak/go-xerrors"

	"microplastic-id/matcher"
	"microplastic-id/utils"
)

// Explainer turns a match into human-readable sentences.
type Explainer interface {
	Explain(ctx context.Context, result matcher.MatchResult, peaks []float64) []string
}

// textGenerator is the part of GeminiClient the explainer needs.
type textGenerator interface {
	GenerateResponse(ctx context.Context, message string) (string, error)
}

// RuleExplainer produces the fixed tiered explanation.
type RuleExplainer struct{}

func (RuleExplainer) Explain(_ context.Context, result matcher.MatchResult, _ []float64) []string {
	return matcher.Explain(result)
}

// GeminiExplainer appends a generated narrative to the rule-based
// explanation. Generation failures are logged and the rule text is returned.
type GeminiExplainer struct {
	generator textGenerator
}

func NewGeminiExplainer(client *GeminiClient) *GeminiExplainer {
	return &GeminiExplainer{generator: client}
}

func (e *GeminiExplainer) Explain(ctx context.Context, result matcher.MatchResult, peaks []float64) []string {
	explanations := matcher.Explain(result)

	text, err := e.generator.GenerateResponse(ctx, BuildPrompt(result, peaks))
	if err != nil {
		utils.GetLogger().WarnContext(ctx, "generated explanation unavailable",
			slog.Any("error", xerrors.New(err)),
		)
		return explanations
	}
	return append(explanations, text)
}

// NewExplainer uses Gemini when GEMINI_API_KEY is configured and falls back
// to rule-based explanations otherwise.
func NewExplainer(ctx context.Context) Explainer {
	if utils.GetEnv("GEMINI_API_KEY") == "" {
		return RuleExplainer{}
	}
	client, err := NewGeminiClient(ctx)
	if err != nil {
		utils.GetLogger().WarnContext(ctx, "gemini explainer disabled", slog.Any("error", xerrors.New(err)))
		return RuleExplainer{}
	}
	return NewGeminiExplainer(client)
}

// BuildPrompt renders the analysis facts handed to the language model.
func BuildPrompt(result matcher.MatchResult, peaks []float64) string {
	formatted := make([]string, len(peaks))
	for i, p := range peaks {
		formatted[i] = strconv.FormatFloat(p, 'f', -1, 64) + " nm"
	}
	peakList := "none detected"
	if len(formatted) > 0 {
		peakList = strings.Join(formatted, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Matched material: %s\n", result.Type)
	fmt.Fprintf(&b, "Polymer: %s\n", result.Polymer)
	fmt.Fprintf(&b, "Colorant: %s\n", result.Colorant)
	fmt.Fprintf(&b, "Confidence: %.0f%%\n", result.Confidence*100)
	fmt.Fprintf(&b, "Spectral similarity: %.0f%%\n", result.Similarity*100)
	fmt.Fprintf(&b, "Detected peaks: %s\n", peakList)
	if len(result.MatchedPeaks) > 0 {
		matched := make([]string, len(result.MatchedPeaks))
		for i, p := range result.MatchedPeaks {
			matched[i] = strconv.FormatFloat(p, 'f', -1, 64)
		}
		fmt.Fprintf(&b, "Reference peaks matched: %s nm\n", strings.Join(matched, ", "))
	}
	return b.String()
}
