package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microplastic-id/matcher"
)

type stubGenerator struct {
	text   string
	err    error
	prompt string
}

func (s *stubGenerator) GenerateResponse(_ context.Context, message string) (string, error) {
	s.prompt = message
	return s.text, s.err
}

var petResult = matcher.MatchResult{
	Type:         "PET Bottle Fragment",
	Polymer:      "Polyethylene Terephthalate",
	Colorant:     "Cobalt Blue",
	Confidence:   0.93,
	Similarity:   0.85,
	MatchedPeaks: []float64{500, 740},
}

func TestRuleExplainerMatchesMatcher(t *testing.T) {
	t.Parallel()

	got := RuleExplainer{}.Explain(context.Background(), petResult, nil)
	assert.Equal(t, matcher.Explain(petResult), got)
}

func TestGeminiExplainerAppendsNarrative(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{text: "Two strong visible bands consistent with cobalt-tinted PET."}
	explainer := &GeminiExplainer{generator: gen}

	got := explainer.Explain(context.Background(), petResult, []float64{740, 500.5})
	require.Len(t, got, 4)
	assert.Equal(t, gen.text, got[3])
	assert.Contains(t, gen.prompt, "Detected peaks: 740 nm, 500.5 nm")
	assert.Contains(t, gen.prompt, "Confidence: 93%")
}

func TestGeminiExplainerFallsBackOnError(t *testing.T) {
	t.Parallel()

	explainer := &GeminiExplainer{generator: &stubGenerator{err: errors.New("quota exceeded")}}
	got := explainer.Explain(context.Background(), petResult, nil)
	assert.Equal(t, matcher.Explain(petResult), got)
}

func TestBuildPromptWithoutPeaks(t *testing.T) {
	t.Parallel()

	prompt := BuildPrompt(matcher.MatchResult{Type: "Unknown"}, nil)
	assert.Contains(t, prompt, "Detected peaks: none detected")
	assert.NotContains(t, prompt, "Reference peaks matched")
}

func TestNewExplainerWithoutKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	assert.IsType(t, RuleExplainer{}, NewExplainer(context.Background()))
}
