package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microplastic-id/analysis"
	"microplastic-id/config"
	"microplastic-id/matcher"
)

func frameResult(match string, confidence float64) *analysis.Result {
	return &analysis.Result{
		Prediction:           matcher.MatchResult{Match: match},
		CalibratedConfidence: confidence,
		ObservedPeaks:        []float64{500},
	}
}

func TestAppendHistoryKeepsNewestEntries(t *testing.T) {
	t.Parallel()

	controller := newSocketController(nil, config.StreamConfig{Interval: time.Second, History: 3}, nil)
	stream := &liveStream{}

	var history []streamEntry
	for i := 0; i < 5; i++ {
		history = controller.appendHistory(stream, frameResult(fmt.Sprintf("frame-%d", i), float64(i)/10))
		assert.Len(t, history, min(i+1, 3))
	}

	require.Len(t, history, 3)
	assert.Equal(t, "frame-2", history[0].Match)
	assert.Equal(t, "frame-4", history[2].Match)
	assert.InDelta(t, 0.4, history[2].Confidence, 1e-12)
	assert.Equal(t, []float64{500}, history[2].Peaks)

	history[0].Match = "changed"
	assert.Equal(t, "frame-2", stream.history[0].Match)
}

func TestStopStreamCancelsAndForgets(t *testing.T) {
	t.Parallel()

	controller := newSocketController(nil, config.Default().Stream, nil)
	ctx, cancel := context.WithCancel(context.Background())
	controller.streams["socket-1"] = &liveStream{cancel: cancel}

	controller.stopStream("unknown")
	assert.NoError(t, ctx.Err())

	controller.stopStream("socket-1")
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Empty(t, controller.streams)
}
