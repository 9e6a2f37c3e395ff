package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"microplastic-id/analysis"
	"microplastic-id/chat"
	"microplastic-id/config"
	"microplastic-id/spectral"
	"microplastic-id/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/mdobak/go-xerrors"
)

type spectrumPayload struct {
	Source string         `json:"source"`
	Curve  spectral.Curve `json:"curve"`
}

// streamEntry is the compact per-frame summary kept in a stream's history.
type streamEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Match      string    `json:"match"`
	Confidence float64   `json:"confidence"`
	Peaks      []float64 `json:"peaks"`
}

type streamFrame struct {
	Result  *analysis.Result `json:"result"`
	History []streamEntry    `json:"history"`
}

type liveStream struct {
	cancel  context.CancelFunc
	history []streamEntry
}

type socketController struct {
	service   *analysis.Service
	stream    config.StreamConfig
	assistant *chat.GeminiClient

	mu      sync.Mutex
	streams map[string]*liveStream
}

func newSocketController(service *analysis.Service, stream config.StreamConfig, assistant *chat.GeminiClient) *socketController {
	return &socketController{
		service:   service,
		stream:    stream,
		assistant: assistant,
		streams:   make(map[string]*liveStream),
	}
}

func (c *socketController) register(server *socketio.Server) {
	server.OnConnect("/", func(socket socketio.Conn) error {
		socket.SetContext("")
		log.Printf("CONNECTED: %s, remote addr: %s\n", socket.ID(), socket.RemoteAddr())
		c.emitModelInfo(socket)
		return nil
	})

	server.OnEvent("/", "requestModelInfo", func(socket socketio.Conn) {
		c.emitModelInfo(socket)
	})

	server.OnEvent("/", "analyzeSpectrum", func(socket socketio.Conn, msg string) {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("panic in analyzeSpectrum for socket %s: %v\n", socket.ID(), r)
					socket.Emit("analysisError", map[string]string{"message": "internal server error during processing"})
				}
			}()
			c.handleAnalyzeSpectrum(socket, msg)
		}()
	})

	server.OnEvent("/", "startStream", func(socket socketio.Conn) {
		c.startStream(socket)
	})

	server.OnEvent("/", "stopStream", func(socket socketio.Conn) {
		c.stopStream(socket.ID())
		socket.Emit("streamStopped")
	})

	server.OnEvent("/", "askAssistant", func(socket socketio.Conn, msg string) {
		go c.handleAskAssistant(socket, msg)
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Println("meet error:", e)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		c.stopStream(s.ID())
		log.Printf("Socket disconnected - ID: %s, Reason: %s\n", s.ID(), reason)
	})
}

func (c *socketController) emitModelInfo(socket socketio.Conn) {
	socket.Emit("modelInfo", c.service.ModelInfo())
}

func (c *socketController) handleAnalyzeSpectrum(socket socketio.Conn, msg string) {
	logger := utils.GetLogger()
	ctx := context.Background()

	if msg == "" {
		socket.Emit("analysisError", map[string]string{"message": "no spectrum received"})
		return
	}

	var payload spectrumPayload
	if err := json.Unmarshal([]byte(msg), &payload); err != nil {
		logger.ErrorContext(ctx, "failed to parse spectrum payload", slog.Any("error", xerrors.New(err)))
		socket.Emit("analysisError", map[string]string{"message": "invalid spectrum payload"})
		return
	}
	if payload.Source == "" {
		payload.Source = "socket:" + socket.ID()
	}

	result, err := c.service.AnalyzeCurve(ctx, analysis.CurveInput{
		Source:  payload.Source,
		Kind:    "socket",
		Curve:   payload.Curve,
		Persist: true,
	})
	if err != nil {
		logger.ErrorContext(ctx, "socket analysis failed",
			slog.String("socketID", socket.ID()),
			slog.Any("error", xerrors.New(err)),
		)
		socket.Emit("analysisError", map[string]string{"message": err.Error()})
		return
	}

	logger.InfoContext(ctx, "socket analysis complete",
		slog.String("socketID", socket.ID()),
		slog.String("match", result.Prediction.Match),
		slog.Float64("confidence", result.CalibratedConfidence),
	)
	socket.Emit("prediction", result)
}

// startStream emits an analysed synthetic spectrum every stream interval
// until the client stops it or disconnects. A second start is ignored.
func (c *socketController) startStream(socket socketio.Conn) {
	c.mu.Lock()
	if _, running := c.streams[socket.ID()]; running {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	stream := &liveStream{cancel: cancel}
	c.streams[socket.ID()] = stream
	c.mu.Unlock()

	socket.Emit("streamStarted", map[string]interface{}{"intervalMs": c.stream.Interval.Milliseconds()})
	go c.runStream(ctx, socket, stream)
}

func (c *socketController) runStream(ctx context.Context, socket socketio.Conn, stream *liveStream) {
	logger := utils.GetLogger()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(c.stream.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		result, err := c.service.AnalyzeCurve(ctx, analysis.CurveInput{
			Source: "live-stream",
			Kind:   "stream",
			Curve:  spectral.GenerateMock(rng),
		})
		if err != nil {
			logger.ErrorContext(ctx, "stream analysis failed",
				slog.String("socketID", socket.ID()),
				slog.Any("error", xerrors.New(err)),
			)
			continue
		}

		socket.Emit("streamUpdate", streamFrame{Result: result, History: c.appendHistory(stream, result)})
	}
}

func (c *socketController) appendHistory(stream *liveStream, result *analysis.Result) []streamEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	stream.history = append(stream.history, streamEntry{
		Timestamp:  time.Now().UTC(),
		Match:      result.Prediction.Match,
		Confidence: result.CalibratedConfidence,
		Peaks:      result.ObservedPeaks,
	})
	if overflow := len(stream.history) - c.stream.History; overflow > 0 {
		stream.history = append([]streamEntry(nil), stream.history[overflow:]...)
	}
	return append([]streamEntry(nil), stream.history...)
}

func (c *socketController) stopStream(socketID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stream, ok := c.streams[socketID]; ok {
		stream.cancel()
		delete(c.streams, socketID)
	}
}

func (c *socketController) handleAskAssistant(socket socketio.Conn, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	question := strings.TrimSpace(msg)
	if question == "" {
		socket.Emit("assistantError", map[string]string{"message": "empty question"})
		return
	}
	if c.assistant == nil {
		socket.Emit("assistantError", map[string]string{"message": "assistant is not configured"})
		return
	}

	err := c.assistant.GenerateResponseStream(ctx, question, func(chunk string) error {
		socket.Emit("assistantChunk", chunk)
		return nil
	})
	if err != nil {
		utils.GetLogger().ErrorContext(ctx, "assistant stream failed",
			slog.String("socketID", socket.ID()),
			slog.Any("error", xerrors.New(err)),
		)
		socket.Emit("assistantError", map[string]string{"message": "assistant unavailable"})
		return
	}
	socket.Emit("assistantDone")
}
