package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"microplastic-id/analysis"
	"microplastic-id/chat"
	"microplastic-id/config"
	"microplastic-id/db"
	"microplastic-id/ingest"
	"microplastic-id/matcher"
	"microplastic-id/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/mdobak/go-xerrors"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type analyzeResponse struct {
	Results   []analysis.BatchItem `json:"results"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
}

type libraryResponse struct {
	Samples []libraryEntry     `json:"samples"`
	Model   analysis.ModelInfo `json:"model"`
}

type libraryEntry struct {
	Name  string    `json:"name"`
	Type  string    `json:"type"`
	Peaks []float64 `json:"peaks"`
}

const multipartMemory = 32 << 20

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Message: message})
}

// writeAnalysisError maps ingestion failures to 400 with their code and
// everything else to 500.
func writeAnalysisError(w http.ResponseWriter, err error) {
	if code := ingest.ErrorCode(err); code != "" {
		writeJSON(w, http.StatusBadRequest, apiError{Message: err.Error(), Code: code})
		return
	}
	writeJSONError(w, http.StatusInternalServerError, "analysis failed")
}

// allowCORS sets the CORS headers and reports whether the request still
// needs handling. Preflight requests are answered here.
func allowCORS(w http.ResponseWriter, r *http.Request, method string) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Allow-Methods", method+", OPTIONS")
	w.Header().Set("Access-Control-Allow-Credentials", "true")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return false
	}
	if r.Method != method {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func readUploads(files []*multipart.FileHeader, maxBytes int64) ([]analysis.Upload, error) {
	uploads := make([]analysis.Upload, 0, len(files))
	for _, fileHeader := range files {
		src, err := fileHeader.Open()
		if err != nil {
			return nil, fmt.Errorf("unable to open %s: %w", fileHeader.Filename, err)
		}

		// one byte past the limit lets ingestion report FILE_TOO_LARGE per file
		var reader io.Reader = src
		if maxBytes > 0 {
			reader = io.LimitReader(src, maxBytes+1)
		}
		data, err := io.ReadAll(reader)
		src.Close()
		if err != nil {
			return nil, fmt.Errorf("unable to read %s: %w", fileHeader.Filename, err)
		}

		uploads = append(uploads, analysis.Upload{
			Filename:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return uploads, nil
}

func formFiles(r *http.Request, keys ...string) []*multipart.FileHeader {
	if r.MultipartForm == nil || r.MultipartForm.File == nil {
		return nil
	}
	var files []*multipart.FileHeader
	for _, key := range keys {
		files = append(files, r.MultipartForm.File[key]...)
	}
	return files
}

func newAnalyzeHandler(service *analysis.Service, cfg *config.Config) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !allowCORS(w, r, http.MethodPost) {
			return
		}

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			logger.ErrorContext(ctx, "failed to parse multipart form", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusBadRequest, "invalid upload payload")
			return
		}

		files := formFiles(r, "files", "file")
		if len(files) == 0 {
			writeJSONError(w, http.StatusBadRequest, "no spectra provided")
			return
		}

		uploads, err := readUploads(files, cfg.Ingest.MaxUploadBytes)
		if err != nil {
			logger.ErrorContext(ctx, "failed to read uploads", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusBadRequest, "unable to read uploaded files")
			return
		}

		started := time.Now()
		items, err := service.AnalyzeBatch(ctx, uploads)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		response := analyzeResponse{Results: items}
		for _, item := range items {
			if item.Result != nil {
				response.Succeeded++
			} else {
				response.Failed++
			}
		}

		logger.InfoContext(ctx, "analyzed uploads",
			slog.Int("files", len(items)),
			slog.Int("succeeded", response.Succeeded),
			slog.Int("failed", response.Failed),
			slog.Float64("latencyMs", float64(time.Since(started).Microseconds())/1000),
		)

		writeJSON(w, http.StatusOK, response)
	}
}

func newLibraryHandler(service *analysis.Service, cfg *config.Config) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !allowCORS(w, r, http.MethodPost) {
			return
		}

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			logger.ErrorContext(ctx, "failed to parse multipart form", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusBadRequest, "invalid upload payload")
			return
		}

		files := formFiles(r, "file", "library")
		if len(files) == 0 {
			writeJSONError(w, http.StatusBadRequest, "no library file provided")
			return
		}
		uploads, err := readUploads(files[:1], cfg.Ingest.MaxUploadBytes)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "unable to read library file")
			return
		}

		samples, err := service.LoadLibrary(ctx, string(uploads[0].Data), uploads[0].Filename)
		if err != nil {
			logger.ErrorContext(ctx, "failed to load library", slog.Any("error", xerrors.New(err)))
			writeAnalysisError(w, err)
			return
		}

		entries := make([]libraryEntry, len(samples))
		for i, sample := range samples {
			entries[i] = libraryEntry{Name: sample.Name, Type: sample.Type, Peaks: sample.Peaks}
		}
		writeJSON(w, http.StatusOK, libraryResponse{Samples: entries, Model: service.ModelInfo()})
	}
}

func newCompareHandler(service *analysis.Service, cfg *config.Config) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !allowCORS(w, r, http.MethodPost) {
			return
		}

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid upload payload")
			return
		}

		files := formFiles(r, "file", "files")
		if len(files) == 0 {
			writeJSONError(w, http.StatusBadRequest, "no spectrum provided")
			return
		}
		uploads, err := readUploads(files[:1], cfg.Ingest.MaxUploadBytes)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "unable to read uploaded file")
			return
		}

		upload := uploads[0]
		match, err := service.CompareAgainstLibrary(ctx, upload.Filename, upload.ContentType, bytes.NewReader(upload.Data))
		if errors.Is(err, analysis.ErrNoLibrary) {
			writeJSONError(w, http.StatusConflict, "upload a reference library first")
			return
		}
		if err != nil {
			logger.ErrorContext(ctx, "library comparison failed", slog.Any("error", xerrors.New(err)))
			writeAnalysisError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, match)
	}
}

func newCatalogHandler(service *analysis.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowCORS(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, service.Catalog().Materials())
	}
}

func newModelHandler(service *analysis.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowCORS(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, service.ModelInfo())
	}
}

func newHistoryHandler(service *analysis.Service) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !allowCORS(w, r, http.MethodGet) {
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "limit must be an integer")
				return
			}
			limit = parsed
		}

		records, err := service.History(ctx, limit)
		if errors.Is(err, analysis.ErrHistoryClosed) {
			writeJSONError(w, http.StatusServiceUnavailable, "history is disabled")
			return
		}
		if err != nil {
			logger.ErrorContext(ctx, "failed to load history", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "failed to load history")
			return
		}

		writeJSON(w, http.StatusOK, records)
	}
}

func newSampleCSVHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowCORS(w, r, http.MethodGet) {
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="sample_spectrum.csv"`)
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, ingest.SampleCSV())
	}
}

func newMux(service *analysis.Service, cfg *config.Config, socketServer http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	if socketServer != nil {
		mux.Handle("/socket.io/", socketServer)
	}
	mux.HandleFunc("/api/analyze", newAnalyzeHandler(service, cfg))
	mux.HandleFunc("/api/library", newLibraryHandler(service, cfg))
	mux.HandleFunc("/api/compare", newCompareHandler(service, cfg))
	mux.HandleFunc("/api/catalog", newCatalogHandler(service))
	mux.HandleFunc("/api/model", newModelHandler(service))
	mux.HandleFunc("/api/history", newHistoryHandler(service))
	mux.HandleFunc("/api/sample.csv", newSampleCSVHandler())
	mux.Handle("/", http.FileServer(http.Dir("static")))
	return mux
}

func serve(protocol, port, configPath string) {
	protocol = strings.ToLower(protocol)
	ctx := context.Background()
	logger := utils.GetLogger()

	var allowOriginFunc = func(r *http.Request) bool {
		return true
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if cfg.LogLevel != "" {
		utils.SetLogLevel(cfg.LogLevel)
	}

	catalog, err := analysis.LoadCatalog(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to load catalog: %v", err)
	}

	classifier, err := analysis.LoadClassifier(ctx, cfg, catalog)
	if err != nil {
		log.Fatalf("failed to build classifier: %v", err)
	}

	store, err := db.NewHistoryStore(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "history store unavailable, results will not be persisted", slog.Any("error", xerrors.New(err)))
		store = nil
	} else {
		defer store.Close()
	}

	options := analysis.Options{
		Config:     cfg,
		Catalog:    catalog,
		Classifier: classifier,
		Explainer:  chat.NewExplainer(ctx),
		Store:      store,
		Noise:      matcher.SharedNoise{},
	}
	service, err := analysis.NewService(options)
	if err != nil {
		log.Fatalf("failed to create analysis service: %v", err)
	}

	info := service.ModelInfo()
	log.Printf("Loaded %d reference materials and %d prototypes (k=%d)\n",
		info.CatalogSize, info.Classifier.PrototypeCount, info.Classifier.K)

	var assistant *chat.GeminiClient
	if utils.GetEnv("GEMINI_API_KEY") != "" {
		if assistant, err = chat.NewGeminiClient(ctx); err != nil {
			logger.WarnContext(ctx, "assistant disabled", slog.Any("error", xerrors.New(err)))
			assistant = nil
		}
	}

	controller := newSocketController(service, cfg.Stream, assistant)

	server := socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: allowOriginFunc,
			},
			&polling.Transport{
				CheckOrigin: allowOriginFunc,
			},
		},
	})
	controller.register(server)

	go func() {
		if err := server.Serve(); err != nil {
			log.Fatalf("socketio listen error: %s\n", err)
		}
	}()
	defer server.Close()

	serveHTTP(server, protocol == "https", port, newMux(service, cfg, server))
}

func serveHTTP(socketServer *socketio.Server, serveHTTPS bool, port string, handler http.Handler) {
	if handler == nil {
		handler = socketServer
	}
	if serveHTTPS {
		httpsAddr := ":" + port
		httpsServer := &http.Server{
			Addr: httpsAddr,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			Handler: handler,
		}

		certKey := utils.GetEnv("CERT_KEY")
		certFile := utils.GetEnv("CERT_FILE")
		if certKey == "" || certFile == "" {
			log.Fatal("Missing cert: set CERT_KEY and CERT_FILE")
		}

		log.Printf("Starting HTTPS server on %s\n", httpsAddr)
		if err := httpsServer.ListenAndServeTLS(certFile, certKey); err != nil {
			log.Fatalf("HTTPS server ListenAndServeTLS: %v", err)
		}
	}

	log.Printf("Starting HTTP server on port %v", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("HTTP server ListenAndServe: %v", err)
	}
}
