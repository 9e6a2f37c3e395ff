package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"microplastic-id/analysis"
)

var spectrumExtensions = map[string]bool{
	".csv": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

type analyzeResponse struct {
	Results   []analysis.BatchItem `json:"results"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
}

func main() {
	dir := flag.String("dir", "samples", "Directory containing CSV spectra or spectrum images (ignored if -file is set)")
	file := flag.String("file", "", "Single spectrum file to upload (overrides -dir)")
	endpoint := flag.String("url", "http://localhost:5000/api/analyze", "Analysis endpoint")
	batch := flag.Int("batch", 1, "Files per request")
	delay := flag.Duration("delay", 2*time.Second, "Delay between requests when using -dir")
	flag.Parse()

	files, err := resolveFiles(*file, *dir)
	if err != nil {
		log.Fatalf("failed to resolve files: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("no spectra found (file=%s dir=%s)", *file, *dir)
	}
	if *batch < 1 {
		*batch = 1
	}

	fmt.Printf("Uploading %d spectra to %s\n\n", len(files), *endpoint)
	for start := 0; start < len(files); start += *batch {
		end := min(start+*batch, len(files))
		if err := uploadBatch(files[start:end], *endpoint); err != nil {
			log.Printf("upload failed: %v\n", err)
		}

		if end < len(files) && *delay > 0 {
			time.Sleep(*delay)
		}
	}
}

func resolveFiles(single, dir string) ([]string, error) {
	if single != "" {
		return []string{single}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !spectrumExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

func uploadBatch(paths []string, endpoint string) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, path := range paths {
		fmt.Printf("→ %s\n", filepath.Base(path))
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read spectrum: %w", err)
		}
		part, err := writer.CreateFormFile("files", filepath.Base(path))
		if err != nil {
			return fmt.Errorf("build form: %w", err)
		}
		if _, err := part.Write(raw); err != nil {
			return fmt.Errorf("build form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("build form: %w", err)
	}

	resp, err := http.Post(endpoint, writer.FormDataContentType(), &body)
	if err != nil {
		return fmt.Errorf("post analysis request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(payload))
	}

	var summary analyzeResponse
	if err := json.Unmarshal(payload, &summary); err != nil {
		return fmt.Errorf("decode analysis response: %w", err)
	}

	for _, item := range summary.Results {
		if item.Result == nil {
			fmt.Printf("   %s: %s (%s)\n", item.Source, item.Error, item.Code)
			continue
		}
		r := item.Result
		fmt.Printf("   %s: %s / %s confidence=%.1f%% peaks=%v\n",
			item.Source, r.Prediction.Match, r.Prediction.Polymer, r.CalibratedConfidence*100, r.ObservedPeaks)
		if r.ID != "" {
			fmt.Printf("   recorded as %s\n", r.ID)
		}
	}
	return nil
}
