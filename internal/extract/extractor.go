// Package extract normalizes heterogeneous knowledge sources (files, URLs,
// inline text) into plain text ready for segmentation.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloo-solutions/leadline/internal/domain"
	"github.com/ledongthuc/pdf"
)

// FetchTimeout bounds outbound URL fetches during ingestion.
const FetchTimeout = 30 * time.Second

// maxFetchBytes caps how much of a fetched page is read.
const maxFetchBytes = 10 << 20

// Extractor converts source documents and webpages to normalized plain text.
type Extractor struct {
	httpClient *http.Client
}

// NewExtractor creates an Extractor with a fetch-bounded HTTP client.
func NewExtractor() *Extractor {
	return NewExtractorWithClient(&http.Client{Timeout: FetchTimeout})
}

// NewExtractorWithClient creates an Extractor using the given HTTP client.
func NewExtractorWithClient(client *http.Client) *Extractor {
	return &Extractor{httpClient: client}
}

// FromFile extracts plain text from a local file, dispatching on extension.
func (e *Extractor) FromFile(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", domain.ErrFileNotFound, path)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	log.Printf("extract: file %s (ext=%s)", path, ext)

	switch ext {
	case "pdf":
		return e.fromPDF(path)
	case "txt", "md":
		return e.fromText(path)
	case "doc", "docx":
		return e.fromDocx(path)
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}
}

// FromURL fetches a webpage and extracts its readable text.
func (e *Extractor) FromURL(ctx context.Context, url string) (string, error) {
	log.Printf("extract: url %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s returned %d", domain.ErrFetchFailed, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}

	return FromHTML(string(body))
}

func (e *Extractor) fromPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("parse pdf %s: %w", path, err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text layer %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text layer %s: %w", path, err)
	}

	return CleanText(buf.String()), nil
}

func (e *Extractor) fromText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return CleanText(string(content)), nil
}

// fromDocx pulls the main document part out of the docx archive and strips
// its markup. Paragraph ends map to newlines so segmentation still sees
// paragraph boundaries.
func (e *Extractor) fromDocx(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx %s: %w", path, err)
	}
	defer archive.Close()

	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open docx part %s: %w", path, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read docx part %s: %w", path, err)
		}
		text := paragraphEndRe.ReplaceAllString(string(raw), "\n")
		text = xmlTagRe.ReplaceAllString(text, "")
		return CleanText(text), nil
	}

	return "", fmt.Errorf("%w: docx has no document part", domain.ErrNoContent)
}
