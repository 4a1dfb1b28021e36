package services

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/Ansab-Sultan/DocQuery-AI/internal/logger"
	"github.com/Ansab-Sultan/DocQuery-AI/models"
)

var pdfMagic = []byte{0x25, 0x50, 0x44, 0x46} // %PDF

// PDFExtractor converts uploaded PDF documents into ordered text segments.
// Extraction goes through a scratch file on disk; the file is reclaimed on
// every exit path, including parser panics.
type PDFExtractor struct {
	scratchDir string
}

// NewPDFExtractor creates an extractor using the given scratch directory
// (created on demand; empty means the system temp dir).
func NewPDFExtractor(scratchDir string) *PDFExtractor {
	return &PDFExtractor{scratchDir: scratchDir}
}

// ExtractAll extracts text from every document, ordered by document then
// page. The batch is all-or-nothing: a document that cannot be read aborts
// the whole call without partial results.
func (e *PDFExtractor) ExtractAll(docs []models.Document) ([]models.TextSegment, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyDocumentSet
	}

	var segments []models.TextSegment
	for _, doc := range docs {
		if !bytes.HasPrefix(doc.Data, pdfMagic) {
			return nil, fmt.Errorf("%w: %s is not a PDF document", ErrUnsupportedFormat, doc.Filename)
		}

		segs, err := e.extractOne(doc)
		if err != nil {
			return nil, fmt.Errorf("extracting %s: %w", doc.Filename, err)
		}
		segments = append(segments, segs...)
	}

	if len(segments) == 0 {
		return nil, ErrExtractionFailed
	}
	return segments, nil
}

// extractOne writes the document to a scratch file and reads it page by page.
func (e *PDFExtractor) extractOne(doc models.Document) ([]models.TextSegment, error) {
	dir := e.scratchDir
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create scratch dir: %w", err)
		}
	}

	tempFile, err := os.CreateTemp(dir, "docquery-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	if _, err := tempFile.Write(doc.Data); err != nil {
		tempFile.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	return readPDFPages(tempPath, doc.Filename)
}

// readPDFPages extracts per-page text. The pdf library can panic on damaged
// cross-reference tables, so the whole read is wrapped in a recover.
func readPDFPages(path, sourceFile string) (segments []models.TextSegment, err error) {
	defer func() {
		if r := recover(); r != nil {
			segments = nil
			err = fmt.Errorf("pdf parser failure: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("failed to extract page text", "file", filepath.Base(sourceFile), "page", i, "error", err)
			continue
		}

		if strings.TrimSpace(text) == "" {
			continue
		}

		segments = append(segments, models.TextSegment{
			Content:    text,
			SourceFile: sourceFile,
			Page:       i,
		})
	}

	return segments, nil
}
