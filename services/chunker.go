package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Ansab-Sultan/DocQuery-AI/models"
)

// RecursiveChunker splits segment text into overlapping windows of at most
// maxChunkSize characters. Cuts prefer structural boundaries (paragraph,
// then sentence, then word) within the tail of the window before falling
// back to a hard character cut, so the window always advances by at least
// maxChunkSize-overlap characters.
type RecursiveChunker struct {
	maxChunkSize  int
	overlap       int
	sentenceRegex *regexp.Regexp
}

func NewRecursiveChunker(maxChunkSize, overlap int) (*RecursiveChunker, error) {
	if maxChunkSize <= 0 {
		return nil, fmt.Errorf("maxChunkSize must be positive, got %d", maxChunkSize)
	}
	if overlap < 0 || overlap >= maxChunkSize {
		return nil, fmt.Errorf("overlap must be in [0, maxChunkSize), got %d", overlap)
	}
	return &RecursiveChunker{
		maxChunkSize:  maxChunkSize,
		overlap:       overlap,
		sentenceRegex: regexp.MustCompile(`[.!?][\s]`),
	}, nil
}

// ChunkSegments chunks each segment independently so chunks never span
// document or page boundaries and keep their source metadata. Order is
// assigned globally across the whole batch.
func (rc *RecursiveChunker) ChunkSegments(segments []models.TextSegment) []models.ContentChunk {
	var chunks []models.ContentChunk
	for _, seg := range segments {
		for _, text := range rc.split(seg.Content) {
			chunks = append(chunks, models.ContentChunk{
				ChunkID:    uuid.NewString(),
				Text:       text,
				Order:      len(chunks),
				SourceFile: seg.SourceFile,
				Page:       seg.Page,
				CharCount:  len(text),
			})
		}
	}
	return chunks
}

// split produces the window texts for one segment.
func (rc *RecursiveChunker) split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= rc.maxChunkSize {
		// Short segment: single chunk, no internal overlap.
		return []string{text}
	}

	step := rc.maxChunkSize - rc.overlap
	var out []string

	start := 0
	for {
		end := start + rc.maxChunkSize
		if end >= len(text) {
			out = append(out, text[start:])
			return out
		}

		cut := rc.findCut(text, start, end)
		out = append(out, text[start:cut])

		// Resume one overlap before the cut, clamped so every iteration
		// advances by at least step characters, then nudged forward onto a
		// rune boundary.
		next := cut - rc.overlap
		if next < start+step {
			next = start + step
		}
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}
}

// findCut picks the cut position for the window text[start:end). Boundaries
// are only considered in the final overlap-sized region of the window so a
// structural cut never shortens the chunk by more than the overlap.
func (rc *RecursiveChunker) findCut(text string, start, end int) int {
	tail := text[start+rc.maxChunkSize-rc.overlap : end]

	// Paragraph boundary
	if i := strings.LastIndex(tail, "\n\n"); i >= 0 {
		return start + rc.maxChunkSize - rc.overlap + i + 2
	}

	// Sentence boundary
	if locs := rc.sentenceRegex.FindAllStringIndex(tail, -1); len(locs) > 0 {
		last := locs[len(locs)-1]
		return start + rc.maxChunkSize - rc.overlap + last[1]
	}

	// Word boundary
	if i := strings.LastIndexAny(tail, " \n\t"); i >= 0 {
		return start + rc.maxChunkSize - rc.overlap + i + 1
	}

	// Hard cut, backed off to a rune boundary so multibyte text is never
	// split mid-rune.
	cut := end
	for cut > start+1 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return cut
}
