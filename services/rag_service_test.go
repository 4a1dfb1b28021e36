package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ansab-Sultan/DocQuery-AI/internal/config"
	"github.com/Ansab-Sultan/DocQuery-AI/models"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxChunkSize:    1500,
		ChunkOverlap:    150,
		RetrievalTopK:   5,
		IngestTimeout:   time.Minute,
		AnswerTimeout:   time.Minute,
		HistoryMaxTurns: 20,
	}
}

// answerFromContext echoes the best-matching context line so tests can check
// that answers are grounded in the retrieved chunks.
func answerFromContext(prompt string) (string, error) {
	if !strings.Contains(prompt, "DocQuery AI") {
		// Rewrite prompt: return the latest question unchanged.
		lines := strings.Split(prompt, "Latest question: ")
		if len(lines) > 1 {
			return strings.TrimSpace(strings.Split(lines[1], "\n")[0]), nil
		}
		return "rewritten", nil
	}
	if strings.Contains(prompt, "sky is blue") {
		return "According to the document, the sky is blue.", nil
	}
	return "I don't know based on the provided documents.", nil
}

func newTestRAGService(t *testing.T, gen *fakeGenerator) (*RAGService, *SessionStore) {
	t.Helper()
	cfg := testConfig()

	chunker, err := NewRecursiveChunker(cfg.MaxChunkSize, cfg.ChunkOverlap)
	require.NoError(t, err)

	embedder := newFakeEmbedder()
	rewriter := NewQueryRewriter(gen)
	retriever := NewRetriever(rewriter, embedder, cfg.RetrievalTopK)
	synthesizer := NewAnswerSynthesizer(gen)
	session := NewSessionStore()
	extractor := NewPDFExtractor(t.TempDir())

	return NewRAGService(cfg, extractor, chunker, embedder, retriever, synthesizer, session, nil), session
}

func TestProcessDocumentsThenAsk(t *testing.T) {
	gen := &fakeGenerator{respond: answerFromContext}
	svc, session := newTestRAGService(t, gen)
	ctx := context.Background()

	resp, err := svc.ProcessDocuments(ctx, []models.Document{
		{Filename: "facts.pdf", Data: makePDF(t, "The sky is blue on a clear day.", "Grass is green in spring.")},
	})
	require.NoError(t, err)
	assert.Equal(t, "PDF(s) processed successfully. You can now ask questions.", resp.Message)
	assert.Equal(t, []string{"facts.pdf"}, resp.Filenames)
	assert.NotEmpty(t, session.SessionID())

	answer, err := svc.Ask(ctx, "What color is the sky?", nil)
	require.NoError(t, err)
	assert.Contains(t, answer, "sky is blue")

	// The exchange lands in the stored transcript.
	history := session.History()
	require.Len(t, history, 2)
	assert.Equal(t, "What color is the sky?", history[0].Content)
	assert.Contains(t, history[1].Content, "sky is blue")
}

func TestAskBeforeProcessing(t *testing.T) {
	svc, _ := newTestRAGService(t, &fakeGenerator{})
	_, err := svc.Ask(context.Background(), "anything?", nil)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestProcessDocumentsEmptyBatch(t *testing.T) {
	svc, _ := newTestRAGService(t, &fakeGenerator{})
	_, err := svc.ProcessDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyDocumentSet)
}

func TestFailedIngestionKeepsPreviousSession(t *testing.T) {
	gen := &fakeGenerator{respond: answerFromContext}
	svc, session := newTestRAGService(t, gen)
	ctx := context.Background()

	_, err := svc.ProcessDocuments(ctx, []models.Document{
		{Filename: "facts.pdf", Data: makePDF(t, "The sky is blue on a clear day.")},
	})
	require.NoError(t, err)
	firstID := session.SessionID()

	_, err = svc.Ask(ctx, "What color is the sky?", nil)
	require.NoError(t, err)

	// A batch containing a non-PDF fails whole, leaving the session as it was.
	_, err = svc.ProcessDocuments(ctx, []models.Document{
		{Filename: "notes.txt", Data: []byte("plain text")},
	})
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.Equal(t, firstID, session.SessionID())
	assert.Len(t, session.History(), 2)

	answer, err := svc.Ask(ctx, "What color is the sky?", nil)
	require.NoError(t, err)
	assert.Contains(t, answer, "sky is blue")
}

func TestReprocessingReplacesSession(t *testing.T) {
	gen := &fakeGenerator{respond: answerFromContext}
	svc, session := newTestRAGService(t, gen)
	ctx := context.Background()

	_, err := svc.ProcessDocuments(ctx, []models.Document{
		{Filename: "a.pdf", Data: makePDF(t, "The sky is blue on a clear day.")},
	})
	require.NoError(t, err)
	firstID := session.SessionID()

	_, err = svc.Ask(ctx, "What color is the sky?", nil)
	require.NoError(t, err)

	_, err = svc.ProcessDocuments(ctx, []models.Document{
		{Filename: "b.pdf", Data: makePDF(t, "Berlin is the capital of Germany.")},
	})
	require.NoError(t, err)

	assert.NotEqual(t, firstID, session.SessionID())
	assert.Empty(t, session.History())
}

func TestReprocessingSameDocumentsIsStructurallyIdempotent(t *testing.T) {
	gen := &fakeGenerator{respond: answerFromContext}
	svc, session := newTestRAGService(t, gen)
	ctx := context.Background()

	data := makePDF(t, "The sky is blue on a clear day.", "Grass is green in spring.")

	_, err := svc.ProcessDocuments(ctx, []models.Document{{Filename: "facts.pdf", Data: data}})
	require.NoError(t, err)
	first, _, err := session.Index()
	require.NoError(t, err)

	_, err = svc.Ask(ctx, "What color is the sky?", nil)
	require.NoError(t, err)

	_, err = svc.ProcessDocuments(ctx, []models.Document{{Filename: "facts.pdf", Data: data}})
	require.NoError(t, err)
	second, _, err := session.Index()
	require.NoError(t, err)

	assert.Equal(t, first.Len(), second.Len())
	assert.Equal(t, first.Dimension(), second.Dimension())
	assert.Empty(t, session.History())
}

func TestTwoDocumentFollowUpScenario(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		if !strings.Contains(prompt, "DocQuery AI") {
			// Standalone rewrite: resolve the follow-up onto Germany.
			if strings.Contains(prompt, "What about Germany?") {
				return "What is the capital of Germany?", nil
			}
			lines := strings.Split(prompt, "Latest question: ")
			return strings.TrimSpace(strings.Split(lines[len(lines)-1], "\n")[0]), nil
		}
		if strings.Contains(prompt, "Question: What about Germany?") {
			return "The capital of Germany is Berlin.", nil
		}
		if strings.Contains(prompt, "Question: What is the capital of France?") {
			return "The capital of France is Paris.", nil
		}
		return "I don't know based on the provided documents.", nil
	}}
	svc, _ := newTestRAGService(t, gen)
	ctx := context.Background()

	_, err := svc.ProcessDocuments(ctx, []models.Document{
		{Filename: "a.pdf", Data: makePDF(t, "Paris is the capital of France.")},
		{Filename: "b.pdf", Data: makePDF(t, "Berlin is the capital of Germany.")},
	})
	require.NoError(t, err)

	answer, err := svc.Ask(ctx, "What is the capital of France?", nil)
	require.NoError(t, err)
	assert.Contains(t, answer, "Paris")
	assert.NotContains(t, answer, "Berlin")

	// Follow-up relies on the history-aware rewrite to reach Germany.
	answer, err = svc.Ask(ctx, "What about Germany?", nil)
	require.NoError(t, err)
	assert.Contains(t, answer, "Berlin")
}

func TestAskPrefersRequestHistory(t *testing.T) {
	gen := &fakeGenerator{respond: answerFromContext}
	svc, _ := newTestRAGService(t, gen)
	ctx := context.Background()

	_, err := svc.ProcessDocuments(ctx, []models.Document{
		{Filename: "facts.pdf", Data: makePDF(t, "The sky is blue on a clear day.")},
	})
	require.NoError(t, err)

	history := []models.ConversationTurn{
		{Role: models.RoleUser, Content: "what did we talk about"},
		{Role: models.RoleAssistant, Content: "We discussed the weather."},
	}
	_, err = svc.Ask(ctx, "And what color is the sky?", history)
	require.NoError(t, err)

	// The rewrite prompt must carry the request-supplied transcript.
	var rewritePrompt string
	for _, p := range gen.prompts {
		if strings.Contains(p, "Chat history") && !strings.Contains(p, "DocQuery AI") {
			rewritePrompt = p
		}
	}
	require.NotEmpty(t, rewritePrompt)
	assert.Contains(t, rewritePrompt, "We discussed the weather.")
}

func TestInFlightAskDoesNotPolluteNewSession(t *testing.T) {
	synthStarted := make(chan struct{})
	release := make(chan struct{})
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "DocQuery AI") {
			close(synthStarted)
			<-release
			return "An answer about the old documents.", nil
		}
		return "standalone", nil
	}}
	svc, session := newTestRAGService(t, gen)
	ctx := context.Background()

	_, err := svc.ProcessDocuments(ctx, []models.Document{
		{Filename: "old.pdf", Data: makePDF(t, "The sky is blue on a clear day.")},
	})
	require.NoError(t, err)

	// Stall an Ask inside synthesis so a reprocess can overtake it.
	var answer string
	done := make(chan error, 1)
	go func() {
		var askErr error
		answer, askErr = svc.Ask(ctx, "What color is the sky?", nil)
		done <- askErr
	}()
	<-synthStarted

	_, err = svc.ProcessDocuments(ctx, []models.Document{
		{Filename: "new.pdf", Data: makePDF(t, "Berlin is the capital of Germany.")},
	})
	require.NoError(t, err)
	require.Empty(t, session.History())

	close(release)
	require.NoError(t, <-done)
	assert.NotEmpty(t, answer)

	// The stale exchange was answered from the old index; the new session's
	// transcript must stay clean.
	assert.Empty(t, session.History())
}

func TestAskUsesStoredHistoryWhenRequestHasNone(t *testing.T) {
	gen := &fakeGenerator{respond: answerFromContext}
	svc, _ := newTestRAGService(t, gen)
	ctx := context.Background()

	_, err := svc.ProcessDocuments(ctx, []models.Document{
		{Filename: "facts.pdf", Data: makePDF(t, "The sky is blue on a clear day.")},
	})
	require.NoError(t, err)

	_, err = svc.Ask(ctx, "What color is the sky?", nil)
	require.NoError(t, err)

	_, err = svc.Ask(ctx, "Are you sure?", nil)
	require.NoError(t, err)

	// The second question is a follow-up, so the stored transcript drives a
	// history-aware rewrite.
	var sawStored bool
	for _, p := range gen.prompts {
		if strings.Contains(p, "Are you sure?") && strings.Contains(p, "What color is the sky?") {
			sawStored = true
		}
	}
	assert.True(t, sawStored, "stored transcript should reach the rewrite prompt")
}
