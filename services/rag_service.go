package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ansab-Sultan/DocQuery-AI/internal/config"
	"github.com/Ansab-Sultan/DocQuery-AI/internal/logger"
	"github.com/Ansab-Sultan/DocQuery-AI/internal/telemetry"
	"github.com/Ansab-Sultan/DocQuery-AI/models"
)

// RAGService wires the pipeline stages together: ingestion builds a fresh
// session index, questions run retrieval and synthesis against it.
type RAGService struct {
	cfg         *config.Config
	extractor   *PDFExtractor
	chunker     *RecursiveChunker
	embedder    Embedder
	retriever   *Retriever
	synthesizer *AnswerSynthesizer
	session     *SessionStore
	metrics     *telemetry.Metrics
	tracer      trace.Tracer
}

func NewRAGService(
	cfg *config.Config,
	extractor *PDFExtractor,
	chunker *RecursiveChunker,
	embedder Embedder,
	retriever *Retriever,
	synthesizer *AnswerSynthesizer,
	session *SessionStore,
	metrics *telemetry.Metrics,
) *RAGService {
	return &RAGService{
		cfg:         cfg,
		extractor:   extractor,
		chunker:     chunker,
		embedder:    embedder,
		retriever:   retriever,
		synthesizer: synthesizer,
		session:     session,
		metrics:     metrics,
		tracer:      otel.Tracer("docquery-ai/rag"),
	}
}

// ProcessDocuments runs the full ingestion pipeline: extract, chunk, embed,
// index, then atomically replace the session. The whole batch succeeds or
// the previous session stays untouched.
func (rs *RAGService) ProcessDocuments(ctx context.Context, docs []models.Document) (*models.ProcessResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, rs.cfg.IngestTimeout)
	defer cancel()

	ctx, span := rs.tracer.Start(ctx, "rag.process_documents",
		trace.WithAttributes(attribute.Int("documents.count", len(docs))))
	defer span.End()

	if len(docs) == 0 {
		return nil, ErrEmptyDocumentSet
	}

	if err := rs.session.BeginRebuild(); err != nil {
		return nil, err
	}

	start := time.Now()
	index, err := rs.buildIndex(ctx, docs)
	if err != nil {
		rs.session.AbortRebuild()
		rs.recordIndexBuild(time.Since(start), "error")
		span.RecordError(err)
		return nil, err
	}

	rs.session.CompleteRebuild(index)
	rs.recordIndexBuild(time.Since(start), "success")

	filenames := make([]string, len(docs))
	for i, doc := range docs {
		filenames[i] = doc.Filename
	}

	logger.Info("documents processed",
		"files", len(docs),
		"chunks", index.Len(),
		"dimensions", index.Dimension(),
		"session_id", rs.session.SessionID(),
		"duration", time.Since(start).String(),
	)

	return &models.ProcessResponse{
		Message:   "PDF(s) processed successfully. You can now ask questions.",
		Filenames: filenames,
	}, nil
}

func (rs *RAGService) buildIndex(ctx context.Context, docs []models.Document) (*VectorIndex, error) {
	segments, err := rs.extractor.ExtractAll(docs)
	if err != nil {
		return nil, err
	}

	chunks := rs.chunker.ChunkSegments(segments)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: documents contained no extractable text", ErrExtractionFailed)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := rs.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedding chunks: got %d embeddings for %d chunks", len(embeddings), len(chunks))
	}

	index := NewVectorIndex()
	for i, chunk := range chunks {
		if err := index.Insert(chunk, embeddings[i]); err != nil {
			return nil, err
		}
	}
	return index, nil
}

// Ask answers a question against the current session. Request-supplied
// history takes precedence over the stored transcript when present, so
// clients that manage their own conversation keep working.
func (rs *RAGService) Ask(ctx context.Context, question string, history []models.ConversationTurn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, rs.cfg.AnswerTimeout)
	defer cancel()

	ctx, span := rs.tracer.Start(ctx, "rag.ask",
		trace.WithAttributes(attribute.Int("question.length", len(question))))
	defer span.End()

	index, sessionID, err := rs.session.Index()
	if err != nil {
		return "", err
	}

	if len(history) == 0 {
		history = rs.session.History()
	}

	hits, standalone, err := rs.retriever.Retrieve(ctx, index, question, history)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.Int("retrieval.hits", len(hits)))

	answer, err := rs.synthesizer.Synthesize(ctx, question, hits, history)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	// Answer computed against a since-replaced index still goes to the
	// caller, but must not land in the new session's transcript.
	if err := rs.session.AppendExchange(sessionID, question, answer, rs.cfg.HistoryMaxTurns); err != nil {
		logger.Warn("exchange not recorded", "error", err, "session_id", sessionID)
	}

	logger.Debug("question answered",
		"standalone_question", standalone,
		"hits", len(hits),
		"answer_length", len(answer),
	)
	return answer, nil
}

func (rs *RAGService) recordIndexBuild(d time.Duration, status string) {
	if rs.metrics != nil {
		rs.metrics.RecordIndexBuild(d.Seconds(), status)
	}
}
