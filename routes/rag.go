package routes

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Ansab-Sultan/DocQuery-AI/internal/ai"
	"github.com/Ansab-Sultan/DocQuery-AI/internal/config"
	"github.com/Ansab-Sultan/DocQuery-AI/internal/logger"
	"github.com/Ansab-Sultan/DocQuery-AI/models"
	"github.com/Ansab-Sultan/DocQuery-AI/services"
	"github.com/Ansab-Sultan/DocQuery-AI/utils"
)

// RegisterRAGRoutes mounts the document QA endpoints
func RegisterRAGRoutes(router *gin.Engine, cfg *config.Config, ragService *services.RAGService) {
	rag := router.Group("/rag-bot")
	{
		rag.POST("/process-pdf/", HandleProcessPDF(cfg, ragService))
		rag.POST("/ask/", HandleAsk(ragService))
	}
}

// HandleProcessPDF ingests one or more uploaded PDFs and rebuilds the
// question-answering session around them
func HandleProcessPDF(cfg *config.Config, ragService *services.RAGService) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid multipart form", gin.H{"error": err.Error()})
			return
		}

		files := form.File["files"]
		if len(files) == 0 {
			utils.RespondWithBadRequest(c, "No files uploaded. Attach one or more PDFs under the 'files' field.", nil)
			return
		}

		// Reject the whole batch if any file is not a PDF, before any work
		for _, fh := range files {
			if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
				utils.RespondWithBadRequest(c,
					fmt.Sprintf("File '%s' is not a PDF. Only PDF files are supported.", fh.Filename), nil)
				return
			}
			if fh.Size > cfg.MaxFileSize {
				utils.RespondWithBadRequest(c,
					fmt.Sprintf("File '%s' exceeds the maximum size", fh.Filename),
					gin.H{"max_size": cfg.MaxFileSize, "received": fh.Size})
				return
			}
		}

		docs := make([]models.Document, 0, len(files))
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				utils.RespondWithBadRequest(c,
					fmt.Sprintf("Could not read uploaded file '%s'", fh.Filename), nil)
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				utils.RespondWithBadRequest(c,
					fmt.Sprintf("Could not read uploaded file '%s'", fh.Filename), nil)
				return
			}
			docs = append(docs, models.Document{Filename: fh.Filename, Data: data})
		}

		resp, err := ragService.ProcessDocuments(c.Request.Context(), docs)
		if err != nil {
			respondPipelineError(c, err)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// HandleAsk answers a question against the most recently processed documents
func HandleAsk(ragService *services.RAGService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.QuestionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
			return
		}

		history := make([]models.ConversationTurn, 0, len(req.ChatHistory))
		for _, msg := range req.ChatHistory {
			role, err := models.ParseChatRole(msg.Role)
			if err != nil {
				utils.RespondWithBadRequest(c,
					fmt.Sprintf("Invalid chat history role '%s'", msg.Role), nil)
				return
			}
			history = append(history, models.ConversationTurn{Role: role, Content: msg.Content})
		}

		answer, err := ragService.Ask(c.Request.Context(), req.Question, history)
		if err != nil {
			respondPipelineError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.AnswerResponse{Answer: answer})
	}
}

// respondPipelineError maps pipeline errors onto HTTP responses. Validation
// and state problems surface to the client; everything else stays generic
// and is logged server-side.
func respondPipelineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNoActiveSession):
		utils.RespondWithBadRequest(c, "No documents have been processed yet. Upload a PDF first.", nil)
	case errors.Is(err, services.ErrSessionRebuilding):
		utils.RespondWithConflict(c, "Documents are still being processed. Try again shortly.")
	case services.IsValidationError(err):
		utils.RespondWithBadRequest(c, err.Error(), nil)
	case errors.Is(err, ai.ErrServiceUnavailable):
		logger.Error("upstream model unavailable", "error", err, "request_id", c.GetString("request_id"))
		utils.RespondWithServiceUnavailable(c, "The language model service is temporarily unavailable. Please try again.")
	default:
		logger.Error("pipeline request failed", "error", err, "request_id", c.GetString("request_id"))
		utils.RespondWithInternalError(c, "Internal server error", nil)
	}
}
