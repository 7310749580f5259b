package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PbVrCt/serverless-chat-demo/internal/database"
	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
	"github.com/PbVrCt/serverless-chat-demo/internal/identity"
)

// ChatService is the set of chat operations served over HTTP.
type ChatService interface {
	ListMessages(ctx context.Context, requester identity.Identity) ([]database.Message, error)
	SendMessage(ctx context.Context, requester identity.Identity, text string) (database.Message, error)
	RequestAIReply(ctx context.Context, requester identity.Identity, prompt string) (database.Message, error)
	ClearAll(ctx context.Context, requester identity.Identity) (int, error)
}

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TextRequest is the body of the send and AI reply requests.
type TextRequest struct {
	Text string `json:"text" binding:"required,max=4000"`
}

type handlers struct {
	chat   ChatService
	health Pinger
}

func (h *handlers) listMessages(c *gin.Context) {
	id, err := requester(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	messages, err := h.chat.ListMessages(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	out := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, toMessageResponse(m))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) sendMessage(c *gin.Context) {
	h.postText(c, h.chat.SendMessage)
}

func (h *handlers) requestAIReply(c *gin.Context) {
	h.postText(c, h.chat.RequestAIReply)
}

func (h *handlers) postText(
	c *gin.Context,
	op func(context.Context, identity.Identity, string) (database.Message, error),
) {
	id, err := requester(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errs.NewValidationError("invalid request body", err))
		return
	}

	msg, err := op(c.Request.Context(), id, req.Text)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMessageResponse(msg))
}

func (h *handlers) clearAll(c *gin.Context) {
	id, err := requester(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if _, err := h.chat.ClearAll(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handlers) healthz(c *gin.Context) {
	if err := h.health.Ping(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
