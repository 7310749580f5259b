package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PbVrCt/serverless-chat-demo/internal/database"
	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
)

// ErrorResponse is the body of every failed request. Message is generic;
// details stay in the server log.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// MessageResponse is the wire form of a chat message.
type MessageResponse struct {
	Text        string `json:"text"`
	AIGenerated bool   `json:"aiGenerated"`
	Username    string `json:"username"`
	TenantID    string `json:"tenantId"`
}

func toMessageResponse(m database.Message) MessageResponse {
	return MessageResponse{
		Text:        m.Text,
		AIGenerated: m.AIGenerated,
		Username:    m.AuthorDisplayName,
		TenantID:    m.TenantID,
	}
}

type failure struct {
	sentinel error
	status   int
	message  string
}

// failures maps each error class to its response. Order matters only for
// errors matching several classes, which the constructors never produce.
var failures = []failure{
	{errs.ErrIdentityResolutionFailed, http.StatusUnauthorized, "unauthorized"},
	{errs.ErrValidation, http.StatusBadRequest, "invalid request"},
	{errs.ErrSecretUnavailable, http.StatusBadGateway, "completion credential unavailable"},
	{errs.ErrCompletionFailed, http.StatusBadGateway, "completion failed"},
	{errs.ErrStoreUnavailable, http.StatusServiceUnavailable, "message store unavailable"},
}

// StatusFor returns the HTTP status and public message for err.
func StatusFor(err error) (int, string) {
	for _, f := range failures {
		if errors.Is(err, f.sentinel) {
			return f.status, f.message
		}
	}
	return http.StatusInternalServerError, "internal error"
}

// abortWithError records err on the gin context for the request log and
// writes the mapped error response.
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, message := StatusFor(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Code: errs.Code(err)})
}
