// Package response defines the JSON envelope every PageFlow API endpoint
// returns. The HTTP status code is mirrored into the body so clients that
// only see the payload (the recording websocket bootstrap, injected page
// scripts) can still branch on it.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope wraps every API reply.
type Envelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Listing is the paged collection shape used by the project and saved-session
// listings.
type Listing struct {
	List     interface{} `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func write(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Envelope{
		Code:    status,
		Message: message,
		Data:    data,
	})
}

func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, "success", data)
}

func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	write(c, http.StatusOK, message, data)
}

// Page wraps a listing page in the standard envelope.
func Page(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	Success(c, Listing{
		List:     list,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// Error replies with an arbitrary status. Prefer the named helpers below.
func Error(c *gin.Context, status int, message string) {
	write(c, status, message, nil)
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

func InternalServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}
