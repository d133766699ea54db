package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestIDKey is the gin context key holding the request ID
const RequestIDKey = "request_id"

// Envelope wraps every API response body
type Envelope struct {
	Code      int       `json:"code"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Writer writes envelopes for one request
type Writer struct {
	c      *gin.Context
	logger *zap.Logger
}

// New creates a writer for c
func New(c *gin.Context, logger *zap.Logger) *Writer {
	return &Writer{c: c, logger: logger}
}

// OK writes a 200 with data
func (w *Writer) OK(data any) {
	w.write(http.StatusOK, "success", data, "")
}

// Fail writes an error status. Server errors are logged.
func (w *Writer) Fail(status int, err error) {
	if status >= http.StatusInternalServerError {
		w.logger.Error("Request failed",
			zap.String(RequestIDKey, w.c.GetString(RequestIDKey)),
			zap.String("path", w.c.Request.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	w.write(status, http.StatusText(status), nil, err.Error())
}

func (w *Writer) write(status int, message string, data any, errText string) {
	w.c.JSON(status, Envelope{
		Code:      status,
		Message:   message,
		Data:      data,
		Error:     errText,
		RequestID: w.c.GetString(RequestIDKey),
		Timestamp: time.Now().UTC(),
	})
}
