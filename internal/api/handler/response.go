package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/fishlens/internal/api/middleware"
	"github.com/timmy/fishlens/internal/domain"
)

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrExtraction), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrIndexNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes the error envelope. Server-side failures are logged
// and their details withheld from the client.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		middleware.GetLogger(c).WithError(err).Error("Request failed")
		_ = c.Error(err)
		message = "internal error"
	}
	c.JSON(status, gin.H{
		"success": false,
		"message": message,
	})
}

func writeOK(c *gin.Context, status int, message string, payload gin.H) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// parseID reads a positive integer path or query parameter.
func parseID(raw, name string) (uint, error) {
	if raw == "" {
		return 0, badRequest("%s is required", name)
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		return 0, badRequest("%s must be a positive integer", name)
	}
	return uint(v), nil
}

// parseOptionalInt returns def when raw is empty.
func parseOptionalInt(raw, name string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be an integer", name)
	}
	return v, nil
}

// readUpload reads the multipart file field, refusing anything over maxBytes.
func readUpload(c *gin.Context, field string, maxBytes int64) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, badRequest("multipart field %q is required", field)
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, badRequest("image exceeds %d bytes", maxBytes)
	}
	return readFileHeader(fh, maxBytes)
}

func readFileHeader(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, badRequest("cannot open upload: %v", err)
	}
	defer f.Close()

	var r io.Reader = f
	if maxBytes > 0 {
		r = io.LimitReader(f, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, badRequest("cannot read upload: %v", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, badRequest("image exceeds %d bytes", maxBytes)
	}
	if len(data) == 0 {
		return nil, badRequest("image is empty")
	}
	return data, nil
}
