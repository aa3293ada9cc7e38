package idempotency

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marcelogudines/sales/pkg/errors"
	"github.com/marcelogudines/sales/pkg/logging"
	"github.com/marcelogudines/sales/pkg/middleware"
)

const (
	// HeaderIdempotencyKey is the request header carrying the key
	HeaderIdempotencyKey = "Idempotency-Key"

	// HeaderReplayed marks a response served from the idempotency store
	HeaderReplayed = "Idempotent-Replayed"
)

// replayedHeaders are the response headers stored with a completed key
var replayedHeaders = []string{"Content-Type", "Location"}

// responseWriter captures the body written by the handlers
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware makes mutating requests carrying an Idempotency-Key header safe
// to retry: the first response is stored and replayed for later requests with
// the same key and parameters.
func Middleware(config *Config) gin.HandlerFunc {
	logger := config.Logger.WithComponent("idempotency")

	return func(c *gin.Context) {
		if !isMutatingMethod(c.Request.Method) {
			c.Next()
			return
		}

		key := NormalizeKey(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			if config.RequireKey {
				middleware.AbortWithAppError(c, errors.ErrBadRequest(ErrKeyRequired.Error()).
					WithDetail("header", HeaderIdempotencyKey))
				return
			}
			c.Next()
			return
		}

		if err := ValidateKey(key, config.MaxKeyLength); err != nil {
			middleware.AbortWithAppError(c, errors.ErrBadRequest(err.Error()).
				WithDetail("header", HeaderIdempotencyKey))
			return
		}

		var body []byte
		if c.Request.Body != nil {
			read, err := io.ReadAll(c.Request.Body)
			if err != nil {
				logger.Warn("Failed to read request body", "key", key, "error", err.Error())
				middleware.AbortWithAppError(c, errors.ErrBadRequest("failed to read request body"))
				return
			}
			body = read
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		process(c, config, logger, key, ComputeFingerprint(c.Request.Method, c.Request.URL.Path, body))
	}
}

func process(c *gin.Context, config *Config, logger *logging.Logger, key, fingerprint string) {
	ctx := c.Request.Context()
	now := time.Now().UTC()

	record, acquired, err := config.Store.Acquire(ctx, &Record{
		Key:         key,
		Method:      c.Request.Method,
		Path:        c.Request.URL.Path,
		Fingerprint: fingerprint,
		CreatedAt:   now,
		ExpiresAt:   now.Add(config.RetentionPeriod),
	})
	if err != nil {
		logger.Error("Failed to acquire idempotency key", "key", key, "error", err.Error())
		config.Metrics.RecordIdempotency("error")
		middleware.AbortWithAppError(c, errors.ErrServiceUnavailable("idempotency store"))
		return
	}

	if !acquired {
		switch {
		case record.Fingerprint != fingerprint:
			logger.Warn("Idempotency parameter mismatch", "key", key, "path", c.Request.URL.Path)
			config.Metrics.RecordIdempotency("mismatch")
			middleware.AbortWithAppError(c, errors.NewAppError(CodeParameterMismatch,
				"request parameters differ from the original request with this idempotency key",
				http.StatusUnprocessableEntity))
		case record.IsCompleted():
			config.Metrics.RecordIdempotency("hit")
			replay(c, record)
		default:
			logger.Warn("Concurrent idempotency request", "key", key, "path", c.Request.URL.Path)
			config.Metrics.RecordIdempotency("concurrent")
			middleware.AbortWithAppError(c, errors.NewAppError(CodeConcurrentRequest,
				"a request with this idempotency key is currently being processed",
				http.StatusConflict))
		}
		return
	}

	config.Metrics.RecordIdempotency("miss")

	writer := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
	c.Writer = writer

	completed := false
	defer func() {
		if !completed {
			if err := config.Store.Release(ctx, key); err != nil {
				logger.Error("Failed to release idempotency key", "key", key, "error", err.Error())
			}
		}
	}()

	c.Next()

	status := writer.Status()
	if status >= http.StatusInternalServerError {
		return
	}

	responseBody := writer.body.Bytes()
	if config.MaxResponseSize > 0 && len(responseBody) > config.MaxResponseSize {
		logger.Warn("Response too large to cache", "key", key, "size", len(responseBody))
		return
	}

	headers := make(map[string]string, len(replayedHeaders))
	for _, name := range replayedHeaders {
		if v := writer.Header().Get(name); v != "" {
			headers[name] = v
		}
	}

	if err := config.Store.Complete(ctx, key, status, responseBody, headers); err != nil {
		logger.Error("Failed to store idempotency response", "key", key, "error", err.Error())
		return
	}
	completed = true
	logger.Debug("Stored idempotency response", "key", key, "status", status)
}

func replay(c *gin.Context, record *Record) {
	contentType := "application/json; charset=utf-8"
	for name, value := range record.ResponseHeaders {
		if name == "Content-Type" {
			contentType = value
			continue
		}
		c.Header(name, value)
	}
	c.Header(HeaderReplayed, "true")
	c.Data(record.ResponseCode, contentType, record.ResponseBody)
	c.Abort()
}

func isMutatingMethod(method string) bool {
	return method == http.MethodPost ||
		method == http.MethodPut ||
		method == http.MethodPatch ||
		method == http.MethodDelete
}
