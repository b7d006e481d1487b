package middleware

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"menlo.ai/analytics-gateway/app/utils/contextkeys"
)

// maxLoggedBody caps the request body copied into the log line. Response
// bodies carry analytics rows and are never logged.
const maxLoggedBody = 2048

var quietPaths = map[string]struct{}{
	"/health-check": {},
	"/metrics":      {},
}

func LoggerMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Generate and set request ID
		requestID := uuid.New().String()
		ctx := c.Request.Context()
		ctx = context.WithValue(ctx, contextkeys.RequestId{}, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set("X-Request-ID", requestID)

		var reqBody []byte
		if c.Request.Body != nil {
			reqBody, _ = io.ReadAll(c.Request.Body)
			// Restore body so Gin can read it again
			c.Request.Body = io.NopCloser(bytes.NewBuffer(reqBody))
		}
		if len(reqBody) > maxLoggedBody {
			reqBody = reqBody[:maxLoggedBody]
		}

		c.Next()

		if _, quiet := quietPaths[c.Request.URL.Path]; quiet && c.Writer.Status() < 400 {
			return
		}
		entry := logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"query":      c.Request.URL.RawQuery,
			"req_body":   string(reqBody),
			"bytes_out":  c.Writer.Size(),
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		entry.Info("")
	}
}
