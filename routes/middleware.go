package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"statsdb/controllers"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an ID, reusing the client's when it sent one
func RequestID() gin.HandlerFunc {

	return func(ctx *gin.Context) {

		id := ctx.GetHeader(requestIDHeader)

		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		ctx.Set(controllers.RequestIDKey, id)

		ctx.Header(requestIDHeader, id)

		ctx.Next()
	}
}

// AccessLog logs one line per request
func AccessLog(log *zap.Logger) gin.HandlerFunc {

	return func(ctx *gin.Context) {

		start := time.Now()

		ctx.Next()

		log.Info("request",

			zap.String(controllers.RequestIDKey, ctx.GetString(controllers.RequestIDKey)),

			zap.String("method", ctx.Request.Method),

			zap.String("path", ctx.FullPath()),

			zap.Int("status", ctx.Writer.Status()),

			zap.Duration("latency", time.Since(start)),

			zap.String("client_ip", ctx.ClientIP()),
		)
	}
}
