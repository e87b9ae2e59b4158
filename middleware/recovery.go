package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/KOMKZ/go-fit-framework/httpx"
	"github.com/KOMKZ/go-fit-framework/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a logged 500 envelope
func Recovery(log *logger.CtxZapLogger) gin.HandlerFunc {
	if log == nil {
		log = logger.GetLogger("admin")
	}
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.ErrorCtx(c.Request.Context(), "Panic recovered",
					zap.Any("error", r),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("stack", string(debug.Stack())))
				c.AbortWithStatusJSON(http.StatusInternalServerError, httpx.Response{
					Code: http.StatusInternalServerError,
					Msg:  "Internal Server Error",
				})
			}
		}()
		c.Next()
	}
}
