package httpx

import (
	"errors"
	"net/http"

	"github.com/KOMKZ/go-fit-framework/errcode"
	"github.com/KOMKZ/go-fit-framework/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response unified envelope
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// OkJson 200 with data
func OkJson(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Msg: "success", Data: data})
}

// BadRequestJson 400
func BadRequestJson(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Response{Code: http.StatusBadRequest, Msg: err.Error()})
}

// NotFoundJson 404
func NotFoundJson(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Response{Code: http.StatusNotFound, Msg: msg})
}

// InternalErrorJson 500
func InternalErrorJson(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, Response{Code: http.StatusInternalServerError, Msg: msg})
}

// NoRouteHandler JSON 404 for engine.NoRoute
func NoRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		NotFoundJson(c, "route not found: "+c.Request.Method+" "+c.Request.URL.Path)
	}
}

// NoMethodHandler JSON 405 for engine.NoMethod
func NoMethodHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, Response{
			Code: http.StatusMethodNotAllowed,
			Msg:  "method not allowed: " + c.Request.Method + " " + c.Request.URL.Path,
		})
	}
}

// HandleError writes err as an envelope.
// A LayeredError keeps its own status, code, message and data; anything
// else becomes a 500.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	ctx := c.Request.Context()
	cfg := errorLoggingOf(c)
	log := logger.GetLogger("httpx")

	var layered *errcode.LayeredError
	if errors.As(err, &layered) {
		if cfg.enable && !cfg.ignore[layered.HTTPStatus()] {
			fields := []zap.Field{
				zap.Int("error_code", layered.Code()),
				zap.String("error_msg", layered.Message()),
			}
			if cfg.fullChain {
				fields = append(fields, zap.String("error_chain", layered.String()), zap.Error(err))
			}
			switch cfg.level {
			case "warn":
				log.WarnCtx(ctx, "Business error", fields...)
			case "info":
				log.InfoCtx(ctx, "Business error", fields...)
			default:
				log.ErrorCtx(ctx, "Business error", fields...)
			}
		}
		c.JSON(layered.HTTPStatus(), Response{
			Code: layered.Code(),
			Msg:  layered.Message(),
			Data: layered.Data(),
		})
		return
	}

	if cfg.enable {
		log.ErrorCtx(ctx, "Unhandled error", zap.Error(err))
	}
	InternalErrorJson(c, err.Error())
}
