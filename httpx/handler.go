package httpx

import (
	"github.com/KOMKZ/go-fit-framework/validator"
	"github.com/gin-gonic/gin"
)

// HandlerFunc typed handler: bound request in, response out
type HandlerFunc[Req any, Resp any] func(c *gin.Context, req *Req) (*Resp, error)

// Wrap binds and validates Req, runs handler and writes the envelope
func Wrap[Req any, Resp any](handler HandlerFunc[Req, Resp]) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req Req
		if err := Parse(c, &req); err != nil {
			BadRequestJson(c, err)
			return
		}

		if v, ok := any(&req).(validator.Validatable); ok {
			if err := validator.ValidateRequest(v); err != nil {
				HandleError(c, err)
				return
			}
		}

		resp, err := handler(c, &req)
		if err != nil {
			HandleError(c, err)
			return
		}
		OkJson(c, resp)
	}
}
