package httpx

import "github.com/gin-gonic/gin"

// Parse binds path (uri tag), query (form tag) and, when present, JSON body
func Parse(c *gin.Context, req interface{}) error {
	// structs without uri/form tags fail these binds harmlessly
	_ = c.ShouldBindUri(req)
	_ = c.ShouldBindQuery(req)

	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			return err
		}
	}
	return nil
}
