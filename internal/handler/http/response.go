package http

import "github.com/gin-gonic/gin"

// ErrorResponse writes a failure reply in the API's envelope.
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"success": false, "error": message})
}

// SuccessResponse writes a success reply.
func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}
