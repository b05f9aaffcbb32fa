package api

import "github.com/gin-gonic/gin"

// Failure bodies share one envelope: {"success": false, "message": "..."}
// with an optional field-level errors list. Internal detail never reaches
// the client; unexpected errors are logged and reported generically.

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"message": message,
	})
}

func failValidation(c *gin.Context, status int, errs []string) {
	c.JSON(status, gin.H{
		"success": false,
		"message": "Validation failed",
		"errors":  errs,
	})
}
