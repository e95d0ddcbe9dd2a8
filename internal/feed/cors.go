package feed

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// corsPolicy admits browser origins accepted by allowed, with credentials.
// Requests from any other origin are refused with 403.
func corsPolicy(allowed func(origin string) bool) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  allowed,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Content-Type"},
		MaxAge:           12 * time.Hour,
	})
}
