package front

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/token-tracker/tokentracker/internal/config"
	"github.com/token-tracker/tokentracker/internal/credentials"
	"github.com/token-tracker/tokentracker/internal/http/api/front/handlers"
	"github.com/token-tracker/tokentracker/internal/models"
	"github.com/token-tracker/tokentracker/internal/providers"
	"github.com/token-tracker/tokentracker/internal/security"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers public and authenticated front-end routes.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, codec *security.Codec, registry *providers.Registry) {
	if r == nil || db == nil {
		return
	}

	front := r.Group("/v0/front")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	front.POST("/register", authHandler.Register)
	front.POST("/login", authHandler.Login)

	authed := front.Group("")
	authed.Use(userAuthMiddleware(db, jwtCfg))

	store := credentials.NewStore(db)
	keysHandler := handlers.NewKeysHandler(store, codec)
	authed.POST("/keys", keysHandler.Save)
	authed.GET("/keys", keysHandler.List)
	authed.DELETE("/keys", keysHandler.Delete)

	usageHandler := handlers.NewUsageHandler(db, store, codec, registry)
	authed.GET("/usage", usageHandler.Aggregate)
	authed.GET("/usage/:provider", usageHandler.Get)
}

// userAuthMiddleware validates user JWTs and loads the user into context.
func userAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if user.Disabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}

		c.Set("userID", user.ID)
		c.Next()
	}
}
