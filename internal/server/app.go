package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"cheerpup/apps/backend/internal/config"
	"cheerpup/apps/backend/internal/domain"
	"cheerpup/apps/backend/internal/intake"
	"cheerpup/apps/backend/internal/logger"
	"cheerpup/apps/backend/internal/store"
)

const userMutationAttempts = 3

type App struct {
	cfg    config.Config
	store  store.Store
	intake *intake.Service
	log    *logger.Logger
	now    func() time.Time
}

// AuthUser is the identity carried by a verified bearer token.
type AuthUser struct {
	ID      string
	IsAdmin bool
}

// apiError is returned from mutation callbacks to pick the response status.
type apiError struct {
	Status int
	Detail string
}

func (e *apiError) Error() string {
	return e.Detail
}

func New(cfg config.Config, st store.Store, svc *intake.Service, log *logger.Logger) *App {
	if log == nil {
		log = logger.Nop()
	}
	return &App{cfg: cfg, store: st, intake: svc, log: log, now: time.Now}
}

func (a *App) Router() *gin.Engine {
	serviceName := strings.TrimSpace(a.cfg.AppName)
	if serviceName == "" {
		serviceName = "cheerpup-api"
	}

	router := gin.New()
	router.Use(otelgin.Middleware(serviceName), attachRequestID(), requestLogger(a.log), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", headerRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", a.health)

	api := router.Group(a.cfg.APIPrefix)
	api.POST("/auth/signup", a.signup)
	api.POST("/auth/login", a.login)

	authed := api.Group("")
	authed.Use(a.authMiddleware())
	authed.POST("/openai/chat", a.submitFeeling(intake.VariantBasic))
	authed.POST("/openai/enhanced-chat", a.submitFeeling(intake.VariantEnhanced))

	user := authed.Group("/user/:id")
	user.Use(a.requireSelfOrAdmin())
	user.GET("", a.getUser)
	user.PUT("", a.updateUser)
	user.PUT("/password", a.changePassword)
	user.POST("/exercises", a.addExercise)
	user.PUT("/exercises/:exerciseId", a.updateExercise)
	user.PUT("/exercises/:exerciseId/done", a.markExerciseDone)
	user.DELETE("/exercises/:exerciseId", a.deleteExercise)
	user.GET("/chats", a.listChats)
	user.POST("/chats", a.addChat)
	user.DELETE("/chats/:chatId", a.deleteChat)
	user.GET("/moods", a.listMoods)
	user.GET("/moods/export", a.exportMoodsCSV)

	return router
}

func (a *App) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		a.log.Warn("health check store ping failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "service": "cheerpup-api"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "cheerpup-api",
	})
}

func (a *App) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}
		tokenString := strings.TrimSpace(authHeader[len("Bearer "):])
		if tokenString == "" {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if token.Method == nil || token.Method.Alg() != a.cfg.JWTAlgorithm {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(a.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(c, http.StatusUnauthorized, "Invalid bearer token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Invalid token payload")
			return
		}
		if a.cfg.JWTAudience != "" && !claimHasAudience(claims["aud"], a.cfg.JWTAudience) {
			writeError(c, http.StatusUnauthorized, "Invalid token audience")
			return
		}
		if a.cfg.JWTIssuer != "" {
			issuer, _ := claims["iss"].(string)
			if issuer != a.cfg.JWTIssuer {
				writeError(c, http.StatusUnauthorized, "Invalid token issuer")
				return
			}
		}
		sub, _ := claims["sub"].(string)
		sub = strings.TrimSpace(sub)
		if sub == "" {
			writeError(c, http.StatusUnauthorized, "Token subject missing")
			return
		}
		isAdmin, _ := claims["isAdmin"].(bool)

		c.Set("authUser", AuthUser{ID: sub, IsAdmin: isAdmin})
		c.Next()
	}
}

// requireSelfOrAdmin restricts /user/:id routes to the token subject, or to
// any admin.
func (a *App) requireSelfOrAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := authUserFromContext(c)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if c.Param("id") != user.ID && !user.IsAdmin {
			writeError(c, http.StatusForbidden, "Access denied")
			return
		}
		c.Next()
	}
}

func claimHasAudience(value any, audience string) bool {
	switch v := value.(type) {
	case string:
		return v == audience
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == audience {
				return true
			}
		}
	case []string:
		for _, item := range v {
			if item == audience {
				return true
			}
		}
	}
	return false
}

func authUserFromContext(c *gin.Context) (AuthUser, bool) {
	raw, ok := c.Get("authUser")
	if !ok {
		return AuthUser{}, false
	}
	user, ok := raw.(AuthUser)
	return user, ok
}

// mutateUser loads the user, applies fn and saves, reloading and reapplying
// on a version conflict.
func (a *App) mutateUser(ctx context.Context, id string, fn func(user *domain.User) error) (*domain.User, error) {
	var lastErr error
	for attempt := 0; attempt < userMutationAttempts; attempt++ {
		user, err := a.store.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(user); err != nil {
			return nil, err
		}
		user.Touch(a.now())
		err = a.store.Save(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (a *App) writeStoreError(c *gin.Context, err error) {
	var apiErr *apiError
	switch {
	case errors.As(err, &apiErr):
		writeError(c, apiErr.Status, apiErr.Detail)
	case errors.Is(err, store.ErrNotFound):
		writeError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, store.ErrDuplicate):
		writeError(c, http.StatusConflict, "Email or phone number already registered")
	case errors.Is(err, store.ErrConflict):
		writeError(c, http.StatusConflict, "User was modified concurrently; retry")
	default:
		a.log.Error("store operation failed", "path", c.FullPath(), "error", err)
		writeError(c, http.StatusInternalServerError, "Internal server error")
	}
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}
