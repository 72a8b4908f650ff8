package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"cheerpup/apps/backend/internal/domain"
	"cheerpup/apps/backend/internal/store"
)

func (a *App) signup(c *gin.Context) {
	var payload signupRequest
	if !mustJSON(c, &payload) {
		return
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		writeError(c, http.StatusBadRequest, domain.ErrNameRequired.Error())
		return
	}
	email, phone := domain.NormalizeContact(payload.Email, payload.PhoneNumber)
	if err := domain.ValidateContact(email, phone); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := domain.ValidatePassword(payload.Password); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		a.log.Error("password hash failed", "error", err)
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	user := domain.NewUser(name, email, phone, string(hash), a.now())
	if err := a.store.Create(c.Request.Context(), user); err != nil {
		a.writeStoreError(c, err)
		return
	}

	token, err := a.issueToken(user)
	if err != nil {
		a.log.Error("token signing failed", "user_id", user.ID, "error", err)
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.JSON(http.StatusCreated, authResponse{Token: token, User: user})
}

func (a *App) login(c *gin.Context) {
	var payload loginRequest
	if !mustJSON(c, &payload) {
		return
	}
	email, phone := domain.NormalizeContact(payload.Email, payload.PhoneNumber)
	if email == nil && phone == nil {
		writeError(c, http.StatusBadRequest, domain.ErrContactRequired.Error())
		return
	}
	if payload.Password == "" {
		writeError(c, http.StatusBadRequest, "password is required")
		return
	}

	user, err := a.store.FindByLogin(c.Request.Context(), email, phone)
	if errors.Is(err, store.ErrNotFound) {
		writeError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		a.writeStoreError(c, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)) != nil {
		writeError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := a.issueToken(user)
	if err != nil {
		a.log.Error("token signing failed", "user_id", user.ID, "error", err)
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, authResponse{Token: token, User: user})
}

func (a *App) issueToken(user *domain.User) (string, error) {
	method := jwt.GetSigningMethod(a.cfg.JWTAlgorithm)
	if method == nil {
		return "", errors.New("unsupported JWT_ALGORITHM")
	}
	now := a.now().UTC()
	claims := jwt.MapClaims{
		"sub":     user.ID,
		"isAdmin": user.IsAdmin,
		"iat":     now.Unix(),
		"exp":     now.Add(time.Duration(a.cfg.JWTTTLHours) * time.Hour).Unix(),
	}
	if a.cfg.JWTAudience != "" {
		claims["aud"] = a.cfg.JWTAudience
	}
	if a.cfg.JWTIssuer != "" {
		claims["iss"] = a.cfg.JWTIssuer
	}
	return jwt.NewWithClaims(method, claims).SignedString([]byte(a.cfg.JWTSecret))
}
