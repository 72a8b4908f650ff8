package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cheerpup/apps/backend/internal/domain"
	"cheerpup/apps/backend/internal/intake"
)

// submitFeeling serves both intake endpoints; the token subject is the user
// whose history is read and appended.
func (a *App) submitFeeling(variant intake.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := authUserFromContext(c)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		var payload feelingRequest
		if !mustJSON(c, &payload) {
			return
		}

		result, err := a.intake.Submit(c.Request.Context(), intake.Submission{
			UserID:      user.ID,
			FeelingText: payload.FeelingText,
			Variant:     variant,
		})
		if err != nil {
			a.writeIntakeError(c, err)
			return
		}
		c.JSON(http.StatusOK, result.Payload)
	}
}

func (a *App) writeIntakeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, intake.ErrInvalidInput):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, intake.ErrUserNotFound):
		writeError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, intake.ErrPremiumRequired):
		writeError(c, http.StatusForbidden, "Enhanced chat requires a premium subscription")
	case errors.Is(err, intake.ErrQuotaExceeded):
		writeError(c, http.StatusTooManyRequests, "Daily chat limit reached")
	case errors.Is(err, intake.ErrUpstreamUnavailable):
		writeError(c, http.StatusInternalServerError, "AI service unavailable")
	default:
		writeError(c, http.StatusInternalServerError, "Failed to save chat history")
	}
}

func (a *App) listChats(c *gin.Context) {
	user, err := a.store.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"apiChatHistory": user.ChatHistory})
}

// addChat stores a turn supplied by the client without calling the model.
func (a *App) addChat(c *gin.Context) {
	var payload addChatRequest
	if !mustJSON(c, &payload) {
		return
	}
	message := strings.TrimSpace(payload.UserMessage)
	if message == "" {
		writeError(c, http.StatusBadRequest, "userMessage is required")
		return
	}
	turn := domain.NewChatTurn(
		message,
		payload.SystemMessage,
		payload.SuggestedActivity,
		payload.SuggestedExercise,
		payload.SuggestedMusicLink,
		a.now(),
	)

	_, err := a.mutateUser(c.Request.Context(), c.Param("id"), func(user *domain.User) error {
		user.AppendChat(turn)
		return nil
	})
	if err != nil {
		a.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, turn)
}

func (a *App) deleteChat(c *gin.Context) {
	_, err := a.mutateUser(c.Request.Context(), c.Param("id"), func(user *domain.User) error {
		if !user.RemoveChat(c.Param("chatId")) {
			return &apiError{Status: http.StatusNotFound, Detail: "Chat not found"}
		}
		return nil
	})
	if err != nil {
		a.writeStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
