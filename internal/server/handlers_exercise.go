package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cheerpup/apps/backend/internal/domain"
)

var errExerciseNotFound = &apiError{Status: http.StatusNotFound, Detail: "Exercise not found"}

func (a *App) addExercise(c *gin.Context) {
	var payload addExerciseRequest
	if !mustJSON(c, &payload) {
		return
	}
	exercise, err := domain.NewExercise(strings.TrimSpace(payload.Name), payload.DurationInDays, payload.Streak, a.now())
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	_, err = a.mutateUser(c.Request.Context(), c.Param("id"), func(user *domain.User) error {
		user.Exercises = append(user.Exercises, exercise)
		return nil
	})
	if err != nil {
		a.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exercise)
}

func (a *App) updateExercise(c *gin.Context) {
	var payload updateExerciseRequest
	if !mustJSON(c, &payload) {
		return
	}
	var updated domain.Exercise
	_, err := a.mutateUser(c.Request.Context(), c.Param("id"), func(user *domain.User) error {
		exercise, ok := user.FindExercise(c.Param("exerciseId"))
		if !ok {
			return errExerciseNotFound
		}
		next := *exercise
		if payload.Name != nil {
			next.Name = strings.TrimSpace(*payload.Name)
		}
		if payload.DurationInDays != nil {
			next.DurationInDays = *payload.DurationInDays
		}
		if payload.Streak != nil {
			next.Streak = append([]int{}, (*payload.Streak)...)
		}
		if payload.LastUpdated != nil {
			stamp := payload.LastUpdated.UTC()
			next.LastUpdated = &stamp
		}
		if err := next.Validate(); err != nil {
			return &apiError{Status: http.StatusBadRequest, Detail: err.Error()}
		}
		next.UpdatedAt = a.now().UTC()
		*exercise = next
		updated = next
		return nil
	})
	if err != nil {
		a.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (a *App) markExerciseDone(c *gin.Context) {
	var updated domain.Exercise
	_, err := a.mutateUser(c.Request.Context(), c.Param("id"), func(user *domain.User) error {
		exercise, ok := user.FindExercise(c.Param("exerciseId"))
		if !ok {
			return errExerciseNotFound
		}
		exercise.MarkDone(a.now())
		updated = *exercise
		return nil
	})
	if err != nil {
		a.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (a *App) deleteExercise(c *gin.Context) {
	_, err := a.mutateUser(c.Request.Context(), c.Param("id"), func(user *domain.User) error {
		if !user.RemoveExercise(c.Param("exerciseId")) {
			return errExerciseNotFound
		}
		return nil
	})
	if err != nil {
		a.writeStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
