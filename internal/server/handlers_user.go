package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"cheerpup/apps/backend/internal/domain"
)

func (a *App) getUser(c *gin.Context) {
	user, err := a.store.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (a *App) updateUser(c *gin.Context) {
	var payload updateUserRequest
	if !mustJSON(c, &payload) {
		return
	}
	if err := domain.ValidateAge(payload.Age); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Name != nil && strings.TrimSpace(*payload.Name) == "" {
		writeError(c, http.StatusBadRequest, domain.ErrNameRequired.Error())
		return
	}

	user, err := a.mutateUser(c.Request.Context(), c.Param("id"), func(user *domain.User) error {
		return applyProfileUpdate(user, payload)
	})
	if err != nil {
		a.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func applyProfileUpdate(user *domain.User, payload updateUserRequest) error {
	if payload.Name != nil {
		user.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.Email != nil || payload.PhoneNumber != nil {
		email, phone := user.Email, user.PhoneNumber
		if payload.Email != nil {
			email, _ = domain.NormalizeContact(payload.Email, nil)
		}
		if payload.PhoneNumber != nil {
			_, phone = domain.NormalizeContact(nil, payload.PhoneNumber)
		}
		if err := domain.ValidateContact(email, phone); err != nil {
			return &apiError{Status: http.StatusBadRequest, Detail: err.Error()}
		}
		user.Email, user.PhoneNumber = email, phone
	}
	if payload.Age != nil {
		age := *payload.Age
		user.Age = &age
	}
	if payload.Gender != nil {
		gender := strings.TrimSpace(*payload.Gender)
		if gender == "" {
			user.Gender = nil
		} else {
			user.Gender = &gender
		}
	}
	if payload.SoughtPhysicalHelpBefore != nil {
		v := *payload.SoughtPhysicalHelpBefore
		user.SoughtPhysicalHelpBefore = &v
	}
	if payload.InPhysicalDistress != nil {
		v := *payload.InPhysicalDistress
		user.InPhysicalDistress = &v
	}
	if payload.Medicines != nil {
		medicines := make([]string, 0, len(*payload.Medicines))
		for _, m := range *payload.Medicines {
			if v := strings.TrimSpace(m); v != "" {
				medicines = append(medicines, v)
			}
		}
		user.Medicines = medicines
	}
	return nil
}

func (a *App) changePassword(c *gin.Context) {
	var payload changePasswordRequest
	if !mustJSON(c, &payload) {
		return
	}
	if err := domain.ValidatePassword(payload.NewPassword); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(payload.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		a.log.Error("password hash failed", "error", err)
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	_, err = a.mutateUser(c.Request.Context(), c.Param("id"), func(user *domain.User) error {
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.OldPassword)) != nil {
			return &apiError{Status: http.StatusUnauthorized, Detail: "Old password is incorrect"}
		}
		user.PasswordHash = string(hash)
		return nil
	})
	if err != nil {
		a.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}
