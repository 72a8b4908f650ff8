package server

import (
	"time"

	"cheerpup/apps/backend/internal/domain"
)

type signupRequest struct {
	Name        string  `json:"name"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
	Password    string  `json:"password"`
}

type loginRequest struct {
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
	Password    string  `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// updateUserRequest holds the client-writable profile fields; seriousAlertCount,
// isAdmin and isPremium are not accepted.
type updateUserRequest struct {
	Name                     *string   `json:"name"`
	Email                    *string   `json:"email"`
	PhoneNumber              *string   `json:"phoneNumber"`
	Age                      *int      `json:"age"`
	Gender                   *string   `json:"gender"`
	SoughtPhysicalHelpBefore *bool     `json:"soughtPhysicalHelpBefore"`
	InPhysicalDistress       *bool     `json:"inPhysicalDistress"`
	Medicines                *[]string `json:"medicines"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type addExerciseRequest struct {
	Name           string `json:"name"`
	DurationInDays int    `json:"durationInDays"`
	Streak         []int  `json:"streak"`
}

type updateExerciseRequest struct {
	Name           *string    `json:"name"`
	DurationInDays *int       `json:"durationInDays"`
	Streak         *[]int     `json:"streak"`
	LastUpdated    *time.Time `json:"lastUpdated"`
}

type addChatRequest struct {
	UserMessage        string                  `json:"userMessage"`
	SystemMessage      string                  `json:"systemMessage"`
	SuggestedActivity  []string                `json:"suggestedActivity"`
	SuggestedExercise  []string                `json:"suggestedExercise"`
	SuggestedMusicLink *domain.MusicSuggestion `json:"suggestedMusicLink"`
}

type feelingRequest struct {
	FeelingText string `json:"feelingText"`
}
