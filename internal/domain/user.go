// Package domain holds the User aggregate and its embedded history records.
//
// Exercises, chat turns and mood samples live inside the user document and
// are only ever read or written through it.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                       string       `json:"id" bson:"_id"`
	Name                     string       `json:"name" bson:"name"`
	Email                    *string      `json:"email,omitempty" bson:"email,omitempty"`
	PhoneNumber              *string      `json:"phoneNumber,omitempty" bson:"phoneNumber,omitempty"`
	PasswordHash             string       `json:"-" bson:"passwordHash"`
	Age                      *int         `json:"age,omitempty" bson:"age,omitempty"`
	Gender                   *string      `json:"gender,omitempty" bson:"gender,omitempty"`
	SoughtPhysicalHelpBefore *bool        `json:"soughtPhysicalHelpBefore,omitempty" bson:"soughtPhysicalHelpBefore,omitempty"`
	InPhysicalDistress       *bool        `json:"inPhysicalDistress,omitempty" bson:"inPhysicalDistress,omitempty"`
	Medicines                []string     `json:"medicines" bson:"medicines"`
	SeriousAlertCount        int          `json:"seriousAlertCount" bson:"seriousAlertCount"`
	Exercises                []Exercise   `json:"exercises" bson:"exercises"`
	ChatHistory              []ChatTurn   `json:"apiChatHistory" bson:"apiChatHistory"`
	Moods                    []MoodSample `json:"moods" bson:"moods"`
	IsAdmin                  bool         `json:"isAdmin" bson:"isAdmin"`
	IsPremium                bool         `json:"isPremium" bson:"isPremium"`
	Version                  int64        `json:"version" bson:"version"`
	CreatedAt                time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt                time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// NewUser builds a fresh aggregate with empty histories.
func NewUser(name string, email, phone *string, passwordHash string, now time.Time) *User {
	return &User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PhoneNumber:  phone,
		PasswordHash: passwordHash,
		Medicines:    []string{},
		Exercises:    []Exercise{},
		ChatHistory:  []ChatTurn{},
		Moods:        []MoodSample{},
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
}

// LastMood returns the most recent mood sample, if any.
func (u *User) LastMood() (MoodSample, bool) {
	if len(u.Moods) == 0 {
		return MoodSample{}, false
	}
	return u.Moods[len(u.Moods)-1], true
}

// LastMusicTitle returns the music title suggested in the most recent chat
// turn, if that turn carried one.
func (u *User) LastMusicTitle() (string, bool) {
	if len(u.ChatHistory) == 0 {
		return "", false
	}
	last := u.ChatHistory[len(u.ChatHistory)-1]
	if last.SuggestedMusicLink == nil || last.SuggestedMusicLink.Title == nil || *last.SuggestedMusicLink.Title == "" {
		return "", false
	}
	return *last.SuggestedMusicLink.Title, true
}

func (u *User) FindExercise(id string) (*Exercise, bool) {
	for i := range u.Exercises {
		if u.Exercises[i].ID == id {
			return &u.Exercises[i], true
		}
	}
	return nil, false
}

func (u *User) RemoveExercise(id string) bool {
	for i := range u.Exercises {
		if u.Exercises[i].ID == id {
			u.Exercises = append(u.Exercises[:i], u.Exercises[i+1:]...)
			return true
		}
	}
	return false
}

func (u *User) AppendChat(turn ChatTurn) {
	u.ChatHistory = append(u.ChatHistory, turn)
}

func (u *User) RemoveChat(id string) bool {
	for i := range u.ChatHistory {
		if u.ChatHistory[i].ID == id {
			u.ChatHistory = append(u.ChatHistory[:i], u.ChatHistory[i+1:]...)
			return true
		}
	}
	return false
}

func (u *User) AppendMood(sample MoodSample) {
	u.Moods = append(u.Moods, sample)
}

// Touch stamps the aggregate as modified.
func (u *User) Touch(now time.Time) {
	u.UpdatedAt = now.UTC()
}

// Clone returns a deep copy; stores hand out clones so callers never share
// slices with stored state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Email = cloneString(u.Email)
	out.PhoneNumber = cloneString(u.PhoneNumber)
	out.Gender = cloneString(u.Gender)
	if u.Age != nil {
		age := *u.Age
		out.Age = &age
	}
	out.SoughtPhysicalHelpBefore = cloneBool(u.SoughtPhysicalHelpBefore)
	out.InPhysicalDistress = cloneBool(u.InPhysicalDistress)
	out.Medicines = append([]string{}, u.Medicines...)

	out.Exercises = make([]Exercise, len(u.Exercises))
	for i, ex := range u.Exercises {
		out.Exercises[i] = ex.clone()
	}
	out.ChatHistory = make([]ChatTurn, len(u.ChatHistory))
	for i, turn := range u.ChatHistory {
		out.ChatHistory[i] = turn.clone()
	}
	out.Moods = append([]MoodSample{}, u.Moods...)
	return &out
}

// EnsureCollections replaces nil slices with empty ones so documents decoded
// from older records serialize as [] rather than null.
func (u *User) EnsureCollections() {
	if u.Medicines == nil {
		u.Medicines = []string{}
	}
	if u.Exercises == nil {
		u.Exercises = []Exercise{}
	}
	if u.ChatHistory == nil {
		u.ChatHistory = []ChatTurn{}
	}
	if u.Moods == nil {
		u.Moods = []MoodSample{}
	}
	for i := range u.Exercises {
		if u.Exercises[i].Streak == nil {
			u.Exercises[i].Streak = []int{}
		}
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
