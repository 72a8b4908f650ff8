package intake

import "cheerpup/apps/backend/internal/domain"

// raiseAlert bumps the user's serious-alert counter when the reply is flagged
// and returns the crisis message to show alongside the reply.
func raiseAlert(user *domain.User, reply Reply, crisisMessage string) *string {
	if !reply.Serious {
		return nil
	}
	user.SeriousAlertCount++
	message := crisisMessage
	return &message
}
