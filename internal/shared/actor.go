package shared

import "strings"

// Actor identifies the user performing a mutation.
type Actor struct {
	UserID    string `json:"userId" validate:"required"`
	UserEmail string `json:"userEmail" validate:"required"`
}

// Validate rejects blank actors.
func (a Actor) Validate() error {
	if strings.TrimSpace(a.UserID) == "" || strings.TrimSpace(a.UserEmail) == "" {
		return ErrActorRequired
	}
	return nil
}
