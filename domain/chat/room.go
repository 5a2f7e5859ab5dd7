package chat

import (
	"regexp"
	"strings"
	"time"
)

// Room is the persisted description of a channel. Live membership is not
// part of this record; the registry owns it. AssignedUsers is the
// authorization list granting access to private and restricted-account
// members independently of who is currently connected.
type Room struct {
	ID             string
	Name           string
	Description    string
	CreatedAt      time.Time
	AIEnabled      bool
	AISystemPrompt string
	AIModel        string
	CreatedBy      string
	VoiceReadback  bool
	VoiceID        string
	Private        bool
	AssignedUsers  []string
}

// Assign adds a user to the authorization list. Adding an already
// assigned user is a no-op; the boolean reports whether the list changed.
func (r *Room) Assign(userID string) bool {
	if r.IsAssigned(userID) {
		return false
	}
	r.AssignedUsers = append(r.AssignedUsers, userID)
	return true
}

// Unassign removes a user from the authorization list. Removing an absent
// user is a no-op.
func (r *Room) Unassign(userID string) bool {
	for i, id := range r.AssignedUsers {
		if id == userID {
			r.AssignedUsers = append(r.AssignedUsers[:i], r.AssignedUsers[i+1:]...)
			return true
		}
	}
	return false
}

func (r Room) IsAssigned(userID string) bool {
	for _, id := range r.AssignedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

var (
	slugInvalid = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
	slugDashes  = regexp.MustCompile(`-+`)
)

// Slug derives a URL-safe room identifier from a display name.
func Slug(name string) string {
	id := slugInvalid.ReplaceAllString(strings.ToLower(name), "-")
	id = slugDashes.ReplaceAllString(id, "-")
	return strings.Trim(id, "-")
}
