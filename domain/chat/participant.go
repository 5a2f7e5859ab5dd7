package chat

import (
	"sort"
	"strings"
)

// ActiveUser is one entry of a room presence list.
type ActiveUser struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// OrderActiveUsers builds the presence list sent to clients: the synthetic
// AI participant leads whenever at least one human is live, then humans
// sorted case-insensitively by username. The input slice is not modified.
func OrderActiveUsers(humans []ActiveUser) []ActiveUser {
	if len(humans) == 0 {
		return nil
	}
	out := make([]ActiveUser, 0, len(humans)+1)
	out = append(out, ActiveUser{UserID: AIUserID, Username: AIUsername})
	out = append(out, humans...)
	sorted := out[1:]
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Username) < strings.ToLower(sorted[j].Username)
	})
	return out
}
