package chat

import "sort"

// Role is the coarse authorization class resolved by the auth collaborator.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Identity is the resolved (user, role, account class) tuple attached to a
// connection attempt. The relay trusts it without re-validating credentials.
type Identity struct {
	UserID     string
	Username   string
	Role       Role
	Restricted bool
}

// CanAccess decides room visibility. Pure function of its inputs, checked
// in priority order:
//  1. admins see everything
//  2. restricted accounts see the default room and explicit assignments
//  3. everyone else sees public rooms and explicit assignments
func CanAccess(room Room, id Identity, defaultRoomID string) bool {
	if id.Role == RoleAdmin {
		return true
	}
	if id.Restricted {
		return room.ID == defaultRoomID || room.IsAssigned(id.UserID)
	}
	return !room.Private || room.IsAssigned(id.UserID)
}

// AccessibleRooms filters rooms through CanAccess and orders the result by
// creation time, newest first.
func AccessibleRooms(rooms []Room, id Identity, defaultRoomID string) []Room {
	var out []Room
	for _, room := range rooms {
		if CanAccess(room, id, defaultRoomID) {
			out = append(out, room)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
