package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Slug_Normalizes_Display_Names(t *testing.T) {
	req := require.New(t)

	req.Equal("dev-talk", Slug("Dev Talk!"))
	req.Equal("general", Slug("General"))
	req.Equal("a-b_c", Slug("  a  b_c  "))
	req.Equal("", Slug("???"))
}

func Test_CanAccess_Priority_Order(t *testing.T) {
	req := require.New(t)

	public := Room{ID: "public"}
	private := Room{ID: "private", Private: true, AssignedUsers: []string{"alice"}}
	defaultRoom := Room{ID: "general"}

	admin := Identity{UserID: "root", Role: RoleAdmin}
	alice := Identity{UserID: "alice", Role: RoleUser}
	bob := Identity{UserID: "bob", Role: RoleUser}
	kid := Identity{UserID: "kid", Role: RoleUser, Restricted: true}

	req.True(CanAccess(private, admin, "general"))

	req.True(CanAccess(public, alice, "general"))
	req.True(CanAccess(private, alice, "general"))
	req.False(CanAccess(private, bob, "general"))

	req.True(CanAccess(defaultRoom, kid, "general"))
	req.False(CanAccess(public, kid, "general"))
	kidAssigned := Room{ID: "club", AssignedUsers: []string{"kid"}}
	req.True(CanAccess(kidAssigned, kid, "general"))
}

func Test_AccessibleRooms_Filters_And_Sorts(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()

	rooms := []Room{
		{ID: "old", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "secret", Private: true, CreatedAt: now.Add(-time.Hour)},
		{ID: "new", CreatedAt: now},
	}

	visible := AccessibleRooms(rooms, Identity{UserID: "bob", Role: RoleUser}, "general")
	req.Len(visible, 2)
	req.Equal("new", visible[0].ID)
	req.Equal("old", visible[1].ID)
}

func Test_Room_Assignment_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	room := Room{ID: "dev"}

	req.True(room.Assign("alice"))
	req.False(room.Assign("alice"))
	req.Equal([]string{"alice"}, room.AssignedUsers)

	req.True(room.Unassign("alice"))
	req.False(room.Unassign("alice"))
	req.Empty(room.AssignedUsers)
}

func Test_OrderActiveUsers_AI_Leads(t *testing.T) {
	req := require.New(t)

	req.Nil(OrderActiveUsers(nil))

	out := OrderActiveUsers([]ActiveUser{
		{UserID: "c", Username: "charlie"},
		{UserID: "a", Username: "Alice"},
		{UserID: "b", Username: "bob"},
	})
	req.Len(out, 4)
	req.Equal(AIUserID, out[0].UserID)
	req.Equal("Alice", out[1].Username)
	req.Equal("bob", out[2].Username)
	req.Equal("charlie", out[3].Username)
}

func Test_NewUserMessage_Defaults(t *testing.T) {
	req := require.New(t)

	m := NewUserMessage("general", "alice", "Alice", "hello")
	req.NotEqual("00000000-0000-0000-0000-000000000000", m.ID.String())
	req.Equal(MessageTypeUser, m.Type)
	req.WithinDuration(time.Now().UTC(), m.CreatedAt, time.Second)

	ai := NewAIMessage("general", "hi")
	req.Equal(AIUserID, ai.SenderID)
	req.Equal(MessageTypeAI, ai.Type)

	req.True(IsBlank("   \t\n"))
	req.False(IsBlank(" x "))
}
