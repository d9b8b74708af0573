package domain

// Member represents a listener's participation in a room.
// No transport or lifecycle logic here.
type Member struct {
	User *User
	Room RoomID
}

func NewMember(user *User) *Member {
	return &Member{User: user}
}

func (m *Member) InRoom() bool { return m.Room != "" }
