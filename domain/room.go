package domain

type RoomID int64

// Room is the chat room shared by exactly two parties: the requesting user and the expert.
// A party that left the room keeps its seat but loses access to it.
type Room struct {
	ID           RoomID `json:"id"`
	UserID       UserID `json:"user_id"`
	ExpertUserID UserID `json:"expert_user_id"`
	UserName     string `json:"user_name,omitempty"`
	ExpertName   string `json:"expert_name,omitempty"`
	UserExist    bool   `json:"user_exist"`
	ExpertExist  bool   `json:"expert_exist"`
}

func NewRoom(id RoomID, userID, expertUserID UserID) Room {
	return Room{
		ID:           id,
		UserID:       userID,
		ExpertUserID: expertUserID,
		UserExist:    true,
		ExpertExist:  true,
	}
}

// IsParty reports whether the user is one of the two legitimate parties of the room.
func (r Room) IsParty(id UserID) bool {
	return id == r.UserID || id == r.ExpertUserID
}

// Present reports whether the user is a party that has not left the room.
func (r Room) Present(id UserID) bool {
	switch id {
	case r.UserID:
		return r.UserExist
	case r.ExpertUserID:
		return r.ExpertExist
	}
	return false
}

// WithPresence returns the room with the presence flag of a party updated.
func (r Room) WithPresence(id UserID, present bool) (Room, bool) {
	switch id {
	case r.UserID:
		r.UserExist = present
	case r.ExpertUserID:
		r.ExpertExist = present
	default:
		return r, false
	}
	return r, true
}

// Counterpart returns the other party of the room.
func (r Room) Counterpart(id UserID) (UserID, bool) {
	switch id {
	case r.UserID:
		return r.ExpertUserID, true
	case r.ExpertUserID:
		return r.UserID, true
	}
	return 0, false
}

// PartyName returns the display name of a party, empty when unknown.
func (r Room) PartyName(id UserID) string {
	switch id {
	case r.UserID:
		return r.UserName
	case r.ExpertUserID:
		return r.ExpertName
	}
	return ""
}
