// Package domain contains core concepts of the chat system.
// This file defines the connected identity and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "strconv"

type UserID int64

func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Identity is the resolved user behind a connection.
// It is immutable once a session has been admitted.
type Identity struct {
	UserID    UserID
	Name      string
	anonymous bool
}

func NewIdentity(id UserID, name string) Identity {
	return Identity{UserID: id, Name: name}
}

// Anonymous is the identity of a connection without a valid token.
func Anonymous() Identity {
	return Identity{anonymous: true}
}

func (i Identity) IsAuthenticated() bool {
	return !i.anonymous
}
