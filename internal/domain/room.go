package domain

import "strings"

type RoomName string

// ParseRoomName trims a room identifier. Empty means "no room".
func ParseRoomName(raw string) (RoomName, error) {
	s := strings.TrimSpace(raw)
	if len(s) > MaxRoomNameLen {
		return "", ErrRoomNameTooLong
	}
	return RoomName(s), nil
}
