package relay

import "errors"

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrRoomNotFound         = errors.New("room not found")
	ErrNotAMember           = errors.New("not a member of this room")
	ErrDirectoryUnavailable = errors.New("room directory unavailable")
	ErrInvalidMessage       = errors.New("invalid message format")
	ErrEndpointQueueFull    = errors.New("endpoint message queue is full")
)
