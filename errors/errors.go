package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrAuthentication  = fmt.Errorf("authentication failed")
	ErrAccessDenied    = fmt.Errorf("access denied to this room")
	ErrRoomNotFound    = fmt.Errorf("room not found")
	ErrRoomExists      = fmt.Errorf("room already exists")
	ErrPermissionCheck = fmt.Errorf("permission check failed")
	ErrMessageNotFound = fmt.Errorf("message not found")
	ErrGeneration      = fmt.Errorf("ai generation failed")
	ErrSendBufferFull  = fmt.Errorf("connection send buffer full")
	ErrDefaultRoom     = fmt.Errorf("the default room cannot be deleted")
	ErrRoomForbidden   = fmt.Errorf("operation not allowed for this account")
	ErrWorkerPanic     = fmt.Errorf("worker panic")
	ErrEmptyWords      = fmt.Errorf("no words have been found")
)

// CloseCode maps a handshake failure to its websocket close code.
// Codes in the 4xxx range are application defined; clients use them to
// distinguish a bad token from a missing room or a privacy violation.
// Anything unexpected during the permission check collapses to 4005.
func CloseCode(err error) int {
	switch {
	case stderrors.Is(err, ErrAuthentication):
		return 4001
	case stderrors.Is(err, ErrAccessDenied):
		return 4003
	case stderrors.Is(err, ErrRoomNotFound):
		return 4004
	default:
		return 4005
	}
}
