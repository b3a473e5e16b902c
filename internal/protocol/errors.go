package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Placement layer.
	ErrBadRequest      = "E_BAD_REQUEST"
	ErrOverlap         = "E_OVERLAP"
	ErrRotationBlocked = "E_ROTATION_BLOCKED"
	ErrNotFound        = "E_NOT_FOUND"
	ErrTypeInUse       = "E_TYPE_IN_USE"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrOverlap:         {},
	ErrRotationBlocked: {},
	ErrNotFound:        {},
	ErrTypeInUse:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
