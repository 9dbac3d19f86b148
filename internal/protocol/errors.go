package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Level routing/state.
	ErrLevelBusy     = "E_LEVEL_BUSY"
	ErrLevelFinished = "E_LEVEL_FINISHED"

	// Command layer.
	ErrBadRequest   = "E_BAD_REQUEST"
	ErrUnknownSkill = "E_UNKNOWN_SKILL"
	ErrRateLimit    = "E_RATE_LIMIT"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrLevelBusy:       {},
	ErrLevelFinished:   {},
	ErrBadRequest:      {},
	ErrUnknownSkill:    {},
	ErrRateLimit:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

func NewError(code, message string) ErrorMsg {
	return ErrorMsg{
		Type:            TypeError,
		ProtocolVersion: Version,
		Code:            code,
		Message:         message,
	}
}
