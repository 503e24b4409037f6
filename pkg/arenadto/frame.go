package arenadto

import "encoding/json"

// Frame is the envelope of every WebSocket message in both directions.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Inbound frame types.
const (
	TypeCreate       = "create"
	TypeJoin         = "join"
	TypeMove         = "move"
	TypeReset        = "reset"
	TypeCancel       = "cancel"
	TypeResign       = "resign"
	TypeListSessions = "list_sessions"
)

// Outbound frame types.
const (
	TypeWelcome        = "welcome"
	TypeSeatAssignment = "seat_assignment"
	TypePositionUpdate = "position_update"
	TypeHistoryUpdate  = "history_update"
	TypeCapturesUpdate = "captures_update"
	TypeCheckNotice    = "check_notice"
	TypeGameOver       = "game_over"
	TypeSessionClosed  = "session_closed"
	TypeOpenSessions   = "open_sessions"
	TypeRejected       = "rejected"
)

// NewFrame wraps payload. Payload types in this package always marshal.
func NewFrame(typ, requestID string, payload any) Frame {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}
	return Frame{Type: typ, RequestID: requestID, Payload: raw}
}

// Reject builds a rejected frame addressed to one request.
func Reject(requestID, reason, message string) Frame {
	return NewFrame(TypeRejected, requestID, Rejected{Reason: reason, Message: message})
}
