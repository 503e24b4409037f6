package arenadto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Request is one decoded inbound event.
type Request interface {
	Kind() string
	Validate() error
}

type CreateRequest struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
}

type JoinRequest struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
}

type MoveRequest struct {
	SessionID string `json:"session_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

type ResetRequest struct {
	SessionID string `json:"session_id"`
}

type CancelRequest struct {
	SessionID string `json:"session_id"`
}

type ResignRequest struct {
	SessionID string `json:"session_id"`
}

type ListSessionsRequest struct{}

func (CreateRequest) Kind() string       { return TypeCreate }
func (JoinRequest) Kind() string         { return TypeJoin }
func (MoveRequest) Kind() string         { return TypeMove }
func (ResetRequest) Kind() string        { return TypeReset }
func (CancelRequest) Kind() string       { return TypeCancel }
func (ResignRequest) Kind() string       { return TypeResign }
func (ListSessionsRequest) Kind() string { return TypeListSessions }

const maxSessionIDLen = 128

func (r CreateRequest) Validate() error {
	if len(r.SessionID) > maxSessionIDLen {
		return fmt.Errorf("session_id too long")
	}
	return validRole(r.Role)
}

func (r JoinRequest) Validate() error {
	if err := requireSession(r.SessionID); err != nil {
		return err
	}
	return validRole(r.Role)
}

func (r MoveRequest) Validate() error {
	if err := requireSession(r.SessionID); err != nil {
		return err
	}
	if !squareShape(r.From) || !squareShape(r.To) {
		return fmt.Errorf("from and to must be board squares like e2")
	}
	switch strings.ToLower(r.Promotion) {
	case "", "q", "r", "b", "n":
		return nil
	}
	return fmt.Errorf("promotion must be one of q, r, b, n")
}

func (r ResetRequest) Validate() error      { return requireSession(r.SessionID) }
func (r CancelRequest) Validate() error     { return requireSession(r.SessionID) }
func (r ResignRequest) Validate() error     { return requireSession(r.SessionID) }
func (ListSessionsRequest) Validate() error { return nil }

// Inbound is a decoded frame. RequestID is kept even when decoding fails so the
// rejection can be correlated.
type Inbound struct {
	RequestID string
	Request   Request
}

// Decode parses and validates one inbound frame. Failures are DecodeError values.
func Decode(raw []byte) (Inbound, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Inbound{}, DecodeError{Message: "frame is not valid JSON"}
	}
	in := Inbound{RequestID: f.RequestID}

	var req Request
	switch strings.TrimSpace(f.Type) {
	case TypeCreate:
		req = &CreateRequest{}
	case TypeJoin:
		req = &JoinRequest{}
	case TypeMove:
		req = &MoveRequest{}
	case TypeReset:
		req = &ResetRequest{}
	case TypeCancel:
		req = &CancelRequest{}
	case TypeResign:
		req = &ResignRequest{}
	case TypeListSessions:
		req = &ListSessionsRequest{}
	case "":
		return in, DecodeError{RequestID: f.RequestID, Message: "frame type is required"}
	default:
		return in, DecodeError{RequestID: f.RequestID, Message: fmt.Sprintf("unknown frame type %q", f.Type)}
	}

	payload := bytes.TrimSpace(f.Payload)
	if len(payload) > 0 && !bytes.Equal(payload, []byte("null")) {
		if err := json.Unmarshal(payload, req); err != nil {
			return in, DecodeError{RequestID: f.RequestID, Message: "invalid " + f.Type + " payload"}
		}
	}
	req = normalize(req)
	if err := req.Validate(); err != nil {
		return in, DecodeError{RequestID: f.RequestID, Message: err.Error()}
	}
	in.Request = req
	return in, nil
}

// normalize trims fields and turns pointer targets into values.
func normalize(req Request) Request {
	switch r := req.(type) {
	case *CreateRequest:
		return CreateRequest{SessionID: strings.TrimSpace(r.SessionID), Role: strings.TrimSpace(r.Role)}
	case *JoinRequest:
		return JoinRequest{SessionID: strings.TrimSpace(r.SessionID), Role: strings.TrimSpace(r.Role)}
	case *MoveRequest:
		return MoveRequest{
			SessionID: strings.TrimSpace(r.SessionID),
			From:      strings.ToLower(strings.TrimSpace(r.From)),
			To:        strings.ToLower(strings.TrimSpace(r.To)),
			Promotion: strings.ToLower(strings.TrimSpace(r.Promotion)),
		}
	case *ResetRequest:
		return ResetRequest{SessionID: strings.TrimSpace(r.SessionID)}
	case *CancelRequest:
		return CancelRequest{SessionID: strings.TrimSpace(r.SessionID)}
	case *ResignRequest:
		return ResignRequest{SessionID: strings.TrimSpace(r.SessionID)}
	case *ListSessionsRequest:
		return ListSessionsRequest{}
	}
	return req
}

func requireSession(id string) error {
	if id == "" {
		return fmt.Errorf("session_id is required")
	}
	if len(id) > maxSessionIDLen {
		return fmt.Errorf("session_id too long")
	}
	return nil
}

func validRole(role string) error {
	switch strings.ToLower(role) {
	case "", "first", "second", "random", "any", "white", "black", "w", "b":
		return nil
	}
	return fmt.Errorf("unknown role %q", role)
}

func squareShape(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}
