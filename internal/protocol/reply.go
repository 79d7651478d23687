package protocol

import (
	"encoding/json"
	"log/slog"
)

// Reply payloads sent back to the message's sender. Each carries a "type"
// discriminator so clients can route them without positional knowledge.

type WelcomeReply struct {
	Type string `json:"type"`
	Role string `json:"role"`
	Ack  bool   `json:"ack,omitempty"`
}

type AckReply struct {
	Type     string `json:"type"`
	Received bool   `json:"received"`
	OrigType string `json:"orig_type,omitempty"`
	Note     string `json:"note,omitempty"`
}

type OKReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ErrorReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type AuthenticatedReply struct {
	Type         string `json:"type"`
	Success      bool   `json:"success"`
	LampadaireID string `json:"lampadaire_id,omitempty"`
	Message      string `json:"message,omitempty"`
}

type StatusReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func Welcome(role string, ack bool) WelcomeReply {
	return WelcomeReply{Type: "welcome", Role: role, Ack: ack}
}

func Ack(origType string) AckReply {
	return AckReply{Type: "ack", Received: true, OrigType: origType}
}

func AckUnknown() AckReply {
	return AckReply{Type: "ack", Received: true, Note: "unknown_type"}
}

func OK(message string) OKReply {
	return OKReply{Type: "ok", Message: message}
}

func Error(message string) ErrorReply {
	return ErrorReply{Type: "error", Message: message}
}

func AuthSuccess(lampID string) AuthenticatedReply {
	return AuthenticatedReply{Type: "authenticated", Success: true, LampadaireID: lampID}
}

func AuthFailure(message string) AuthenticatedReply {
	return AuthenticatedReply{Type: "authenticated", Success: false, Message: message}
}

func Status(message string) StatusReply {
	return StatusReply{Type: "status", Message: message}
}

// Encode marshals a reply payload. The reply types above cannot fail to
// marshal; a failure is logged and yields nil.
func Encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal reply", "error", err)
		return nil
	}
	return data
}
