package models

// Message types exchanged over the interview stream. Outbound frames are
// JSON text; inbound binary frames carry audio and never a Message.
const (
	MsgPing           = "ping"
	MsgTranscript     = "transcript"
	MsgCodeSubmission = "code_submission"
	// MsgTimeUp is the end-of-interview control signal. It is an explicit
	// wire type rather than sentinel text inside a transcript message, so
	// the backend never has to pattern-match conversational content.
	MsgTimeUp = "time_up"

	// MsgText is the only inbound JSON type: the interviewer's current line.
	MsgText = "text"
)

// OutboundMessage is the envelope for every client-to-backend frame.
type OutboundMessage struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	Code     string `json:"code,omitempty"`
	Language string `json:"language,omitempty"`
}

// InboundMessage is a parsed backend-to-client text frame.
type InboundMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}
