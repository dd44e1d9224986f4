package irc

type Event interface{}

// CapNegotiatedEvent is emitted when CAP END has been sent.
type CapNegotiatedEvent struct {
	Acknowledged    []Capability
	NotAcknowledged []Capability
	Unanswered      []Capability // requested but never advertised
}

// RegisteredEvent is emitted on RPL_WELCOME.
type RegisteredEvent struct {
	Nick   string
	Server string
}

type Severity int

const (
	SeverityNote Severity = iota
	SeverityWarn
	SeverityFail
)

type ErrorEvent struct {
	Severity Severity
	Code     string
	Message  string
}
