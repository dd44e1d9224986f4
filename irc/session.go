package irc

import (
	"fmt"
	"strings"
)

// SupportedCapabilities is the default set of capabilities requested by a
// session.
var SupportedCapabilities = []string{
	"away-notify",
	"batch",
	"cap-notify",
	"echo-message",
	"extended-monitor",
	"invite-notify",
	"labeled-response",
	"message-tags",
	"multi-prefix",
	"sasl",
	"server-time",
	"setname",
	"standard-replies",
}

// DefaultCapabilities returns SupportedCapabilities as capability values.
func DefaultCapabilities() []Capability {
	caps := make([]Capability, len(SupportedCapabilities))
	for i, name := range SupportedCapabilities {
		caps[i] = NewCapability(name)
	}
	return caps
}

// SessionParams defines how to register on an IRC server.
type SessionParams struct {
	Nickname string
	Username string
	RealName string
	Password string // sent with PASS if not empty

	Capabilities []Capability
	CapVersion   string // version sent with CAP LS, "" for none
}

// Session registers a client connection: it negotiates capabilities, then
// waits for the server welcome.
//
// Messages to send are written to the out channel given to NewSession,
// which the session closes on Close. A Session is driven by a single
// goroutine, one incoming message at a time.
type Session struct {
	out        chan<- Message
	closed     bool
	registered bool
	capEnded   bool
	negotiator *Negotiator

	nick       string
	user       string
	real       string
	serverName string
}

func NewSession(out chan<- Message, params SessionParams) *Session {
	s := &Session{
		out:        out,
		negotiator: NewNegotiator(params.Capabilities...),
		nick:       params.Nickname,
		user:       params.Username,
		real:       params.RealName,
	}
	if s.user == "" {
		s.user = s.nick
	}
	if s.real == "" {
		s.real = s.nick
	}

	s.out <- s.negotiator.LS(params.CapVersion)
	if params.Password != "" {
		s.out <- NewMessage("PASS", params.Password)
	}
	s.out <- NewMessage("NICK", s.nick)
	s.out <- NewMessage("USER", s.user, "0", "*", s.real)
	return s
}

func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}

func (s *Session) Nick() string {
	return s.nick
}

// ServerName is the server name from RPL_MYINFO, or the welcome source.
func (s *Session) ServerName() string {
	return s.serverName
}

func (s *Session) Registered() bool {
	return s.registered
}

// HasCapability reports whether the given capability has been negotiated
// successfully.
func (s *Session) HasCapability(capability string) bool {
	return indexCapability(s.negotiator.acknowledged, NewCapability(capability)) >= 0
}

func (s *Session) Quit(reason string) {
	if reason == "" {
		s.out <- NewMessage("QUIT")
	} else {
		s.out <- NewMessage("QUIT", reason)
	}
}

// HandleMessage processes one message from the server. It returns the
// resulting event, if any.
func (s *Session) HandleMessage(msg Message) (Event, error) {
	if body, ok := msg.Body.(CapMessage); ok {
		return s.handleCap(body)
	}

	switch msg.Command().String() {
	case "CAP":
		if body, ok := msg.Body.(GenericBody); ok {
			if capMsg, err := capMessageFromGeneric(body); err == nil {
				return s.handleCap(capMsg)
			}
		}
		_, err := s.negotiator.HandleMessage(msg)
		return nil, err
	case "PING":
		s.out <- NewMessage("PONG", msg.Params()...)
	case "ERROR":
		var reason string
		if err := msg.ParseParams(&reason); err != nil {
			return nil, err
		}
		return ErrorEvent{
			Severity: SeverityFail,
			Code:     "ERROR",
			Message:  reason,
		}, nil
	case errNicknameinuse:
		if s.registered {
			break
		}
		var nick string
		if err := msg.ParseParams(nil, &nick); err != nil {
			return nil, err
		}
		s.nick = nick + "_"
		s.out <- NewMessage("NICK", s.nick)
	case rplWelcome:
		if err := msg.ParseParams(&s.nick); err != nil {
			return nil, err
		}
		s.registered = true
		if s.serverName == "" && msg.Source != nil {
			s.serverName = msg.Source.String()
		}
		return RegisteredEvent{
			Nick:   s.nick,
			Server: s.serverName,
		}, nil
	case rplMyinfo:
		if err := msg.ParseParams(nil, &s.serverName); err != nil {
			return nil, err
		}
	case errInvalidcapcmd, errNotregistered:
		return ErrorEvent{
			Severity: SeverityWarn,
			Code:     msg.Command().String(),
			Message:  joinReplyParams(msg),
		}, nil
	case errErroneusnickname, errPasswdmismatch, errYourebannedcreep:
		return ErrorEvent{
			Severity: SeverityFail,
			Code:     msg.Command().String(),
			Message:  fmt.Sprintf("Registration failed: %s", joinReplyParams(msg)),
		}, nil
	}
	return nil, nil
}

func (s *Session) handleCap(msg CapMessage) (Event, error) {
	replies, err := s.negotiator.Handle(msg)
	if err != nil {
		return nil, err
	}
	for _, reply := range replies {
		s.out <- reply
	}
	if s.capEnded || !s.negotiator.Settled() {
		return nil, nil
	}

	s.capEnded = true
	s.out <- s.negotiator.End()
	return CapNegotiatedEvent{
		Acknowledged:    s.negotiator.Acknowledged(),
		NotAcknowledged: s.negotiator.NotAcknowledged(),
		Unanswered:      s.negotiator.Requested(),
	}, nil
}

// joinReplyParams joins the parameters of a numeric reply, skipping the
// target nick.
func joinReplyParams(msg Message) string {
	params := msg.Params()
	if len(params) <= 1 {
		return ""
	}
	return strings.Join(params[1:], " ")
}
