package irc

import (
	"fmt"
	"slices"
)

// UnexpectedCommandError is returned when a message given to the negotiator
// is not a CAP message.
type UnexpectedCommandError struct {
	Command Command
}

func (err *UnexpectedCommandError) Error() string {
	return fmt.Sprintf("irc: unexpected command %q, expected CAP", err.Command.String())
}

// UnexpectedSubcommandError is returned for CAP subcommands the negotiator
// does not act upon.
type UnexpectedSubcommandError struct {
	Subcommand string
}

func (err *UnexpectedSubcommandError) Error() string {
	return fmt.Sprintf("irc: unexpected CAP subcommand %q", err.Subcommand)
}

// Negotiator drives IRCv3 capability negotiation for one connection
// attempt.
//
// Every desired capability starts as requested, and leaves it at most once,
// when the server acknowledges it or rejects it. Capabilities are tracked by
// name: a capability is in at most one of the three sets.
//
// A Negotiator is not safe for concurrent use.
type Negotiator struct {
	requested       []Capability
	acknowledged    []Capability
	notAcknowledged []Capability

	advertised []Capability // requested capabilities seen in a multiline LS so far
	issued     []Capability // capabilities sent in a REQ
	listed     bool         // whether the last line of an LS reply was handled
}

// NewNegotiator returns a negotiator requesting the given capabilities.
// Duplicate names are only requested once.
func NewNegotiator(desired ...Capability) *Negotiator {
	n := &Negotiator{}
	for _, c := range desired {
		if indexCapability(n.requested, c) < 0 {
			n.requested = append(n.requested, c)
		}
	}
	return n
}

// LS returns the CAP LS message opening the negotiation. version is the
// capability negotiation version, or "" for none.
func (n *Negotiator) LS(version string) Message {
	if version == "" {
		return NewMessage("CAP", "LS")
	}
	return NewMessage("CAP", "LS", version)
}

// End returns the CAP END message closing the negotiation.
func (n *Negotiator) End() Message {
	return NewMessage("CAP", "END")
}

// Requested returns the capabilities not yet acknowledged nor rejected.
func (n *Negotiator) Requested() []Capability {
	return slices.Clone(n.requested)
}

// Acknowledged returns the capabilities accepted by the server, in the shape
// they were requested.
func (n *Negotiator) Acknowledged() []Capability {
	return slices.Clone(n.acknowledged)
}

// NotAcknowledged returns the capabilities rejected by the server.
func (n *Negotiator) NotAcknowledged() []Capability {
	return slices.Clone(n.notAcknowledged)
}

// Settled reports whether the server advertised its capabilities and
// answered every request sent so far. The caller should then send End.
func (n *Negotiator) Settled() bool {
	if !n.listed {
		return false
	}
	for _, c := range n.issued {
		if indexCapability(n.requested, c) >= 0 {
			return false
		}
	}
	return true
}

// HandleMessage is Handle for a parsed message of any kind.
func (n *Negotiator) HandleMessage(msg Message) ([]Message, error) {
	switch body := msg.Body.(type) {
	case CapMessage:
		return n.Handle(body)
	case GenericBody:
		if body.Cmd != Named("CAP") {
			return nil, &UnexpectedCommandError{Command: body.Cmd}
		}
		// Built by hand rather than parsed: read it with the CAP grammar.
		capMsg, err := capMessageFromGeneric(body)
		if err == nil {
			return n.Handle(capMsg)
		}
		var sub string
		if len(body.Parameters) >= 2 {
			sub = body.Parameters[1]
		}
		if _, ok := parseCapVerb(sub); ok {
			return nil, err
		}
		return nil, &UnexpectedSubcommandError{Subcommand: sub}
	default:
		return nil, &UnexpectedCommandError{Command: msg.Command()}
	}
}

// Handle processes a CAP message from the server and returns the messages
// to send back. On error, the negotiator state is left unchanged.
func (n *Negotiator) Handle(msg CapMessage) ([]Message, error) {
	switch msg.Sub.Verb {
	case CapLS:
		return n.handleLS(msg.Sub), nil
	case CapACK:
		n.resolve(msg.Sub.Capabilities, &n.acknowledged)
		return nil, nil
	case CapNAK:
		n.resolve(msg.Sub.Capabilities, &n.notAcknowledged)
		return nil, nil
	default:
		// LIST, NEW, DEL and REQ are not handled yet.
		return nil, &UnexpectedSubcommandError{Subcommand: msg.Sub.Verb.String()}
	}
}

// handleLS buffers the requested capabilities found in a multiline reply,
// and requests all of them at once on its last line.
func (n *Negotiator) handleLS(sub CapSubCommand) []Message {
	for _, c := range sub.Capabilities {
		i := indexCapability(n.requested, c)
		if i < 0 || indexCapability(n.advertised, c) >= 0 {
			continue
		}
		n.advertised = append(n.advertised, n.requested[i])
	}
	if sub.Multiline {
		return nil
	}

	reqs := n.advertised
	n.advertised = nil
	n.listed = true
	if len(reqs) == 0 {
		return nil
	}
	n.issued = append(n.issued, reqs...)
	return []Message{NewMessage("CAP", "REQ", joinCapabilities(reqs))}
}

// resolve moves the named capabilities out of requested, keeping the
// requested shape.
func (n *Negotiator) resolve(caps []Capability, into *[]Capability) {
	for _, c := range caps {
		i := indexCapability(n.requested, c)
		if i < 0 {
			continue
		}
		*into = append(*into, n.requested[i])
		n.requested = slices.Delete(n.requested, i, i+1)
	}
}
