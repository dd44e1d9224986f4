package irc

import (
	"fmt"
	"strings"
)

// CapTarget is the first parameter of a server CAP message: CapStar before
// registration, the client nick after.
type CapTarget string

const CapStar CapTarget = "*"

// CapVerb is a CAP subcommand.
type CapVerb int

const (
	CapLS CapVerb = iota
	CapLIST
	CapREQ
	CapACK
	CapNAK
	CapNEW
	CapDEL
)

var capVerbNames = [...]string{
	CapLS:   "LS",
	CapLIST: "LIST",
	CapREQ:  "REQ",
	CapACK:  "ACK",
	CapNAK:  "NAK",
	CapNEW:  "NEW",
	CapDEL:  "DEL",
}

func (v CapVerb) String() string {
	if v < 0 || int(v) >= len(capVerbNames) {
		return fmt.Sprintf("CapVerb(%d)", int(v))
	}
	return capVerbNames[v]
}

func parseCapVerb(s string) (CapVerb, bool) {
	for v, name := range capVerbNames {
		if name == s {
			return CapVerb(v), true
		}
	}
	return 0, false
}

// CapSubCommand is the subcommand of a CAP message and its capability list.
// Multiline is only meaningful for LS and LIST, where it marks a reply
// continued on the next line.
type CapSubCommand struct {
	Verb         CapVerb
	Multiline    bool
	Capabilities []Capability
}

// CapMessage is a CAP message sent by a server.
type CapMessage struct {
	Target CapTarget
	Sub    CapSubCommand
}

// NewCapMessage returns a single-line CAP message.
func NewCapMessage(target CapTarget, verb CapVerb, caps ...Capability) CapMessage {
	return CapMessage{
		Target: target,
		Sub: CapSubCommand{
			Verb:         verb,
			Capabilities: caps,
		},
	}
}

func (CapMessage) isBody() {}

func (msg CapMessage) Command() Command {
	return Named("CAP")
}

func (msg CapMessage) target() string {
	if msg.Target == "" {
		return string(CapStar)
	}
	return string(msg.Target)
}

func (msg CapMessage) Params() []string {
	params := []string{msg.target(), msg.Sub.Verb.String()}
	if msg.Sub.Multiline {
		params = append(params, "*")
	}
	return append(params, joinCapabilities(msg.Sub.Capabilities))
}

// String always writes the capability list as a trailing parameter, so that
// an empty list stays a bare colon.
func (msg CapMessage) String() string {
	var sb strings.Builder
	sb.WriteString("CAP ")
	sb.WriteString(msg.target())
	sb.WriteByte(' ')
	sb.WriteString(msg.Sub.Verb.String())
	if msg.Sub.Multiline {
		sb.WriteString(" *")
	}
	sb.WriteString(" :")
	sb.WriteString(joinCapabilities(msg.Sub.Capabilities))
	return sb.String()
}

// ParseCapMessage parses the body of a CAP message, starting at the
// command: "CAP * LS * :sasl multi-prefix".
func ParseCapMessage(s string) (CapMessage, error) {
	n, err := Parse(RuleMsgCap, s)
	if err != nil {
		return CapMessage{}, err
	}
	return capMessageFromNode(n)
}

// capMessageFromGeneric reads a generic CAP body, such as one made with a
// MessageBuilder, with the CAP grammar. The last parameter is always read as
// the capability list, even when empty.
func capMessageFromGeneric(body GenericBody) (CapMessage, error) {
	params := body.Parameters
	if body.Cmd != Named("CAP") || len(params) < 2 {
		return CapMessage{}, &ParseError{Rule: RuleMsgCap, Reason: "not enough CAP parameters"}
	}
	var sb strings.Builder
	sb.WriteString("CAP")
	for _, p := range params[:len(params)-1] {
		sb.WriteByte(' ')
		sb.WriteString(p)
	}
	sb.WriteString(" :")
	sb.WriteString(params[len(params)-1])
	return ParseCapMessage(sb.String())
}

func capMessageFromNode(n *Node) (CapMessage, error) {
	var msg CapMessage
	var hasTarget, hasSub bool
	for _, c := range n.Children {
		switch c.Rule {
		case RuleCapNick:
			target, err := capTargetFromNode(c)
			if err != nil {
				return CapMessage{}, err
			}
			msg.Target = target
			hasTarget = true
		case RuleCapCmd:
			sub, err := capSubCommandFromNode(c)
			if err != nil {
				return CapMessage{}, err
			}
			msg.Sub = sub
			hasSub = true
		default:
			return CapMessage{}, unexpectedNode(n, c)
		}
	}
	if !hasTarget {
		return CapMessage{}, missingNode(n, RuleCapNick)
	}
	if !hasSub {
		return CapMessage{}, missingNode(n, RuleCapCmd)
	}
	return msg, nil
}

func capTargetFromNode(n *Node) (CapTarget, error) {
	if len(n.Children) != 1 {
		return "", missingNode(n, RuleNick)
	}
	c := n.Children[0]
	switch c.Rule {
	case RuleStar:
		return CapStar, nil
	case RuleNick:
		return CapTarget(c.Text()), nil
	default:
		return "", unexpectedNode(n, c)
	}
}

func capSubCommandFromNode(n *Node) (CapSubCommand, error) {
	var sub CapSubCommand
	var hasVerb bool
	for _, c := range n.Children {
		switch c.Rule {
		case RuleCapVerb:
			verb, ok := parseCapVerb(c.Text())
			if !ok {
				return CapSubCommand{}, unexpectedNode(n, c)
			}
			sub.Verb = verb
			hasVerb = true
		case RuleMultiline:
			sub.Multiline = true
		case RuleCapList:
			for _, cc := range c.Children {
				capability, err := capabilityFromNode(cc)
				if err != nil {
					return CapSubCommand{}, err
				}
				sub.Capabilities = append(sub.Capabilities, capability)
			}
		default:
			return CapSubCommand{}, unexpectedNode(n, c)
		}
	}
	if !hasVerb {
		return CapSubCommand{}, missingNode(n, RuleCapVerb)
	}
	return sub, nil
}
