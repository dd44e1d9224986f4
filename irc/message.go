package irc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TagValue is the value of a message tag. HasValue is false for valueless
// tags ("@rose"), and true for explicitly empty ones ("@url=").
type TagValue struct {
	Value    string
	HasValue bool
}

// Tags maps tag keys to their unescaped value.
type Tags map[string]TagValue

// Keys returns the tag keys in serialization order.
func (tags Tags) Keys() []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Source identifies the origin of a message. It is either a HostSource or a
// UserSource.
type Source interface {
	fmt.Stringer
	isSource()
}

// HostSource is a source made of a single name, usually a server.
type HostSource struct {
	Name string
}

func (HostSource) isSource() {}

func (src HostSource) String() string {
	return src.Name
}

// UserSource is a nick!user@host source. User and Host are empty when absent.
type UserSource struct {
	Nick string
	User string
	Host string
}

func (UserSource) isSource() {}

func (src UserSource) String() string {
	s := src.Nick
	if src.User != "" {
		s += "!" + src.User
	}
	if src.Host != "" {
		s += "@" + src.Host
	}
	return s
}

// Command is either a three-digit numeric reply or a named command.
type Command struct {
	code  int
	name  string
	named bool
}

// Numeric returns the numeric command code.
func Numeric(code int) Command {
	return Command{code: code}
}

// Named returns the command word name.
func Named(name string) Command {
	return Command{name: name, named: true}
}

func (cmd Command) IsNumeric() bool {
	return !cmd.named
}

// Code returns the numeric code, or 0 for named commands.
func (cmd Command) Code() int {
	return cmd.code
}

// Name returns the command word, or "" for numerics.
func (cmd Command) Name() string {
	return cmd.name
}

// Valid reports whether the command can be written on the wire.
func (cmd Command) Valid() bool {
	if cmd.named {
		return cmd.name != ""
	}
	return 1 <= cmd.code && cmd.code <= 999
}

func (cmd Command) String() string {
	if cmd.named {
		return cmd.name
	}
	return fmt.Sprintf("%03d", cmd.code)
}

// MessageBody is the part of a message after its tags and source. It is
// either a GenericBody or a CapMessage.
type MessageBody interface {
	Command() Command
	// Params returns the parameter list as it appears on the wire.
	Params() []string
	String() string
	isBody()
}

// GenericBody is a command and its parameters. The last parameter is the
// trailing one and may contain spaces.
type GenericBody struct {
	Cmd        Command
	Parameters []string
}

func (GenericBody) isBody() {}

func (body GenericBody) Command() Command {
	return body.Cmd
}

func (body GenericBody) Params() []string {
	return body.Parameters
}

func (body GenericBody) String() string {
	var sb strings.Builder
	sb.WriteString(body.Cmd.String())
	writeParams(&sb, body.Parameters)
	return sb.String()
}

// writeParams writes parameters with a leading space each. The last
// parameter is omitted when empty, and gets a colon when it needs one.
func writeParams(sb *strings.Builder, params []string) {
	if len(params) == 0 {
		return
	}
	for _, p := range params[:len(params)-1] {
		sb.WriteByte(' ')
		sb.WriteString(p)
	}
	last := params[len(params)-1]
	if last == "" {
		return
	}
	sb.WriteByte(' ')
	if strings.ContainsRune(last, ' ') || last[0] == ':' {
		sb.WriteByte(':')
	}
	sb.WriteString(last)
}

// Message is an IRC message.
type Message struct {
	Tags   Tags
	Source Source // nil if absent
	Body   MessageBody
}

// NewMessage returns a generic message without tags or source.
func NewMessage(command string, params ...string) Message {
	return Message{
		Body: GenericBody{
			Cmd:        Named(command),
			Parameters: params,
		},
	}
}

// Command returns the command of the message body.
func (msg Message) Command() Command {
	if msg.Body == nil {
		return Command{}
	}
	return msg.Body.Command()
}

// Params returns the parameters of the message body.
func (msg Message) Params() []string {
	if msg.Body == nil {
		return nil
	}
	return msg.Body.Params()
}

// ParseParams copies the leading parameters into out. A nil pointer skips
// the matching parameter.
func (msg Message) ParseParams(out ...*string) error {
	params := msg.Params()
	if len(params) < len(out) {
		return msg.errNotEnoughParams(len(out))
	}
	for i := range out {
		if out[i] != nil {
			*out[i] = params[i]
		}
	}
	return nil
}

func (msg Message) errNotEnoughParams(expected int) error {
	return fmt.Errorf("expected (at least) %d params, got %d", expected, len(msg.Params()))
}

// String returns the wire form of the message, without the line terminator.
//
// An empty last parameter is dropped: "TEST :" parses to a single empty
// parameter but serializes back as "TEST".
func (msg Message) String() string {
	var sb strings.Builder
	if len(msg.Tags) > 0 {
		sb.WriteByte('@')
		for i, k := range msg.Tags.Keys() {
			if i > 0 {
				sb.WriteByte(';')
			}
			sb.WriteString(k)
			if v := msg.Tags[k]; v.HasValue {
				sb.WriteByte('=')
				sb.WriteString(escapeTagValue(v.Value))
			}
		}
		sb.WriteByte(' ')
	}
	if msg.Source != nil {
		sb.WriteByte(':')
		sb.WriteString(msg.Source.String())
		sb.WriteByte(' ')
	}
	if msg.Body != nil {
		sb.WriteString(msg.Body.String())
	}
	return sb.String()
}

// UnexpectedNodeError is returned when a syntax tree does not have the
// shape the message parser expects.
type UnexpectedNodeError struct {
	Parent  Rule
	Node    Rule
	Pos     int
	Missing bool // Node was expected but absent
}

func (err *UnexpectedNodeError) Error() string {
	if err.Missing {
		return fmt.Sprintf("irc: missing %v in %v at position %d", err.Node, err.Parent, err.Pos)
	}
	return fmt.Sprintf("irc: unexpected %v in %v at position %d", err.Node, err.Parent, err.Pos)
}

func unexpectedNode(parent, n *Node) error {
	return &UnexpectedNodeError{Parent: parent.Rule, Node: n.Rule, Pos: n.Start}
}

func missingNode(parent *Node, rule Rule) error {
	return &UnexpectedNodeError{Parent: parent.Rule, Node: rule, Pos: parent.Start, Missing: true}
}

// ParseMessage parses one line, without its terminator.
func ParseMessage(line string) (Message, error) {
	root, err := Parse(RuleMessage, line)
	if err != nil {
		return Message{}, err
	}
	return messageFromNode(root)
}

func messageFromNode(n *Node) (msg Message, err error) {
	if n.Rule != RuleMessage {
		return Message{}, &UnexpectedNodeError{Parent: RuleMessage, Node: n.Rule, Pos: n.Start}
	}
	for _, c := range n.Children {
		switch c.Rule {
		case RuleTags:
			msg.Tags, err = tagsFromNode(c)
		case RuleSource:
			msg.Source, err = sourceFromNode(c)
		case RuleGenericMessage:
			msg.Body, err = genericFromNode(c)
		case RuleMsgCap:
			msg.Body, err = capMessageFromNode(c)
		default:
			err = unexpectedNode(n, c)
		}
		if err != nil {
			return Message{}, err
		}
	}
	if msg.Body == nil {
		return Message{}, missingNode(n, RuleGenericMessage)
	}
	return msg, nil
}

func tagsFromNode(n *Node) (Tags, error) {
	tags := make(Tags, len(n.Children))
	for _, tag := range n.Children {
		if tag.Rule != RuleTag {
			return nil, unexpectedNode(n, tag)
		}
		var key string
		var value TagValue
		for _, c := range tag.Children {
			switch c.Rule {
			case RuleKey:
				key = c.Text()
			case RuleAssignment:
				value.HasValue = true
			case RuleEscapedValue:
				value.Value = unescapeTagValue(c.Text())
			default:
				return nil, unexpectedNode(tag, c)
			}
		}
		if key == "" {
			return nil, missingNode(tag, RuleKey)
		}
		tags[key] = value
	}
	return tags, nil
}

func sourceFromNode(n *Node) (Source, error) {
	var name, user, host string
	for _, c := range n.Children {
		switch c.Rule {
		case RuleName:
			name = c.Text()
		case RuleUser:
			user = c.Text()
		case RuleHost:
			host = c.Text()
		default:
			return nil, unexpectedNode(n, c)
		}
	}
	if name == "" {
		return nil, missingNode(n, RuleName)
	}
	if user == "" && host == "" {
		return HostSource{Name: name}, nil
	}
	return UserSource{Nick: name, User: user, Host: host}, nil
}

func genericFromNode(n *Node) (GenericBody, error) {
	var body GenericBody
	hasCommand := false
	for _, c := range n.Children {
		switch c.Rule {
		case RuleCommand:
			cmd, err := commandFromNode(c)
			if err != nil {
				return GenericBody{}, err
			}
			body.Cmd = cmd
			hasCommand = true
		case RuleParameters:
			params, err := paramsFromNode(c)
			if err != nil {
				return GenericBody{}, err
			}
			body.Parameters = params
		default:
			return GenericBody{}, unexpectedNode(n, c)
		}
	}
	if !hasCommand {
		return GenericBody{}, missingNode(n, RuleCommand)
	}
	return body, nil
}

func commandFromNode(n *Node) (Command, error) {
	if len(n.Children) != 1 {
		return Command{}, missingNode(n, RuleWord)
	}
	c := n.Children[0]
	switch c.Rule {
	case RuleDigit3:
		code, err := strconv.Atoi(c.Text())
		if err != nil {
			return Command{}, unexpectedNode(n, c)
		}
		return Numeric(code), nil
	case RuleWord:
		return Named(c.Text()), nil
	default:
		return Command{}, unexpectedNode(n, c)
	}
}

func paramsFromNode(n *Node) ([]string, error) {
	params := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		switch c.Rule {
		case RuleMiddle:
			params = append(params, c.Text())
		case RuleTrailing:
			inner := c.Child(RuleTrailingInner)
			if inner == nil {
				return nil, missingNode(c, RuleTrailingInner)
			}
			params = append(params, inner.Text())
		default:
			return nil, unexpectedNode(n, c)
		}
	}
	return params, nil
}

var tagEscapes = strings.NewReplacer(
	"\\", "\\\\",
	";", "\\:",
	" ", "\\s",
	"\r", "\\r",
	"\n", "\\n",
)

func escapeTagValue(value string) string {
	return tagEscapes.Replace(value)
}

func unescapeTagValue(value string) string {
	if !strings.ContainsRune(value, '\\') {
		return value
	}
	var sb strings.Builder
	sb.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i == len(value) {
			// a lone trailing backslash is dropped
			break
		}
		switch value[i] {
		case ':':
			sb.WriteByte(';')
		case 's':
			sb.WriteByte(' ')
		case 'r':
			sb.WriteByte('\r')
		case 'n':
			sb.WriteByte('\n')
		default:
			sb.WriteByte(value[i])
		}
	}
	return sb.String()
}
