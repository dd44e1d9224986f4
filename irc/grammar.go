package irc

import (
	"fmt"
	"strings"
)

// Rule identifies a production of the line grammar.
type Rule int

const (
	RuleMessage Rule = iota
	RuleTags
	RuleTag
	RuleKey
	RuleAssignment
	RuleEscapedValue
	RuleSource
	RuleName
	RuleUser
	RuleHost
	RuleGenericMessage
	RuleCommand
	RuleDigit3
	RuleWord
	RuleParameters
	RuleMiddle
	RuleTrailing
	RuleTrailingInner
	RuleMsgCap
	RuleCapNick
	RuleStar
	RuleNick
	RuleCapCmd
	RuleCapVerb
	RuleMultiline
	RuleCapList
	RuleCapability
	RuleMinus
	RuleCapKey
	RuleCapValues
	RuleCapValue
)

var ruleNames = [...]string{
	RuleMessage:        "message",
	RuleTags:           "tags",
	RuleTag:            "tag",
	RuleKey:            "key",
	RuleAssignment:     "assignment",
	RuleEscapedValue:   "escaped_value",
	RuleSource:         "source",
	RuleName:           "name",
	RuleUser:           "user",
	RuleHost:           "host",
	RuleGenericMessage: "generic_message",
	RuleCommand:        "command",
	RuleDigit3:         "digit3",
	RuleWord:           "word",
	RuleParameters:     "parameters",
	RuleMiddle:         "middle",
	RuleTrailing:       "trailing",
	RuleTrailingInner:  "trailing_inner",
	RuleMsgCap:         "msg_cap",
	RuleCapNick:        "cap_nick",
	RuleStar:           "star",
	RuleNick:           "nick",
	RuleCapCmd:         "cap_cmd",
	RuleCapVerb:        "cap_verb",
	RuleMultiline:      "multiline",
	RuleCapList:        "cap_list",
	RuleCapability:     "capability",
	RuleMinus:          "minus",
	RuleCapKey:         "cap_key",
	RuleCapValues:      "cap_values",
	RuleCapValue:       "cap_value",
}

func (r Rule) String() string {
	if r < 0 || int(r) >= len(ruleNames) {
		return fmt.Sprintf("rule(%d)", int(r))
	}
	return ruleNames[r]
}

// capVerbs are the subcommand words recognized by the CAP sub-grammar.
var capVerbs = map[string]struct{}{
	"LS":   {},
	"LIST": {},
	"REQ":  {},
	"ACK":  {},
	"NAK":  {},
	"NEW":  {},
	"DEL":  {},
}

// Node is a node of the syntax tree produced by Parse.
//
// Start and End are byte offsets into the parsed input. A node carries no
// interpretation of its text: tag values are still escaped and numerics are
// still digits.
type Node struct {
	Rule     Rule
	Start    int
	End      int
	Children []*Node

	input string
}

// Text returns the input span covered by the node.
func (n *Node) Text() string {
	return n.input[n.Start:n.End]
}

// Child returns the first direct child matching rule, or nil.
func (n *Node) Child(rule Rule) *Node {
	for _, c := range n.Children {
		if c.Rule == rule {
			return c
		}
	}
	return nil
}

func (n *Node) add(c *Node) {
	n.Children = append(n.Children, c)
}

// ParseError is returned when the input does not match the line grammar.
type ParseError struct {
	Rule   Rule   // rule that failed to match
	Pos    int    // byte offset of the failure
	Reason string // short description
}

func (err *ParseError) Error() string {
	return fmt.Sprintf("irc: invalid %v at position %d: %s", err.Rule, err.Pos, err.Reason)
}

// Parse recognizes the whole input against an entry rule and returns its
// syntax tree.
//
// Valid entry rules are RuleMessage, RuleGenericMessage, RuleMsgCap,
// RuleMiddle, RuleTrailing and RuleCapability.
func Parse(rule Rule, input string) (*Node, error) {
	t := &tokenizer{input: input}

	var n *Node
	var err error
	switch rule {
	case RuleMessage:
		n, err = t.message()
	case RuleGenericMessage:
		n, err = t.genericMessage()
	case RuleMsgCap:
		n, err = t.msgCap()
	case RuleMiddle:
		n, err = t.middle()
	case RuleTrailing:
		n, err = t.trailing()
	case RuleCapability:
		n, err = t.capability()
	default:
		return nil, &ParseError{Rule: rule, Reason: "not an entry rule"}
	}
	if err != nil {
		return nil, err
	}
	if !t.eof() {
		return nil, t.unexpected(rule)
	}
	return n, nil
}

type tokenizer struct {
	input string
	pos   int
}

func (t *tokenizer) eof() bool {
	return t.pos >= len(t.input)
}

func (t *tokenizer) peek(c byte) bool {
	return t.pos < len(t.input) && t.input[t.pos] == c
}

func (t *tokenizer) accept(c byte) bool {
	if t.peek(c) {
		t.pos++
		return true
	}
	return false
}

func (t *tokenizer) open(rule Rule) *Node {
	return &Node{Rule: rule, Start: t.pos, End: t.pos, input: t.input}
}

func (t *tokenizer) close(n *Node) *Node {
	n.End = t.pos
	return n
}

// span consumes the longest run of bytes accepted by ok. It returns nil if
// the run is empty.
func (t *tokenizer) span(rule Rule, ok func(c byte) bool) *Node {
	n := t.open(rule)
	for t.pos < len(t.input) && ok(t.input[t.pos]) {
		t.pos++
	}
	if t.pos == n.Start {
		return nil
	}
	return t.close(n)
}

func (t *tokenizer) errorf(rule Rule, format string, args ...interface{}) *ParseError {
	return &ParseError{Rule: rule, Pos: t.pos, Reason: fmt.Sprintf(format, args...)}
}

func (t *tokenizer) unexpected(rule Rule) *ParseError {
	if t.eof() {
		return t.errorf(rule, "unexpected end of line")
	}
	return t.errorf(rule, "unexpected %q", t.input[t.pos])
}

func (t *tokenizer) message() (*Node, error) {
	n := t.open(RuleMessage)
	if t.peek('@') {
		tags, err := t.tags()
		if err != nil {
			return nil, err
		}
		n.add(tags)
	}
	if t.peek(':') {
		source, err := t.source()
		if err != nil {
			return nil, err
		}
		n.add(source)
	}

	if strings.HasPrefix(t.input[t.pos:], "CAP ") {
		start := t.pos
		msgCap, err := t.msgCap()
		if err == nil {
			n.add(msgCap)
			return t.close(n), nil
		}
		if !capFallback(err) {
			return nil, err
		}
		// No server subcommand, such as a client "CAP LS 302": read it as a
		// generic message.
		t.pos = start
	}

	body, err := t.genericMessage()
	if err != nil {
		return nil, err
	}
	n.add(body)
	if !t.eof() {
		return nil, t.unexpected(RuleParameters)
	}
	return t.close(n), nil
}

// capFallback reports whether a CAP sub-grammar failure happened before a
// known subcommand was read. Failures in the subcommand body are errors.
func capFallback(err error) bool {
	perr, ok := err.(*ParseError)
	if !ok {
		return false
	}
	switch perr.Rule {
	case RuleMsgCap, RuleCapNick, RuleCapVerb:
		return true
	default:
		return false
	}
}

func (t *tokenizer) tags() (*Node, error) {
	n := t.open(RuleTags)
	t.pos++ // '@'
	for {
		tag, err := t.tag()
		if err != nil {
			return nil, err
		}
		n.add(tag)
		if !t.accept(';') {
			break
		}
	}
	t.close(n)
	if !t.accept(' ') {
		return nil, t.unexpected(RuleTags)
	}
	return n, nil
}

func (t *tokenizer) tag() (*Node, error) {
	n := t.open(RuleTag)
	key := t.span(RuleKey, isTagKeyChar)
	if key == nil {
		return nil, t.errorf(RuleKey, "empty tag key")
	}
	n.add(key)
	if t.peek('=') {
		n.add(&Node{Rule: RuleAssignment, Start: t.pos, End: t.pos + 1, input: t.input})
		t.pos++
		if value := t.span(RuleEscapedValue, isTagValueChar); value != nil {
			n.add(value)
		}
	}
	return t.close(n), nil
}

func (t *tokenizer) source() (*Node, error) {
	n := t.open(RuleSource)
	t.pos++ // ':'

	name := t.span(RuleName, isPrefixChar)
	if name == nil {
		return nil, t.errorf(RuleName, "empty source name")
	}
	n.add(name)
	last := RuleName
	if t.accept('!') {
		user := t.span(RuleUser, isPrefixChar)
		if user == nil {
			return nil, t.errorf(RuleUser, "empty user")
		}
		n.add(user)
		last = RuleUser
	}
	if t.accept('@') {
		host := t.span(RuleHost, isPrefixChar)
		if host == nil {
			return nil, t.errorf(RuleHost, "empty host")
		}
		n.add(host)
		last = RuleHost
	}
	t.close(n)
	if !t.accept(' ') {
		return nil, t.unexpected(last)
	}
	return n, nil
}

func (t *tokenizer) genericMessage() (*Node, error) {
	n := t.open(RuleGenericMessage)
	cmd, err := t.command()
	if err != nil {
		return nil, err
	}
	n.add(cmd)
	if t.peek(' ') {
		params, err := t.parameters()
		if err != nil {
			return nil, err
		}
		n.add(params)
	}
	return t.close(n), nil
}

func (t *tokenizer) command() (*Node, error) {
	n := t.open(RuleCommand)
	if digits := t.span(RuleDigit3, isDigit); digits != nil {
		if digits.End-digits.Start != 3 {
			t.pos = digits.Start
			return nil, t.errorf(RuleDigit3, "numeric command must have three digits")
		}
		n.add(digits)
	} else if word := t.span(RuleWord, isLetter); word != nil {
		n.add(word)
	} else {
		return nil, t.errorf(RuleCommand, "missing command")
	}
	if !t.eof() && !t.peek(' ') {
		return nil, t.unexpected(RuleCommand)
	}
	return t.close(n), nil
}

func (t *tokenizer) parameters() (*Node, error) {
	n := t.open(RuleParameters)
	for t.accept(' ') {
		if t.peek(':') {
			trailing, err := t.trailing()
			if err != nil {
				return nil, err
			}
			n.add(trailing)
			break
		}
		middle, err := t.middle()
		if err != nil {
			return nil, err
		}
		n.add(middle)
	}
	return t.close(n), nil
}

func (t *tokenizer) middle() (*Node, error) {
	if t.peek(':') {
		return nil, t.errorf(RuleMiddle, "middle parameter starts with ':'")
	}
	middle := t.span(RuleMiddle, isMiddleChar)
	if middle == nil {
		return nil, t.errorf(RuleMiddle, "empty parameter")
	}
	return middle, nil
}

func (t *tokenizer) trailing() (*Node, error) {
	n := t.open(RuleTrailing)
	if !t.accept(':') {
		return nil, t.unexpected(RuleTrailing)
	}
	inner := t.open(RuleTrailingInner)
	for t.pos < len(t.input) && isTrailingChar(t.input[t.pos]) {
		t.pos++
	}
	n.add(t.close(inner))
	return t.close(n), nil
}

func (t *tokenizer) msgCap() (*Node, error) {
	n := t.open(RuleMsgCap)
	if !strings.HasPrefix(t.input[t.pos:], "CAP ") {
		return nil, t.errorf(RuleMsgCap, "expected CAP command")
	}
	t.pos += len("CAP ")

	nick, err := t.capNick()
	if err != nil {
		return nil, err
	}
	n.add(nick)
	if !t.accept(' ') {
		return nil, t.unexpected(RuleCapNick)
	}

	cmd, err := t.capCmd()
	if err != nil {
		return nil, err
	}
	n.add(cmd)
	return t.close(n), nil
}

func (t *tokenizer) capNick() (*Node, error) {
	n := t.open(RuleCapNick)
	if t.peek('*') && (t.pos+1 == len(t.input) || t.input[t.pos+1] == ' ') {
		n.add(&Node{Rule: RuleStar, Start: t.pos, End: t.pos + 1, input: t.input})
		t.pos++
		return t.close(n), nil
	}
	if t.peek(':') {
		return nil, t.unexpected(RuleCapNick)
	}
	nick := t.span(RuleNick, isMiddleChar)
	if nick == nil {
		return nil, t.errorf(RuleCapNick, "empty nick")
	}
	n.add(nick)
	return t.close(n), nil
}

func (t *tokenizer) capCmd() (*Node, error) {
	n := t.open(RuleCapCmd)
	verb := t.span(RuleCapVerb, isUpper)
	if verb == nil {
		return nil, t.errorf(RuleCapVerb, "missing subcommand")
	}
	if _, ok := capVerbs[verb.Text()]; !ok {
		t.pos = verb.Start
		return nil, t.errorf(RuleCapVerb, "unknown subcommand %q", verb.Text())
	}
	n.add(verb)
	if !t.accept(' ') {
		return nil, t.unexpected(RuleCapCmd)
	}

	switch verb.Text() {
	case "LS", "LIST":
		if strings.HasPrefix(t.input[t.pos:], "* ") {
			n.add(&Node{Rule: RuleMultiline, Start: t.pos, End: t.pos + 1, input: t.input})
			t.pos += 2
		}
	}

	list, err := t.capList()
	if err != nil {
		return nil, err
	}
	n.add(list)
	return t.close(n), nil
}

// capList reads either a trailing parameter holding a space-separated,
// possibly empty list, or a single capability without the colon.
func (t *tokenizer) capList() (*Node, error) {
	n := t.open(RuleCapList)
	if t.accept(':') {
		for !t.eof() {
			// Some servers pad the list with extra spaces.
			if t.accept(' ') {
				continue
			}
			c, err := t.capability()
			if err != nil {
				return nil, err
			}
			n.add(c)
		}
	} else {
		c, err := t.capability()
		if err != nil {
			return nil, err
		}
		n.add(c)
	}
	if !t.eof() {
		return nil, t.unexpected(RuleCapList)
	}
	return t.close(n), nil
}

func (t *tokenizer) capability() (*Node, error) {
	n := t.open(RuleCapability)
	if t.peek('-') {
		n.add(&Node{Rule: RuleMinus, Start: t.pos, End: t.pos + 1, input: t.input})
		t.pos++
	}
	key := t.span(RuleCapKey, isCapKeyChar)
	if key == nil {
		return nil, t.errorf(RuleCapKey, "empty capability name")
	}
	n.add(key)
	if t.accept('=') {
		values := t.open(RuleCapValues)
		for {
			value := t.open(RuleCapValue)
			for t.pos < len(t.input) && isCapValueChar(t.input[t.pos]) {
				t.pos++
			}
			values.add(t.close(value))
			if !t.accept(',') {
				break
			}
		}
		n.add(t.close(values))
	}
	return t.close(n), nil
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isUpper(c byte) bool {
	return 'A' <= c && c <= 'Z'
}

func isLetter(c byte) bool {
	return isUpper(c) || ('a' <= c && c <= 'z')
}

func isSpecial(c byte) bool {
	return c == ' ' || c == 0 || c == '\r' || c == '\n'
}

func isTagKeyChar(c byte) bool {
	return !isSpecial(c) && c != ';' && c != '='
}

func isTagValueChar(c byte) bool {
	return !isSpecial(c) && c != ';'
}

// isPrefixChar reports whether c may appear in the name, user or host part
// of a source.
func isPrefixChar(c byte) bool {
	return !isSpecial(c) && c != '!' && c != '@'
}

func isMiddleChar(c byte) bool {
	return !isSpecial(c)
}

func isTrailingChar(c byte) bool {
	return c != '\r' && c != '\n'
}

// isCapKeyChar accepts the same bytes as a tag key.
func isCapKeyChar(c byte) bool {
	return isTagKeyChar(c)
}

func isCapValueChar(c byte) bool {
	return !isSpecial(c) && c != ','
}
