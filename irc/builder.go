package irc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotGeneric is returned by MessageBuilder.Build when parameters were
// added to a capability message.
var ErrNotGeneric = errors.New("irc: parameters require a generic message body")

var errBuilderUsed = errors.New("irc: message builder already used")

// MessageBuilder constructs a Message without going through its wire form.
//
// Errors are recorded as the message is built and reported by Build. A
// builder must not be reused after Build.
type MessageBuilder struct {
	msg Message
	err error
}

// NewBuilder starts a generic message.
func NewBuilder(cmd Command) *MessageBuilder {
	return &MessageBuilder{msg: Message{Body: GenericBody{Cmd: cmd}}}
}

// NewCommandBuilder starts a generic message with a named command.
func NewCommandBuilder(command string) *MessageBuilder {
	return NewBuilder(Named(command))
}

// NewCapBuilder starts a capability message. Param and Params are not
// allowed on it.
func NewCapBuilder(msg CapMessage) *MessageBuilder {
	return &MessageBuilder{msg: Message{Body: msg}}
}

func (b *MessageBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Param appends a parameter.
func (b *MessageBuilder) Param(param string) *MessageBuilder {
	body, ok := b.msg.Body.(GenericBody)
	if !ok {
		b.fail(ErrNotGeneric)
		return b
	}
	body.Parameters = append(body.Parameters, param)
	b.msg.Body = body
	return b
}

// Params replaces the parameter list.
func (b *MessageBuilder) Params(params ...string) *MessageBuilder {
	body, ok := b.msg.Body.(GenericBody)
	if !ok {
		b.fail(ErrNotGeneric)
		return b
	}
	body.Parameters = append([]string(nil), params...)
	b.msg.Body = body
	return b
}

// Tag sets a tag without a value.
func (b *MessageBuilder) Tag(key string) *MessageBuilder {
	return b.setTag(key, TagValue{})
}

// TagValue sets a tag with a value, which may be empty.
func (b *MessageBuilder) TagValue(key, value string) *MessageBuilder {
	return b.setTag(key, TagValue{Value: value, HasValue: true})
}

func (b *MessageBuilder) setTag(key string, value TagValue) *MessageBuilder {
	if key == "" || strings.ContainsAny(key, " ;=\x00\r\n") {
		b.fail(fmt.Errorf("irc: invalid tag key %q", key))
		return b
	}
	if b.msg.Tags == nil {
		b.msg.Tags = Tags{}
	}
	b.msg.Tags[key] = value
	return b
}

// Host sets a single-name source.
func (b *MessageBuilder) Host(name string) *MessageBuilder {
	b.msg.Source = HostSource{Name: name}
	return b
}

// User sets a nick!user@host source.
func (b *MessageBuilder) User(src UserSource) *MessageBuilder {
	b.msg.Source = src
	return b
}

// Build returns the message, or the first error recorded while building it.
func (b *MessageBuilder) Build() (Message, error) {
	if b.err != nil {
		return Message{}, b.err
	}
	if body, ok := b.msg.Body.(GenericBody); ok {
		if err := validateGeneric(body); err != nil {
			return Message{}, err
		}
	}
	msg := b.msg
	b.msg = Message{}
	b.err = errBuilderUsed
	return msg, nil
}

func validateGeneric(body GenericBody) error {
	if !body.Cmd.Valid() {
		return fmt.Errorf("irc: invalid command %q", body.Cmd.String())
	}
	for i, p := range body.Parameters {
		if strings.ContainsAny(p, "\x00\r\n") {
			return fmt.Errorf("irc: parameter %d contains a line terminator", i)
		}
		if i == len(body.Parameters)-1 {
			break
		}
		if p == "" || p[0] == ':' || strings.ContainsRune(p, ' ') {
			return fmt.Errorf("irc: invalid middle parameter %q", p)
		}
	}
	return nil
}
