package irc

import "strings"

// CapabilityKind is the syntactic shape of a capability token.
type CapabilityKind int

const (
	CapEnabled  CapabilityKind = iota // name
	CapValued                         // name=v1,v2
	CapDisabled                       // -name
)

// Capability is one capability token, as advertised by a server or
// requested by a client.
type Capability struct {
	Name     string
	Values   []string // only for CapValued
	Disabled bool
}

func NewCapability(name string) Capability {
	return Capability{Name: name}
}

// CapabilityWithValues returns a valued capability, or an enabled one if no
// value is given.
func CapabilityWithValues(name string, values ...string) Capability {
	if len(values) == 0 {
		return NewCapability(name)
	}
	return Capability{Name: name, Values: values}
}

func DisabledCapability(name string) Capability {
	return Capability{Name: name, Disabled: true}
}

func (c Capability) Kind() CapabilityKind {
	switch {
	case c.Disabled:
		return CapDisabled
	case len(c.Values) > 0:
		return CapValued
	default:
		return CapEnabled
	}
}

func (c Capability) String() string {
	switch c.Kind() {
	case CapDisabled:
		return "-" + c.Name
	case CapValued:
		return c.Name + "=" + strings.Join(c.Values, ",")
	default:
		return c.Name
	}
}

// SameSlot reports whether both capabilities have the same name, whatever
// their shape.
func (c Capability) SameSlot(other Capability) bool {
	return c.Name == other.Name
}

// Equal reports whether both capabilities have the same name and shape.
func (c Capability) Equal(other Capability) bool {
	if c.Name != other.Name || c.Kind() != other.Kind() {
		return false
	}
	if c.Kind() != CapValued {
		return true
	}
	if len(c.Values) != len(other.Values) {
		return false
	}
	for i := range c.Values {
		if c.Values[i] != other.Values[i] {
			return false
		}
	}
	return true
}

// Value returns the values joined by commas, as found in CAP LS 302 replies
// ("sasl=PLAIN,EXTERNAL").
func (c Capability) Value() string {
	return strings.Join(c.Values, ",")
}

// ParseCapability parses a single capability token such as "-away-notify"
// or "sasl=PLAIN,EXTERNAL".
func ParseCapability(s string) (Capability, error) {
	n, err := Parse(RuleCapability, s)
	if err != nil {
		return Capability{}, err
	}
	return capabilityFromNode(n)
}

func capabilityFromNode(n *Node) (Capability, error) {
	if n.Rule != RuleCapability {
		return Capability{}, &UnexpectedNodeError{Parent: RuleCapList, Node: n.Rule, Pos: n.Start}
	}
	var disabled bool
	var name string
	var values []string
	for _, c := range n.Children {
		switch c.Rule {
		case RuleMinus:
			disabled = true
		case RuleCapKey:
			name = c.Text()
		case RuleCapValues:
			for _, v := range c.Children {
				if v.Rule != RuleCapValue {
					return Capability{}, unexpectedNode(c, v)
				}
				values = append(values, v.Text())
			}
		default:
			return Capability{}, unexpectedNode(n, c)
		}
	}
	if name == "" {
		return Capability{}, missingNode(n, RuleCapKey)
	}
	if disabled {
		return DisabledCapability(name), nil
	}
	return CapabilityWithValues(name, values...), nil
}

func indexCapability(caps []Capability, c Capability) int {
	for i := range caps {
		if caps[i].SameSlot(c) {
			return i
		}
	}
	return -1
}

func joinCapabilities(caps []Capability) string {
	s := make([]string, len(caps))
	for i, c := range caps {
		s[i] = c.String()
	}
	return strings.Join(s, " ")
}
