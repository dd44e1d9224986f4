package irc

import (
	"reflect"
	"testing"
)

func assertCapability(t *testing.T, input string, expected Capability) {
	t.Helper()
	actual, err := ParseCapability(input)
	if err != nil {
		t.Errorf("%q: %v", input, err)
		return
	}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("%q: expected %#v, got %#v", input, expected, actual)
	}
	if s := actual.String(); s != input {
		t.Errorf("%q: expected identical serialization, got %q", input, s)
	}
}

func TestParseCapability(t *testing.T) {
	assertCapability(t, "sasl", NewCapability("sasl"))
	assertCapability(t, "draft/chathistory", NewCapability("draft/chathistory"))
	assertCapability(t, "sasl=PLAIN,EXTERNAL", CapabilityWithValues("sasl", "PLAIN", "EXTERNAL"))
	assertCapability(t, "two=three,four", CapabilityWithValues("two", "three", "four"))
	assertCapability(t, "-five", DisabledCapability("five"))
	assertCapability(t, "a=", CapabilityWithValues("a", ""))
	assertCapability(t, "a=,b", CapabilityWithValues("a", "", "b"))
	assertCapability(t, "example.org/x:y", NewCapability("example.org/x:y"))
	assertCapability(t, "draft/*x", NewCapability("draft/*x"))
	assertCapability(t, "-vendor:cap", DisabledCapability("vendor:cap"))
}

func TestParseCapabilityErrors(t *testing.T) {
	for _, input := range []string{"", "-", "=x", "a b", "a;b", "a=b c", "a\r"} {
		if c, err := ParseCapability(input); err == nil {
			t.Errorf("%q: expected an error, got %#v", input, c)
		}
	}
}

func TestCapabilityKind(t *testing.T) {
	if k := NewCapability("sasl").Kind(); k != CapEnabled {
		t.Errorf("expected enabled, got %v", k)
	}
	if k := CapabilityWithValues("sasl", "PLAIN").Kind(); k != CapValued {
		t.Errorf("expected valued, got %v", k)
	}
	if k := CapabilityWithValues("sasl").Kind(); k != CapEnabled {
		t.Errorf("expected enabled without values, got %v", k)
	}
	if k := DisabledCapability("sasl").Kind(); k != CapDisabled {
		t.Errorf("expected disabled, got %v", k)
	}
	if v := CapabilityWithValues("sasl", "PLAIN", "EXTERNAL").Value(); v != "PLAIN,EXTERNAL" {
		t.Errorf("expected %q, got %q", "PLAIN,EXTERNAL", v)
	}
}

func TestCapabilitySameSlot(t *testing.T) {
	plain := CapabilityWithValues("sasl", "PLAIN")
	shapes := []Capability{
		NewCapability("sasl"),
		CapabilityWithValues("sasl", "EXTERNAL"),
		DisabledCapability("sasl"),
	}
	for _, c := range shapes {
		if !plain.SameSlot(c) {
			t.Errorf("%v and %v: expected the same slot", plain, c)
		}
		if plain.Equal(c) {
			t.Errorf("%v and %v: expected different capabilities", plain, c)
		}
	}
	if !plain.Equal(CapabilityWithValues("sasl", "PLAIN")) {
		t.Errorf("expected equal capabilities")
	}
	if plain.SameSlot(NewCapability("multi-prefix")) {
		t.Errorf("expected different slots")
	}
}

func TestJoinCapabilities(t *testing.T) {
	caps := []Capability{
		NewCapability("one"),
		CapabilityWithValues("two", "three", "four"),
		DisabledCapability("five"),
	}
	if s := joinCapabilities(caps); s != "one two=three,four -five" {
		t.Errorf("expected %q, got %q", "one two=three,four -five", s)
	}
	if s := joinCapabilities(nil); s != "" {
		t.Errorf("expected an empty list, got %q", s)
	}
	if i := indexCapability(caps, DisabledCapability("two")); i != 1 {
		t.Errorf("expected index 1, got %d", i)
	}
	if i := indexCapability(caps, NewCapability("six")); i != -1 {
		t.Errorf("expected index -1, got %d", i)
	}
}
