package kouhai

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"git.sr.ht/~emersion/go-scfg"

	"git.sr.ht/~delthas/kouhai/irc"
)

func parseConfigString(t *testing.T, s string) (Config, error) {
	t.Helper()
	return parseConfigWith(t, s, Overrides{})
}

func parseConfigWith(t *testing.T, s string, o Overrides) (Config, error) {
	t.Helper()
	directives, err := scfg.Read(strings.NewReader(s))
	if err != nil {
		t.Fatalf("%q: %v", s, err)
	}
	return ParseConfig(directives, o)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kouhai.scfg")
	content := `address ircs://irc.example.org
nickname kouhai
realname "Kouhai Client"
capabilities sasl -away-notify draft/foo=a,b
cap-version none
timeout 5s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path, Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != "irc.example.org" || !cfg.TLS {
		t.Errorf("expected a TLS connection to %q, got %q (tls: %v)", "irc.example.org", cfg.Addr, cfg.TLS)
	}
	if cfg.Nick != "kouhai" || cfg.User != "kouhai" || cfg.Real != "Kouhai Client" {
		t.Errorf("unexpected identity: %q %q %q", cfg.Nick, cfg.User, cfg.Real)
	}
	expectedCaps := []irc.Capability{
		irc.NewCapability("sasl"),
		irc.DisabledCapability("away-notify"),
		irc.CapabilityWithValues("draft/foo", "a", "b"),
	}
	if !reflect.DeepEqual(cfg.Capabilities, expectedCaps) {
		t.Errorf("expected capabilities %v, got %v", expectedCaps, cfg.Capabilities)
	}
	if cfg.CapVersion != "" {
		t.Errorf("expected no CAP version, got %q", cfg.CapVersion)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected a 5s timeout, got %v", cfg.Timeout)
	}
	if cfg.Password != nil {
		t.Errorf("expected no password, got %q", *cfg.Password)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.scfg"), Overrides{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := parseConfigString(t, "address irc.example.org:6667\nnickname kouhai\ntls false\n")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != "irc.example.org:6667" || cfg.TLS {
		t.Errorf("expected a plain connection to %q, got %q (tls: %v)", "irc.example.org:6667", cfg.Addr, cfg.TLS)
	}
	if !reflect.DeepEqual(cfg.Capabilities, irc.DefaultCapabilities()) {
		t.Errorf("expected the default capabilities, got %v", cfg.Capabilities)
	}
	if cfg.CapVersion != "302" || cfg.Timeout != 30*time.Second {
		t.Errorf("expected default negotiation settings, got %q %v", cfg.CapVersion, cfg.Timeout)
	}
}

func TestConfigAddrSchemes(t *testing.T) {
	cfg, err := parseConfigString(t, "address irc+insecure://irc.example.org\nnickname kouhai\n")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != "irc.example.org" || cfg.TLS {
		t.Errorf("expected a plain connection to %q, got %q (tls: %v)", "irc.example.org", cfg.Addr, cfg.TLS)
	}

	if _, err := parseConfigString(t, "address http://irc.example.org\nnickname kouhai\n"); err == nil {
		t.Errorf("expected an error for an http address")
	}
}

func TestConfigPassword(t *testing.T) {
	cfg, err := parseConfigString(t, "address irc.example.org\nnickname kouhai\npassword hunter2\n")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Password == nil || *cfg.Password != "hunter2" {
		t.Errorf("expected password %q, got %v", "hunter2", cfg.Password)
	}
}

func TestConfigEmptyCapabilities(t *testing.T) {
	cfg, err := parseConfigString(t, "address irc.example.org\nnickname kouhai\ncapabilities\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Capabilities) != 0 {
		t.Errorf("expected no capabilities, got %v", cfg.Capabilities)
	}
}

func TestConfigErrors(t *testing.T) {
	inputs := []string{
		"nickname kouhai\n",
		"address irc.example.org\n",
		"address irc.example.org\nnickname kouhai\nfoo bar\n",
		"address irc.example.org\nnickname kouhai\ncapabilities \"a b\"\n",
		"address irc.example.org\nnickname kouhai\ntimeout -1s\n",
		"address irc.example.org\nnickname kouhai\ntimeout soon\n",
		"address irc.example.org\nnickname kouhai\ntls maybe\n",
		"address\nnickname kouhai\n",
	}
	for _, input := range inputs {
		if _, err := parseConfigString(t, input); err == nil {
			t.Errorf("%q: expected an error", input)
		}
	}
}

func TestConfigOverrides(t *testing.T) {
	cfg, err := parseConfigWith(t, "address irc.example.org\n", Overrides{Nick: "flag"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Nick != "flag" || cfg.User != "flag" || cfg.Real != "flag" {
		t.Errorf("expected the identity to default to the overriding nick, got %q %q %q", cfg.Nick, cfg.User, cfg.Real)
	}

	cfg, err = parseConfigWith(t, "address irc.example.org\nnickname kouhai\nusername user\ntimeout 5s\n", Overrides{
		Nick:    "flag",
		Timeout: time.Minute,
		Debug:   true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Nick != "flag" || cfg.User != "user" || cfg.Real != "flag" {
		t.Errorf("unexpected identity: %q %q %q", cfg.Nick, cfg.User, cfg.Real)
	}
	if cfg.Timeout != time.Minute || !cfg.Debug {
		t.Errorf("expected the overriding timeout and debug, got %v %v", cfg.Timeout, cfg.Debug)
	}

	cfg, err = parseConfigWith(t, "address irc.example.org\nnickname kouhai\ndebug true\n", Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Nick != "kouhai" || cfg.Timeout != 30*time.Second || !cfg.Debug {
		t.Errorf("expected empty overrides to keep the file settings, got %q %v %v", cfg.Nick, cfg.Timeout, cfg.Debug)
	}
}
