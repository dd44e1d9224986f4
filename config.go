package kouhai

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path"
	"strconv"
	"strings"
	"time"

	"git.sr.ht/~emersion/go-scfg"

	"git.sr.ht/~delthas/kouhai/irc"
)

type Config struct {
	Addr          string
	Nick          string
	Real          string
	User          string
	Password      *string
	TLS           bool
	TLSSkipVerify bool

	Capabilities []irc.Capability
	CapVersion   string
	Timeout      time.Duration

	Debug bool
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return path.Join(configDir, "kouhai", "kouhai.scfg"), nil
}

func Defaults() Config {
	return Config{
		TLS:          true,
		Capabilities: irc.DefaultCapabilities(),
		CapVersion:   "302",
		Timeout:      30 * time.Second,
	}
}

// Overrides are settings given on the command line. Zero values leave the
// configuration file setting as is.
type Overrides struct {
	Nick    string
	Timeout time.Duration
	Debug   bool
}

func (o Overrides) apply(cfg *Config) {
	if o.Nick != "" {
		cfg.Nick = o.Nick
	}
	if o.Timeout > 0 {
		cfg.Timeout = o.Timeout
	}
	cfg.Debug = cfg.Debug || o.Debug
}

func LoadConfigFile(filename string, o Overrides) (cfg Config, err error) {
	directives, err := scfg.Load(filename)
	if err != nil {
		return Defaults(), fmt.Errorf("error parsing scfg: %w", err)
	}
	return ParseConfig(directives, o)
}

// ParseConfig builds a configuration from parsed directives, on top of
// Defaults. Overrides are applied before required settings are checked and
// derived ones are filled in.
func ParseConfig(directives scfg.Block, o Overrides) (cfg Config, err error) {
	cfg = Defaults()
	if err = unmarshal(directives, &cfg); err != nil {
		return cfg, err
	}
	o.apply(&cfg)
	if cfg.Addr == "" {
		return cfg, errors.New("addr is required")
	}
	if cfg.Nick == "" {
		return cfg, errors.New("nick is required")
	}
	if cfg.User == "" {
		cfg.User = cfg.Nick
	}
	if cfg.Real == "" {
		cfg.Real = cfg.Nick
	}
	var u *url.URL
	if u, err = url.Parse(cfg.Addr); err == nil && u.Scheme != "" {
		switch u.Scheme {
		case "ircs":
			cfg.TLS = true
		case "irc+insecure":
			cfg.TLS = false
		case "irc":
			// Could be TLS or plaintext, keep TLS as is.
		default:
			if u.Host != "" {
				return cfg, fmt.Errorf("invalid IRC addr scheme: %v", cfg.Addr)
			}
		}
		if u.Host != "" {
			cfg.Addr = u.Host
		}
	}
	return cfg, nil
}

func unmarshal(directives scfg.Block, cfg *Config) (err error) {
	for _, d := range directives {
		switch d.Name {
		case "address":
			if err := d.ParseParams(&cfg.Addr); err != nil {
				return err
			}
		case "nickname":
			if err := d.ParseParams(&cfg.Nick); err != nil {
				return err
			}
		case "username":
			if err := d.ParseParams(&cfg.User); err != nil {
				return err
			}
		case "realname":
			if err := d.ParseParams(&cfg.Real); err != nil {
				return err
			}
		case "password":
			// if a password-cmd is provided, don't use this value
			if directives.Get("password-cmd") != nil {
				continue
			}

			var password string
			if err := d.ParseParams(&password); err != nil {
				return err
			}
			cfg.Password = &password
		case "password-cmd":
			var cmdName string
			if err := d.ParseParams(&cmdName); err != nil {
				return err
			}

			cmd := exec.Command(cmdName, d.Params[1:]...)
			var stdout []byte
			if stdout, err = cmd.Output(); err != nil {
				return fmt.Errorf("error running password command: %s", err)
			}

			passCmdOut := strings.Split(string(stdout), "\n")
			if len(passCmdOut) >= 1 {
				cfg.Password = &passCmdOut[0]
			}
		case "tls":
			var tls string
			if err := d.ParseParams(&tls); err != nil {
				return err
			}

			if cfg.TLS, err = strconv.ParseBool(tls); err != nil {
				return err
			}
		case "tls-skip-verify":
			var skip string
			if err := d.ParseParams(&skip); err != nil {
				return err
			}

			if cfg.TLSSkipVerify, err = strconv.ParseBool(skip); err != nil {
				return err
			}
		case "capabilities":
			cfg.Capabilities = make([]irc.Capability, 0, len(d.Params))
			for _, param := range d.Params {
				c, err := irc.ParseCapability(param)
				if err != nil {
					return fmt.Errorf("invalid capability %q: %v", param, err)
				}
				cfg.Capabilities = append(cfg.Capabilities, c)
			}
		case "cap-version":
			if err := d.ParseParams(&cfg.CapVersion); err != nil {
				return err
			}
			if cfg.CapVersion == "none" {
				cfg.CapVersion = ""
			}
		case "timeout":
			var timeout string
			if err := d.ParseParams(&timeout); err != nil {
				return err
			}

			if cfg.Timeout, err = time.ParseDuration(timeout); err != nil {
				return err
			}
			if cfg.Timeout <= 0 {
				return fmt.Errorf("timeout must be positive, got %v", cfg.Timeout)
			}
		case "debug":
			var debug string
			if err := d.ParseParams(&debug); err != nil {
				return err
			}

			if cfg.Debug, err = strconv.ParseBool(debug); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown directive %q", d.Name)
		}
	}

	return
}
