package kouhai

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"

	"git.sr.ht/~delthas/kouhai/irc"
)

var errConnectionClosed = errors.New("connection closed before registration")

const flushTimeout = 5 * time.Second

// Result is the outcome of a successful registration.
type Result struct {
	Nick   string
	Server string

	Acknowledged    []irc.Capability
	NotAcknowledged []irc.Capability
	Unanswered      []irc.Capability
}

// App connects to a server once, negotiates capabilities, registers and
// disconnects.
type App struct {
	cfg    Config
	logger zerolog.Logger
}

func NewApp(cfg Config, logger zerolog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Run connects and registers, bounded by the configured timeout.
func (app *App) Run(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, app.cfg.Timeout)
	defer cancel()

	conn, err := app.tryConnect(ctx)
	if err != nil {
		return Result{}, err
	}
	return app.register(ctx, conn)
}

func (app *App) tryConnect(ctx context.Context) (conn net.Conn, err error) {
	addr := app.cfg.Addr
	colonIdx := strings.LastIndexByte(addr, ':')
	bracketIdx := strings.LastIndexByte(addr, ']')
	if colonIdx <= bracketIdx {
		// either colonIdx < 0, or the last colon is before a ']' (end
		// of IPv6 address). -> missing port
		if app.cfg.TLS {
			addr += ":6697"
		} else {
			addr += ":6667"
		}
	}

	app.logger.Info().Str("addr", addr).Bool("tls", app.cfg.TLS).Msg("connecting")

	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
	}
	conn, err = proxy.FromEnvironmentUsing(dialer).(proxy.ContextDialer).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect: %v", err)
	}

	if app.cfg.TLS {
		host, _, _ := net.SplitHostPort(addr) // should succeed since net.Dial did.
		conn = tls.Client(conn, &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: app.cfg.TLSSkipVerify,
			NextProtos:         []string{"irc"},
		})
		err = conn.(*tls.Conn).HandshakeContext(ctx)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("tls handshake: %v", err)
		}
	}

	return
}

// register drives a session on conn until the server welcomes us. conn is
// closed once pending messages are flushed, or after flushTimeout.
func (app *App) register(ctx context.Context, conn net.Conn) (Result, error) {
	logger := app.logger.With().Str("conn", uuid.NewString()).Logger()

	params := irc.SessionParams{
		Nickname:     app.cfg.Nick,
		Username:     app.cfg.User,
		RealName:     app.cfg.Real,
		Capabilities: app.cfg.Capabilities,
		CapVersion:   app.cfg.CapVersion,
	}
	if app.cfg.Password != nil {
		params.Password = *app.cfg.Password
	}

	in, out, done := irc.ChanInOut(conn, logger)
	session := irc.NewSession(out, params)
	defer func() {
		session.Close()
		select {
		case <-done:
		case <-time.After(flushTimeout):
			logger.Warn().Msg("timed out flushing outgoing messages")
			conn.Close()
		}
	}()

	var res Result
	for {
		var msg irc.Message
		var ok bool
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case msg, ok = <-in:
		}
		if !ok {
			return res, errConnectionClosed
		}

		ev, err := session.HandleMessage(msg)
		if err != nil {
			logger.Warn().Err(err).Stringer("msg", msg).Msg("failed to handle message")
			continue
		}
		switch ev := ev.(type) {
		case irc.CapNegotiatedEvent:
			res.Acknowledged = ev.Acknowledged
			res.NotAcknowledged = ev.NotAcknowledged
			res.Unanswered = ev.Unanswered
			logger.Info().
				Int("acknowledged", len(ev.Acknowledged)).
				Int("rejected", len(ev.NotAcknowledged)).
				Int("unanswered", len(ev.Unanswered)).
				Msg("capabilities negotiated")
		case irc.RegisteredEvent:
			res.Nick = ev.Nick
			res.Server = ev.Server
			logger.Info().Str("nick", ev.Nick).Str("server", ev.Server).Msg("registered")
			session.Quit("kouhai")
			return res, nil
		case irc.ErrorEvent:
			if ev.Severity == irc.SeverityFail {
				return res, fmt.Errorf("%s: %s", ev.Code, ev.Message)
			}
			logger.Warn().Str("code", ev.Code).Msg(ev.Message)
		}
	}
}

func BuildVersion() (string, bool) {
	if bi, ok := debug.ReadBuildInfo(); ok {
		return bi.Main.Version, true
	} else {
		return "", false
	}
}
