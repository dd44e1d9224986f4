package kouhai

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"git.sr.ht/~delthas/kouhai/irc"
)

// fakeServer answers client lines found in script, and returns once the
// client quits.
func fakeServer(conn net.Conn, script map[string][]string) error {
	defer conn.Close()
	r := bufio.NewScanner(conn)
	for r.Scan() {
		line := r.Text()
		if strings.HasPrefix(line, "QUIT") {
			return nil
		}
		for _, reply := range script[line] {
			if _, err := fmt.Fprintf(conn, "%s\r\n", reply); err != nil {
				return err
			}
		}
	}
	if err := r.Err(); err != nil {
		return err
	}
	return errors.New("client did not quit")
}

func testApp() *App {
	cfg := Defaults()
	cfg.Addr = "irc.example.org"
	cfg.Nick = "kouhai"
	cfg.User = "kouhai"
	cfg.Real = "kouhai"
	cfg.Capabilities = []irc.Capability{
		irc.NewCapability("sasl"),
		irc.NewCapability("multi-prefix"),
		irc.NewCapability("draft/foo"),
	}
	return NewApp(cfg, zerolog.Nop())
}

func TestRegister(t *testing.T) {
	client, server := net.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- fakeServer(server, map[string][]string{
			"CAP LS 302": {
				":irc.example.org CAP * LS * :multi-prefix away-notify",
				":irc.example.org CAP * LS :sasl=PLAIN",
			},
			"CAP REQ :multi-prefix sasl": {
				":irc.example.org CAP * ACK multi-prefix",
				":irc.example.org CAP * NAK sasl",
			},
			"CAP END": {
				":irc.example.org NOTICE * :*** Looking up your hostname",
				":irc.example.org 001 kouhai :Welcome to the network, kouhai",
			},
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := testApp().register(ctx, client)
	if err != nil {
		t.Fatal(err)
	}

	expected := Result{
		Nick:            "kouhai",
		Server:          "irc.example.org",
		Acknowledged:    []irc.Capability{irc.NewCapability("multi-prefix")},
		NotAcknowledged: []irc.Capability{irc.NewCapability("sasl")},
		Unanswered:      []irc.Capability{irc.NewCapability("draft/foo")},
	}
	if !reflect.DeepEqual(res, expected) {
		t.Errorf("expected %#v, got %#v", expected, res)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("server: %v", err)
		}
	case <-ctx.Done():
		t.Errorf("server: %v", ctx.Err())
	}
}

func TestRegisterFailure(t *testing.T) {
	client, server := net.Pipe()
	go fakeServer(server, map[string][]string{
		"NICK kouhai": {":irc.example.org 465 * :You are banned from this server"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := testApp().register(ctx, client); err == nil || !strings.Contains(err.Error(), "465") {
		t.Errorf("expected a 465 error, got %v", err)
	}
}

func TestRegisterConnectionClosed(t *testing.T) {
	client, server := net.Pipe()
	server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := testApp().register(ctx, client); !errors.Is(err, errConnectionClosed) {
		t.Errorf("expected %v, got %v", errConnectionClosed, err)
	}
}

func TestRegisterTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	go fakeServer(server, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := testApp().register(ctx, client); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected %v, got %v", context.DeadlineExceeded, err)
	}
}

func TestRun(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		done <- fakeServer(conn, map[string][]string{
			"CAP LS 302":           {":irc.example.org CAP * LS :multi-prefix"},
			"CAP REQ multi-prefix": {":irc.example.org CAP * ACK multi-prefix"},
			"CAP END":              {":irc.example.org 001 kouhai :Welcome"},
		})
	}()

	app := testApp()
	app.cfg.Addr = ln.Addr().String()
	app.cfg.TLS = false
	app.cfg.Timeout = 5 * time.Second
	res, err := app.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Nick != "kouhai" {
		t.Errorf("expected %q, got %q", "kouhai", res.Nick)
	}

	// The server only returns nil once it has read QUIT.
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("server: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Errorf("server: timed out waiting for QUIT")
	}
}
