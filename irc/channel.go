package irc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const chanCapacity = 64

// Outgoing flood control: a burst of lines, then one line every interval.
const (
	sendBurst    = 10
	sendInterval = 500 * time.Millisecond
)

// ChanInOut turns conn into a pair of message channels.
//
// Incoming lines are parsed one at a time, in order; malformed lines are
// logged and dropped. in is closed when conn can no longer be read.
//
// conn is owned by the writer: closing out flushes pending messages, then
// closes conn and done.
func ChanInOut(conn net.Conn, logger zerolog.Logger) (in <-chan Message, out chan<- Message, done <-chan struct{}) {
	in_ := make(chan Message, chanCapacity)
	out_ := make(chan Message, chanCapacity)
	done_ := make(chan struct{})

	const keepAlive = 30 * time.Second
	const maxRTT = 10 * time.Second
	var last atomic.Value
	last.Store(time.Now())

	go func() {
		r := bufio.NewScanner(conn)
		for r.Scan() {
			line := r.Text()
			line = strings.ToValidUTF8(line, string([]rune{unicode.ReplacementChar}))
			logger.Debug().Str("line", line).Msg("in")
			msg, err := ParseMessage(line)
			if err != nil {
				logger.Warn().Err(err).Str("line", line).Msg("dropping malformed line")
				continue
			}
			now := time.Now()
			last.Store(now)
			conn.SetReadDeadline(now.Add(keepAlive + maxRTT))
			in_ <- msg
		}
		if err := r.Err(); err != nil {
			logger.Debug().Err(err).Msg("read failed")
		}
		close(in_)
	}()

	go func() {
		defer close(done_)
		t := time.NewTicker(time.Second)
		defer t.Stop()
		limiter := rate.NewLimiter(rate.Every(sendInterval), sendBurst)
	outer:
		for {
			select {
			case msg, ok := <-out_:
				if !ok {
					break outer
				}
				if err := limiter.Wait(context.Background()); err != nil {
					break outer
				}
				line := msg.String()
				if msg.Command() == Named("PASS") {
					logger.Debug().Str("line", "PASS <removed>").Msg("out")
				} else {
					logger.Debug().Str("line", line).Msg("out")
				}
				last.Store(time.Now())
				_, err := fmt.Fprintf(conn, "%s\r\n", line)
				if err != nil {
					break outer
				}
			case <-t.C:
				now := time.Now()
				if last.Load().(time.Time).Add(keepAlive).After(now) {
					continue
				}
				if last.Load().(time.Time).Add(keepAlive + maxRTT).Before(now) {
					// probably out of sleep, reset connection
					conn.Close()
					continue
				}
				last.Store(now)
				_, err := fmt.Fprint(conn, "PING _\r\n")
				if err != nil {
					break outer
				}
			}
		}
		_ = conn.Close()
	}()

	return in_, out_, done_
}
