package timer

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/lasr/errors"
)

// DefaultLiveSplitAddr is where the LiveSplit Server component listens by
// default.
const DefaultLiveSplitAddr = "localhost:16834"

// LiveSplit drives a LiveSplit instance over the LiveSplit Server line
// protocol. Commands are CRLF terminated; only phase queries get a reply.
// A broken connection is redialed once per command.
type LiveSplit struct {
	mu           sync.Mutex
	conn         net.Conn
	r            *bufio.Reader
	addr         string
	timeout      time.Duration
	gameTimeInit bool
}

// DialLiveSplit connects to a LiveSplit Server. timeout bounds every
// command round trip; zero means two seconds.
func DialLiveSplit(ctx context.Context, addr string, timeout time.Duration) (*LiveSplit, error) {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	l := &LiveSplit{addr: addr, timeout: timeout}
	if err := l.dial(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LiveSplit) dial(ctx context.Context) error {
	d := net.Dialer{Timeout: l.timeout}
	conn, err := d.DialContext(ctx, "tcp", l.addr)
	if err != nil {
		return backendError(err, "dial %s", l.addr)
	}
	l.conn = conn
	l.r = bufio.NewReader(conn)
	Logger().Info("connected to livesplit", zap.String("addr", l.addr))
	return nil
}

func (l *LiveSplit) roundTrip(cmd string, reply bool) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	resp, err := l.exchange(cmd, reply)
	if err == nil {
		return resp, nil
	}
	Logger().Warn("livesplit command failed, redialing", zap.String("command", cmd), zap.Error(err))
	l.closeConn()
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	if err := l.dial(ctx); err != nil {
		return "", err
	}
	return l.exchange(cmd, reply)
}

func (l *LiveSplit) exchange(cmd string, reply bool) (string, error) {
	if l.conn == nil {
		return "", backendError(nil, "not connected")
	}
	if err := l.conn.SetDeadline(time.Now().Add(l.timeout)); err != nil {
		return "", backendError(err, "set deadline")
	}
	if _, err := l.conn.Write([]byte(cmd + "\r\n")); err != nil {
		return "", backendError(err, "send %q", cmd)
	}
	if !reply {
		return "", nil
	}
	line, err := l.r.ReadString('\n')
	if err != nil {
		return "", backendError(err, "read reply to %q", cmd)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (l *LiveSplit) send(cmd string) error {
	_, err := l.roundTrip(cmd, false)
	return err
}

func (l *LiveSplit) State() (State, error) {
	resp, err := l.roundTrip("getcurrenttimerphase", true)
	if err != nil {
		return NotRunning, err
	}
	return ParseState(resp)
}

func (l *LiveSplit) Start() error {
	l.mu.Lock()
	l.gameTimeInit = false
	l.mu.Unlock()
	return l.send("starttimer")
}

func (l *LiveSplit) Split() error { return l.send("split") }

func (l *LiveSplit) Reset() error {
	l.mu.Lock()
	l.gameTimeInit = false
	l.mu.Unlock()
	return l.send("reset")
}

func (l *LiveSplit) PauseGameTime() error  { return l.send("pausegametime") }
func (l *LiveSplit) ResumeGameTime() error { return l.send("unpausegametime") }

// SetGameTime sends the game time in seconds with millisecond precision,
// initializing game time first after every start.
func (l *LiveSplit) SetGameTime(d time.Duration) error {
	l.mu.Lock()
	needInit := !l.gameTimeInit
	l.mu.Unlock()
	if needInit {
		if err := l.send("initgametime"); err != nil {
			return err
		}
		l.mu.Lock()
		l.gameTimeInit = true
		l.mu.Unlock()
	}
	return l.send("setgametime " + FormatSeconds(d))
}

func (l *LiveSplit) SetVariable(key, value string) error {
	arg, err := json.Marshal([]string{key, value})
	if err != nil {
		return backendError(err, "encode variable %q", key)
	}
	return l.send("setcustomvariable " + string(arg))
}

// Close closes the connection.
func (l *LiveSplit) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeConn()
}

func (l *LiveSplit) closeConn() error {
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	l.r = nil
	return err
}

// FormatSeconds renders d as seconds with three decimals.
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Milliseconds())/1000, 'f', 3, 64)
}

func backendError(cause error, format string, args ...any) error {
	return errors.New(errors.PhaseTimer, errors.KindBackend).Cause(cause).Detail(format, args...).Build()
}
