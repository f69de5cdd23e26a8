package daemon

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hubwatch/hubwatch/internal/protocol"
)

// echoProcessor answers every queued command with a canned success.
func echoProcessor(t *testing.T, q *Queue) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			req, ok := q.Dequeue(ctx)
			if !ok {
				return
			}
			req.respond(protocol.Success("handled " + string(req.cmd.Type)))
		}
	}()
	return cancel
}

func startTestServer(t *testing.T) (string, *Queue) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "hubwatch.sock")
	q := NewQueue()
	s := NewServer(socketPath, q)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return socketPath, q
}

func TestServerOneCommandPerConnection(t *testing.T) {
	socketPath, q := startTestServer(t)
	cancel := echoProcessor(t, q)
	defer cancel()

	resp, err := Request(context.Background(), socketPath, &protocol.Command{Type: protocol.CommandStatus})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if resp.Type != protocol.ResponseSuccess || resp.Message != "handled status" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestServerClosesConnectionAfterResponse(t *testing.T) {
	socketPath, q := startTestServer(t)
	cancel := echoProcessor(t, q)
	defer cancel()

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(`{"type":"status"}` + "\n")); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if !strings.Contains(string(buf[:n]), `"type":"success"`) {
		t.Errorf("response = %s", buf[:n])
	}

	// The server must close the connection; the next read sees EOF.
	if _, err := conn.Read(buf); err == nil {
		t.Error("connection stayed open after response")
	}
}

func TestServerRejectsMalformedCommand(t *testing.T) {
	socketPath, _ := startTestServer(t)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.Write([]byte("this is not json\n"))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(buf[:n]), `"type":"error"`) {
		t.Errorf("response = %s", buf[:n])
	}
}

func TestServerRejectsInvalidSubscribe(t *testing.T) {
	socketPath, _ := startTestServer(t)

	resp, err := Request(context.Background(), socketPath,
		&protocol.Command{Type: protocol.CommandSubscribe, SessionID: "", PRNumbers: []int{1}})
	// The command fails validation client-side at the server; Request still
	// succeeds at the transport level.
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if resp.Type != protocol.ResponseError || !strings.Contains(resp.Err, "sessionId") {
		t.Errorf("resp = %+v", resp)
	}
}

func TestServerAnswersShuttingDownWhenQueueClosed(t *testing.T) {
	socketPath, q := startTestServer(t)
	q.Close()

	resp, err := Request(context.Background(), socketPath, &protocol.Command{Type: protocol.CommandStatus})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if resp.Type != protocol.ResponseError || resp.Err != "daemon is shutting down" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestServerRefusesActiveSocket(t *testing.T) {
	socketPath, q := startTestServer(t)
	_ = q

	second := NewServer(socketPath, NewQueue())
	if err := second.Start(); err == nil {
		second.Stop()
		t.Fatal("second server bound an active socket")
	}
}

func TestServerReplacesStaleSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "hubwatch.sock")

	// A dead daemon's socket: bound then abandoned without cleanup.
	if err := abandonSocket(socketPath); err != nil {
		t.Fatal(err)
	}

	q := NewQueue()
	s := NewServer(socketPath, q)
	if err := s.Start(); err != nil {
		t.Fatalf("Start over stale socket: %v", err)
	}
	defer s.Stop()

	cancel := echoProcessor(t, q)
	defer cancel()
	if _, err := Request(context.Background(), socketPath, &protocol.Command{Type: protocol.CommandStatus}); err != nil {
		t.Errorf("Request over replaced socket: %v", err)
	}
}

// abandonSocket leaves a socket file on disk with no listener behind it, as
// a crashed daemon would.
func abandonSocket(path string) error {
	l, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	unixListener := l.(*net.UnixListener)
	unixListener.SetUnlinkOnClose(false)
	return unixListener.Close()
}
