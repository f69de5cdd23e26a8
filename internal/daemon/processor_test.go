package daemon

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hubwatch/hubwatch/internal/protocol"
	"github.com/hubwatch/hubwatch/internal/registry"
)

func runProcessor(t *testing.T, q *Queue, reg *registry.Registry, status StatusFunc, shutdown func()) {
	t.Helper()
	if status == nil {
		status = func() *protocol.DaemonStatus { return &protocol.DaemonStatus{Running: true} }
	}
	if shutdown == nil {
		shutdown = func() {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go NewProcessor(q, reg, status, shutdown).Run(ctx)
}

func exec(t *testing.T, q *Queue, cmd *protocol.Command) *protocol.Response {
	t.Helper()
	respCh := make(chan *protocol.Response, 1)
	if !q.Enqueue(cmd, func(r *protocol.Response) { respCh <- r }) {
		t.Fatal("queue closed")
	}
	select {
	case resp := <-respCh:
		return resp
	case <-time.After(2 * time.Second):
		t.Fatal("no response")
		return nil
	}
}

func TestProcessorSubscribeUnsubscribe(t *testing.T) {
	q := NewQueue()
	reg := registry.New()
	runProcessor(t, q, reg, nil, nil)

	resp := exec(t, q, &protocol.Command{Type: protocol.CommandSubscribe, SessionID: "agent-1", PRNumbers: []int{42, 7}})
	if resp.Type != protocol.ResponseSuccess || !strings.Contains(resp.Message, "#42") {
		t.Errorf("subscribe resp = %+v", resp)
	}
	if got := reg.SessionsFor(42); len(got) != 1 || got[0] != "agent-1" {
		t.Errorf("SessionsFor(42) = %v", got)
	}

	resp = exec(t, q, &protocol.Command{Type: protocol.CommandUnsubscribe, SessionID: "agent-1", PRNumbers: []int{42}})
	if resp.Type != protocol.ResponseSuccess {
		t.Errorf("unsubscribe resp = %+v", resp)
	}
	if got := reg.SessionsFor(42); len(got) != 0 {
		t.Errorf("still subscribed: %v", got)
	}
	if got := reg.SessionsFor(7); len(got) != 1 {
		t.Errorf("PR 7 subscription lost: %v", got)
	}
}

func TestProcessorStatus(t *testing.T) {
	q := NewQueue()
	status := func() *protocol.DaemonStatus {
		return &protocol.DaemonStatus{Running: true, PID: 1234, Repo: "owner/repo", ConnectedToGitHub: true}
	}
	runProcessor(t, q, registry.New(), status, nil)

	resp := exec(t, q, &protocol.Command{Type: protocol.CommandStatus})
	if resp.Type != protocol.ResponseStatus || resp.Status == nil {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Status.PID != 1234 || !resp.Status.ConnectedToGitHub {
		t.Errorf("status = %+v", resp.Status)
	}
}

func TestProcessorShutdownRespondsBeforeTrigger(t *testing.T) {
	q := NewQueue()
	var triggered atomic.Bool
	runProcessor(t, q, registry.New(), nil, func() { triggered.Store(true) })

	resp := exec(t, q, &protocol.Command{Type: protocol.CommandShutdown})
	if resp.Type != protocol.ResponseSuccess || !strings.Contains(resp.Message, "shutting down") {
		t.Errorf("resp = %+v", resp)
	}

	deadline := time.After(2 * time.Second)
	for !triggered.Load() {
		select {
		case <-deadline:
			t.Fatal("shutdown trigger never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestProcessorRecoversFromPanic(t *testing.T) {
	q := NewQueue()
	status := func() *protocol.DaemonStatus { panic("status exploded") }
	runProcessor(t, q, registry.New(), status, nil)

	resp := exec(t, q, &protocol.Command{Type: protocol.CommandStatus})
	if resp.Type != protocol.ResponseError {
		t.Errorf("panic resp = %+v", resp)
	}

	// The processor must survive and keep serving.
	resp = exec(t, q, &protocol.Command{Type: protocol.CommandSubscribe, SessionID: "s", PRNumbers: []int{1}})
	if resp.Type != protocol.ResponseSuccess {
		t.Errorf("processor dead after panic: %+v", resp)
	}
}
