package daemon

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hubwatch/hubwatch/internal/logging"
	"github.com/hubwatch/hubwatch/internal/protocol"
	"github.com/hubwatch/hubwatch/internal/registry"
)

// StatusFunc assembles the daemon status snapshot for a status command.
type StatusFunc func() *protocol.DaemonStatus

// Processor is the single consumer of the command queue. Because it is the
// only goroutine mutating the registry, subscribe and unsubscribe never race
// with each other.
type Processor struct {
	queue    *Queue
	registry *registry.Registry
	status   StatusFunc
	shutdown func()
	log      *logrus.Entry
}

// NewProcessor creates the command processor. shutdown is invoked after a
// shutdown command has been answered.
func NewProcessor(queue *Queue, reg *registry.Registry, status StatusFunc, shutdown func()) *Processor {
	return &Processor{
		queue:    queue,
		registry: reg,
		status:   status,
		shutdown: shutdown,
		log:      logging.NewLogger("processor"),
	}
}

// Run consumes commands until the queue closes or the context is canceled.
func (p *Processor) Run(ctx context.Context) {
	for {
		req, ok := p.queue.Dequeue(ctx)
		if !ok {
			return
		}
		req.respond(p.handle(req.cmd))
	}
}

// handle executes one command. A panic in command handling must not take the
// daemon down, so it is converted into an error response.
func (p *Processor) handle(cmd *protocol.Command) (resp *protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("command", cmd.Type).Errorf("command handler panicked: %v", r)
			resp = protocol.Errorf("internal error handling %s", cmd.Type)
		}
	}()

	switch cmd.Type {
	case protocol.CommandSubscribe:
		p.registry.Subscribe(cmd.SessionID, cmd.PRNumbers)
		p.log.WithFields(logrus.Fields{
			"session": cmd.SessionID,
			"prs":     cmd.PRNumbers,
		}).Info("session subscribed")
		return protocol.Success(fmt.Sprintf("subscribed %s to PR %s", cmd.SessionID, joinPRs(cmd.PRNumbers)))

	case protocol.CommandUnsubscribe:
		p.registry.Unsubscribe(cmd.SessionID, cmd.PRNumbers)
		p.log.WithFields(logrus.Fields{
			"session": cmd.SessionID,
			"prs":     cmd.PRNumbers,
		}).Info("session unsubscribed")
		return protocol.Success(fmt.Sprintf("unsubscribed %s from PR %s", cmd.SessionID, joinPRs(cmd.PRNumbers)))

	case protocol.CommandStatus:
		return protocol.StatusResponse(p.status())

	case protocol.CommandShutdown:
		p.log.Info("shutdown requested over IPC")
		// Respond first so the client sees an answer before the socket goes.
		defer p.shutdown()
		return protocol.Success("daemon shutting down")

	default:
		// Unreachable: DecodeCommand rejects unknown types.
		return protocol.Errorf("unknown command type %q", cmd.Type)
	}
}

func joinPRs(prs []int) string {
	parts := make([]string, len(prs))
	for i, n := range prs {
		parts[i] = fmt.Sprintf("#%d", n)
	}
	return strings.Join(parts, ", ")
}
