// Package router correlates inbound webhook events with subscribed sessions
// and fans deliveries out to them.
package router

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hubwatch/hubwatch/internal/eventlog"
	"github.com/hubwatch/hubwatch/internal/logging"
	"github.com/hubwatch/hubwatch/internal/messenger"
	"github.com/hubwatch/hubwatch/internal/registry"
	"github.com/hubwatch/hubwatch/internal/render"
	"github.com/hubwatch/hubwatch/internal/stream"
)

// Recorder receives routed events for the history log. Recording is
// best-effort; failures never affect delivery.
type Recorder interface {
	Record(entry eventlog.Entry) error
}

// Router consumes the event stream and delivers rendered messages to every
// session subscribed to the event's pull request.
type Router struct {
	repo      string
	registry  *registry.Registry
	messenger messenger.Messenger
	recorder  Recorder
	log       *logrus.Entry
	routed    atomic.Uint64
	wg        sync.WaitGroup
}

// New creates a router. recorder may be nil to disable the history log.
func New(repo string, reg *registry.Registry, m messenger.Messenger, recorder Recorder) *Router {
	return &Router{
		repo:      repo,
		registry:  reg,
		messenger: m,
		recorder:  recorder,
		log:       logging.NewLogger("router"),
	}
}

// Routed reports how many events have been delivered to at least one session.
func (r *Router) Routed() uint64 { return r.routed.Load() }

// Run consumes events until the channel closes or the context is canceled,
// then waits for in-flight deliveries to finish.
func (r *Router) Run(ctx context.Context, events <-chan stream.Event) {
	defer r.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			r.route(ctx, event)
		}
	}
}

func (r *Router) route(ctx context.Context, event stream.Event) {
	log := r.log.WithFields(logrus.Fields{
		"event":    event.Type,
		"action":   event.Action,
		"delivery": event.DeliveryID,
	})

	pr, ok := prNumber(event)
	if !ok {
		log.Debug("event carries no pull request number, dropping")
		return
	}
	log = log.WithField("pr", pr)

	sessions := r.registry.SessionsFor(pr)
	if len(sessions) == 0 {
		log.Debug("no subscribers, dropping")
		return
	}

	message := render.Message(r.repo, pr, event)
	log.WithField("sessions", len(sessions)).Info("routing event")
	r.routed.Add(1)

	for _, sessionID := range sessions {
		r.wg.Add(1)
		go func(sessionID string) {
			defer r.wg.Done()
			if err := r.messenger.Send(ctx, sessionID, message); err != nil {
				log.WithError(err).WithField("session", sessionID).Warn("delivery failed")
			}
		}(sessionID)
	}

	if r.recorder != nil {
		if err := r.recorder.Record(eventlog.Entry{
			DeliveryID: event.DeliveryID,
			EventType:  event.Type,
			Action:     event.Action,
			PRNumber:   pr,
			Sessions:   sessions,
			ReceivedAt: time.Now().UTC(),
		}); err != nil {
			log.WithError(err).Warn("event log write failed")
		}
	}
}

// prNumber extracts the pull request number an event belongs to. Issue
// events only count when the issue is actually a pull request; check runs
// use their first linked pull request.
func prNumber(event stream.Event) (int, bool) {
	payload, ok := event.Payload.(map[string]any)
	if !ok {
		return 0, false
	}

	if pr, ok := payload["pull_request"].(map[string]any); ok {
		if n, ok := number(pr, "number"); ok {
			return n, true
		}
	}

	if issue, ok := payload["issue"].(map[string]any); ok {
		if _, isPR := issue["pull_request"]; isPR {
			if n, ok := number(issue, "number"); ok {
				return n, true
			}
		}
	}

	if run, ok := payload["check_run"].(map[string]any); ok {
		if prs, ok := run["pull_requests"].([]any); ok && len(prs) > 0 {
			if first, ok := prs[0].(map[string]any); ok {
				if n, ok := number(first, "number"); ok {
					return n, true
				}
			}
		}
	}

	return 0, false
}

func number(m map[string]any, key string) (int, bool) {
	f, ok := m[key].(float64)
	if !ok || f <= 0 {
		return 0, false
	}
	return int(f), true
}
