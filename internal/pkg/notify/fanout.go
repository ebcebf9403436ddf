package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const defaultSendTimeout = 10 * time.Second

// Sender delivers a text message to a channel on one platform.
type Sender interface {
	Send(ctx context.Context, channelID, text string) error
}

// Sink is one configured destination of the fanout.
type Sink struct {
	Name      string
	ChannelID string
	Sender    Sender
}

// FailureHook observes sink failures, e.g. for metrics.
type FailureHook func(sink string, err error)

// Fanout broadcasts advisory status messages to every configured sink. It
// never returns an error: a failing sink is logged and the rest still run.
type Fanout struct {
	sinks     []Sink
	timeout   time.Duration
	onFailure FailureHook
}

func NewFanout(timeout time.Duration, sinks ...Sink) *Fanout {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	f := &Fanout{timeout: timeout}
	for _, s := range sinks {
		if s.Sender == nil || strings.TrimSpace(s.ChannelID) == "" {
			log.Infof("[Fanout] Sink %q not configured, skipping", s.Name)
			continue
		}
		f.sinks = append(f.sinks, s)
	}
	return f
}

// OnFailure registers a hook called for every failed send.
func (f *Fanout) OnFailure(hook FailureHook) {
	f.onFailure = hook
}

func (f *Fanout) Len() int {
	return len(f.sinks)
}

// Broadcast sends message to all sinks concurrently and waits for them.
func (f *Fanout) Broadcast(ctx context.Context, message string) {
	if f == nil || len(f.sinks) == 0 {
		return
	}
	var wg sync.WaitGroup
	for _, s := range f.sinks {
		wg.Add(1)
		go func(s Sink) {
			defer wg.Done()
			f.send(ctx, s, message)
		}(s)
	}
	wg.Wait()
}

func (f *Fanout) send(ctx context.Context, s Sink, message string) {
	defer func() {
		if r := recover(); r != nil {
			f.fail(s, fmt.Errorf("panic: %v", r))
		}
	}()

	sctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := s.Sender.Send(sctx, s.ChannelID, message); err != nil {
		f.fail(s, err)
	}
}

func (f *Fanout) fail(s Sink, err error) {
	log.Warnf("[Fanout] Sink %s (%s) unreachable: %v", s.Name, s.ChannelID, err)
	if f.onFailure != nil {
		f.onFailure(s.Name, err)
	}
}
