package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingSender struct {
	mu       sync.Mutex
	messages map[string][]string
	err      error
	panics   bool
	block    bool
}

func (r *recordingSender) Send(ctx context.Context, channelID, text string) error {
	if r.panics {
		panic("boom")
	}
	if r.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.messages == nil {
		r.messages = map[string][]string{}
	}
	r.messages[channelID] = append(r.messages[channelID], text)
	return nil
}

func TestFanout_DeliversToAllSinks(t *testing.T) {
	tg := &recordingSender{}
	dc := &recordingSender{}
	f := NewFanout(time.Second,
		Sink{Name: "telegram", ChannelID: "-1001", Sender: tg},
		Sink{Name: "discord", ChannelID: "555", Sender: dc},
	)

	f.Broadcast(context.Background(), "paid")

	assert.Equal(t, []string{"paid"}, tg.messages["-1001"])
	assert.Equal(t, []string{"paid"}, dc.messages["555"])
}

func TestFanout_SkipsUnconfiguredSinks(t *testing.T) {
	f := NewFanout(time.Second,
		Sink{Name: "telegram", ChannelID: "", Sender: &recordingSender{}},
		Sink{Name: "discord", ChannelID: "1", Sender: nil},
	)
	assert.Equal(t, 0, f.Len())
	f.Broadcast(context.Background(), "nobody hears this")

	var nilFanout *Fanout
	nilFanout.Broadcast(context.Background(), "safe")
}

func TestFanout_FailingSinkDoesNotAffectOthers(t *testing.T) {
	good := &recordingSender{}
	var failed []string
	var mu sync.Mutex

	f := NewFanout(30*time.Millisecond,
		Sink{Name: "broken", ChannelID: "x", Sender: &recordingSender{err: errors.New("channel not found")}},
		Sink{Name: "panicky", ChannelID: "y", Sender: &recordingSender{panics: true}},
		Sink{Name: "hung", ChannelID: "z", Sender: &recordingSender{block: true}},
		Sink{Name: "good", ChannelID: "ok", Sender: good},
	)
	f.OnFailure(func(sink string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, sink)
	})

	start := time.Now()
	f.Broadcast(context.Background(), "hello")

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []string{"hello"}, good.messages["ok"])
	assert.ElementsMatch(t, []string{"broken", "panicky", "hung"}, failed)
}
