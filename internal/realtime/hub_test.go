package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/menu_api/internal/models"
	"github.com/GTDGit/menu_api/internal/utils"
)

type fakeSubscriber struct {
	id       string
	mu       sync.Mutex
	received [][]byte
	sendErr  error
	answers  bool
	probes   int
	closed   bool
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) Send(msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.received = append(f.received, msg)
	return nil
}

func (f *fakeSubscriber) Probe() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	return nil
}

func (f *fakeSubscriber) Responded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answers
}

func (f *fakeSubscriber) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSubscriber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func newStartedHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(time.Hour)
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(h.Shutdown)
	return h
}

func TestHub_PublishFansOut(t *testing.T) {
	h := newStartedHub(t)
	a := &fakeSubscriber{id: "a", answers: true}
	b := &fakeSubscriber{id: "b", answers: true}
	h.Register(a)
	h.Register(b)

	n, err := h.Publish(Event{Type: EventMenuUpdate, Data: []int{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())

	var ev struct {
		Type string `json:"type"`
		Data []int  `json:"data"`
	}
	require.NoError(t, json.Unmarshal(a.received[0], &ev))
	assert.Equal(t, "menu-update", ev.Type)
	assert.Equal(t, []int{1, 2}, ev.Data)
}

func TestHub_SendFailureDoesNotAbortFanOut(t *testing.T) {
	h := newStartedHub(t)
	broken := &fakeSubscriber{id: "broken", sendErr: errors.New("pipe closed")}
	ok := &fakeSubscriber{id: "ok", answers: true}
	h.Register(broken)
	h.Register(ok)

	n, err := h.Publish(Event{Type: EventOrderUpdate, Data: "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, ok.count())
}

func TestHub_PublishReinitializesStoppedHub(t *testing.T) {
	h := NewHub(time.Hour)
	t.Cleanup(h.Shutdown)
	sub := &fakeSubscriber{id: "s", answers: true}
	h.Register(sub)

	require.False(t, h.Running())
	n, err := h.Publish(Event{Type: EventMenuUpdate})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, h.Running())
}

func TestHub_CancelledContextAllowsReinit(t *testing.T) {
	h := NewHub(time.Hour)
	t.Cleanup(h.Shutdown)
	sub := &fakeSubscriber{id: "s", answers: true}
	h.Register(sub)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.Start(ctx))
	cancel()
	require.Eventually(t, func() bool { return !h.Running() }, time.Second, 5*time.Millisecond)

	n, err := h.Publish(Event{Type: EventMenuUpdate})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, h.Running())
}

func TestHub_PublishAfterShutdownFails(t *testing.T) {
	h := NewHub(time.Hour)
	require.NoError(t, h.Start(context.Background()))
	h.Shutdown()

	_, err := h.Publish(Event{Type: EventMenuUpdate})
	assert.ErrorIs(t, err, utils.ErrBroadcastFailure)
}

func TestHub_ProbeDropsAfterTwoMisses(t *testing.T) {
	h := newStartedHub(t)
	silent := &fakeSubscriber{id: "silent"}
	alive := &fakeSubscriber{id: "alive", answers: true}
	h.Register(silent)
	h.Register(alive)

	h.probe()
	assert.Equal(t, 2, h.ClientCount(), "one miss is tolerated")

	h.probe()
	assert.Equal(t, 1, h.ClientCount())
	assert.True(t, silent.closed)
	assert.False(t, alive.closed)
	assert.Equal(t, 2, alive.probes)
}

func TestHub_ProbeResetsMissCounter(t *testing.T) {
	h := newStartedHub(t)
	flaky := &fakeSubscriber{id: "flaky"}
	h.Register(flaky)

	h.probe() // miss 1
	flaky.mu.Lock()
	flaky.answers = true
	flaky.mu.Unlock()
	h.probe() // answered, reset
	flaky.mu.Lock()
	flaky.answers = false
	flaky.mu.Unlock()
	h.probe() // miss 1 again

	assert.Equal(t, 1, h.ClientCount())
}

func TestHub_ShutdownClosesSubscribers(t *testing.T) {
	h := NewHub(time.Hour)
	require.NoError(t, h.Start(context.Background()))
	sub := &fakeSubscriber{id: "s"}
	h.Register(sub)

	h.Shutdown()
	assert.True(t, sub.closed)
	assert.Equal(t, 0, h.ClientCount())
	assert.False(t, h.Running())
}

func TestHub_ConcurrentRegisterAndPublish(t *testing.T) {
	h := newStartedHub(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		sub := &fakeSubscriber{id: utils.SubscriberID("t"), answers: true}
		go func() {
			defer wg.Done()
			h.Register(sub)
		}()
		go func() {
			defer wg.Done()
			_, _ = h.Publish(Event{Type: EventMenuUpdate})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, h.ClientCount())
}

func TestStreamSubscriber_Queue(t *testing.T) {
	s := NewStreamSubscriber("sse-1", 1)

	require.NoError(t, s.Send([]byte("a")))
	assert.ErrorIs(t, s.Send([]byte("b")), errBufferFull)

	assert.True(t, s.Responded(), "fresh subscribers count as responsive")
	assert.False(t, s.Responded())
	s.Ack()
	assert.True(t, s.Responded())

	s.Close()
	s.Close()
	assert.ErrorIs(t, s.Send([]byte("c")), errSubscriberClosed)
}

func TestHubNotifier_NewOrderPayload(t *testing.T) {
	h := newStartedHub(t)
	sub := &fakeSubscriber{id: "s", answers: true}
	h.Register(sub)

	NewHubNotifier(h).NotifyNewOrder(&models.OrderSummary{OrderID: 9}, []models.MenuItem{{Position: 1}})

	require.Equal(t, 1, sub.count())
	var ev struct {
		Type string `json:"type"`
		Data struct {
			Order struct {
				OrderID int `json:"OrderID"`
			} `json:"order"`
			UpdatedProducts []json.RawMessage `json:"updatedProducts"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(sub.received[0], &ev))
	assert.Equal(t, "new-order", ev.Type)
	assert.Equal(t, 9, ev.Data.Order.OrderID)
	assert.Len(t, ev.Data.UpdatedProducts, 1)
}
