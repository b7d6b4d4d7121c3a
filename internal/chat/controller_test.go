package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iksnae/ptsp-chat/internal"
	"github.com/iksnae/ptsp-chat/internal/rag"
	"github.com/iksnae/ptsp-chat/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu      sync.Mutex
	resp    *rag.Response
	err     error
	calls   [][]internal.Message
	block   chan struct{}
	started chan struct{}
}

func (f *fakeSender) Send(ctx context.Context, history []internal.Message) (*rag.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, history)
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		<-block
	}
	return f.resp, f.err
}

func (f *fakeSender) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestStore(t *testing.T) *internal.SessionStore {
	t.Helper()
	return internal.NewSessionStore(testutil.CreateInMemoryDB(t))
}

func answer(msg string) *rag.Response {
	return &rag.Response{Message: msg, Sources: []internal.Source{}, EnhancedFeatures: map[string]any{}}
}

func TestSubmit_EmptyInput(t *testing.T) {
	sender := &fakeSender{resp: answer("x")}
	c := New(newTestStore(t), sender, Options{})
	defer c.Close()

	for _, input := range []string{"", "   ", "\n\t"} {
		_, err := c.Submit(context.Background(), input)
		assert.ErrorIs(t, err, ErrEmptyInput)
	}
	assert.Empty(t, c.Messages())
	assert.Equal(t, 0, sender.Calls())
	assert.Equal(t, StateIdle, c.State())
}

func TestSubmit_EndToEnd(t *testing.T) {
	store := newTestStore(t)
	sender := &fakeSender{resp: answer("DPMPTSP adalah ...")}
	c := New(store, sender, Options{})

	reply, err := c.Submit(context.Background(), "Apa itu DPMPTSP?")
	require.NoError(t, err)
	assert.Equal(t, "DPMPTSP adalah ...", reply.Content)
	assert.Empty(t, reply.Sources)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, internal.UserMessage{Content: "Apa itu DPMPTSP?"}, msgs[0])
	assistant, ok := msgs[1].(internal.AssistantMessage)
	require.True(t, ok)
	assert.Equal(t, "DPMPTSP adalah ...", assistant.Content)
	assert.Empty(t, assistant.Sources)
	assert.Contains(t, assistant.EnhancedFeatures, FeatureFrontendTime)
	assert.Equal(t, StateIdle, c.State())

	require.Len(t, sender.calls, 1)
	assert.Equal(t, []internal.Message{internal.UserMessage{Content: "Apa itu DPMPTSP?"}}, sender.calls[0])

	c.Close()
	list := store.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Apa itu DPMPTSP?", list[0].Title)
	assert.Equal(t, 2, list[0].MessageCount)
}

func TestSubmit_SendsFullHistory(t *testing.T) {
	sender := &fakeSender{resp: answer("ok")}
	c := New(newTestStore(t), sender, Options{})
	defer c.Close()

	_, err := c.Submit(context.Background(), "first")
	require.NoError(t, err)
	_, err = c.Submit(context.Background(), "second")
	require.NoError(t, err)

	require.Len(t, sender.calls, 2)
	assert.Len(t, sender.calls[1], 3)
	assert.Equal(t, "second", sender.calls[1][2].Text())
}

func TestSubmit_FailureAppendsApology(t *testing.T) {
	sender := &fakeSender{err: &rag.UnreachableError{URL: "http://127.0.0.1:8001", Err: errors.New("refused")}}
	c := New(newTestStore(t), sender, Options{})
	defer c.Close()

	reply, err := c.Submit(context.Background(), "halo")
	require.NoError(t, err)
	assert.Equal(t, ApologyMessage, reply.Content)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, ApologyMessage, msgs[1].Text())
	assert.Equal(t, StateIdle, c.State())
}

func TestSubmit_ProcessingTimes(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(1500 * time.Millisecond)
		return clock
	}

	resp := answer("ok")
	resp.EnhancedFeatures["response_time"] = "0.80s"
	resp.TotalSources = 4
	c := New(newTestStore(t), &fakeSender{resp: resp}, Options{Now: now})
	defer c.Close()

	reply, err := c.Submit(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "1.50s", reply.EnhancedFeatures[FeatureFrontendTime])
	assert.Equal(t, "0.80s", reply.EnhancedFeatures[FeatureTotalTime])
	require.NotNil(t, reply.TotalSources)
	assert.Equal(t, 4, *reply.TotalSources)
	assert.NotContains(t, resp.EnhancedFeatures, FeatureFrontendTime)
}

func TestSubmit_BusyWhileSending(t *testing.T) {
	sender := &fakeSender{resp: answer("ok"), block: make(chan struct{}), started: make(chan struct{})}
	c := New(newTestStore(t), sender, Options{})
	defer c.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Submit(context.Background(), "first")
	}()
	<-sender.started

	assert.Equal(t, StateSending, c.State())
	_, err := c.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, c.SwitchSession("other"), ErrBusy)
	assert.ErrorIs(t, c.NewChat(), ErrBusy)

	close(sender.block)
	<-done
	assert.Equal(t, StateIdle, c.State())
	assert.Len(t, c.Messages(), 2)
	assert.Equal(t, 1, sender.Calls())
}

func TestSwitchSession_FlushesCurrent(t *testing.T) {
	store := newTestStore(t)
	b := store.Create()
	b.Messages = internal.Messages{
		internal.UserMessage{Content: "pertanyaan B"},
		internal.AssistantMessage{Content: "jawaban B"},
	}
	store.Save(b)

	c := New(store, &fakeSender{resp: answer("ok")}, Options{Debounce: time.Hour})
	defer c.Close()
	require.NoError(t, c.NewChat())
	a := c.SessionID()

	_, err := c.Submit(context.Background(), "pertanyaan A")
	require.NoError(t, err)
	// the debounce window has not elapsed, nothing written yet
	_, err = store.Get(a)
	require.ErrorIs(t, err, internal.ErrSessionNotFound)

	require.NoError(t, c.SwitchSession(b.ID))

	stored, err := store.Get(a)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 2)
	assert.Equal(t, "pertanyaan A", stored.Title)

	assert.Equal(t, b.ID, c.SessionID())
	assert.Len(t, c.Messages(), 2)
}

func TestSwitchSession_UnknownIDStartsNewSession(t *testing.T) {
	c := New(newTestStore(t), &fakeSender{resp: answer("ok")}, Options{})
	defer c.Close()
	before := c.SessionID()

	require.NoError(t, c.SwitchSession("missing"))
	assert.NotEqual(t, before, c.SessionID())
	assert.NotEqual(t, "missing", c.SessionID())
	assert.Empty(t, c.Messages())
}

func TestNew_LoadsMostRecentSession(t *testing.T) {
	db := testutil.CreateInMemoryDB(t)
	testutil.InsertKV(t, db, internal.HistoryKey, testutil.HistoryBlob)
	store := internal.NewSessionStore(db)

	c := New(store, &fakeSender{}, Options{})
	defer c.Close()

	assert.Equal(t, "s2", c.SessionID())
	assert.Len(t, c.Messages(), 2)
	assert.Nil(t, c.Suggestions())
}

func TestNewChat_EmptySessionNotPersisted(t *testing.T) {
	store := newTestStore(t)
	c := New(store, &fakeSender{resp: answer("ok")}, Options{})

	require.NoError(t, c.NewChat())
	require.NoError(t, c.NewChat())
	c.Close()

	assert.Empty(t, store.List())
	assert.NotEmpty(t, c.Suggestions())
}

func TestSubmit_DebouncedPersistence(t *testing.T) {
	store := newTestStore(t)
	c := New(store, &fakeSender{resp: answer("ok")}, Options{Debounce: 20 * time.Millisecond})
	defer c.Close()

	_, err := c.Submit(context.Background(), "halo")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		list := store.List()
		return len(list) == 1 && list[0].MessageCount == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTitle(t *testing.T) {
	c := New(newTestStore(t), &fakeSender{resp: answer("ok")}, Options{Debounce: time.Hour})
	defer c.Close()

	assert.Equal(t, "", c.Title())
	_, err := c.Submit(context.Background(), "Bagaimana cara\nmengurus izin?")
	require.NoError(t, err)
	assert.Equal(t, "Bagaimana cara mengurus izin?", c.Title())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "sending", StateSending.String())
	assert.Equal(t, "State(7)", State(7).String())
}
