package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/banter/pkg/conversation"
	"github.com/go-go-golems/banter/pkg/events"
	"github.com/go-go-golems/banter/pkg/inference"
	"github.com/go-go-golems/banter/pkg/inference/engine"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type completeResult struct {
	reply string
	err   error
}

// fakeClient records every payload and answers from respond, or, when
// release is set, from whatever the test sends on it.
type fakeClient struct {
	mu      sync.Mutex
	calls   [][]conversation.Message
	ctxs    []context.Context
	respond func(call int, messages []conversation.Message) (string, error)
	release chan completeResult
	started chan struct{}
}

func (f *fakeClient) Complete(ctx context.Context, messages []conversation.Message) (string, error) {
	f.mu.Lock()
	call := len(f.calls)
	f.calls = append(f.calls, messages)
	f.ctxs = append(f.ctxs, ctx)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		r := <-f.release
		return r.reply, r.err
	}
	return f.respond(call, messages)
}

func (f *fakeClient) Calls() [][]conversation.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	ret := make([][]conversation.Message, len(f.calls))
	copy(ret, f.calls)
	return ret
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recordingNotifier) Notes() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingSink) PublishEvent(ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) Types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]events.EventType, 0, len(r.events))
	for _, ev := range r.events {
		ret = append(ret, ev.Type())
	}
	return ret
}

func replyWith(reply string) func(int, []conversation.Message) (string, error) {
	return func(int, []conversation.Message) (string, error) {
		return reply, nil
	}
}

func failWith(err error) func(int, []conversation.Message) (string, error) {
	return func(int, []conversation.Message) (string, error) {
		return "", err
	}
}

func newTestSession(t *testing.T, client engine.CompletionClient, opts ...Option) (*Session, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	s, err := NewSession(client, n, opts...)
	require.NoError(t, err)
	return s, n
}

func user(s string) conversation.Message      { return conversation.NewUserMessage(s) }
func assistant(s string) conversation.Message { return conversation.NewAssistantMessage(s) }

func TestNewSession_RequiresClient(t *testing.T) {
	s, err := NewSession(nil, nil)
	require.ErrorIs(t, err, ErrClientNil)
	require.Nil(t, s)
}

func TestNewSession_Defaults(t *testing.T) {
	s, err := NewSession(&fakeClient{respond: replyWith("x")}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, s.SessionID)
	require.Equal(t, StateIdle, s.State())
	require.Empty(t, s.Transcript())
	require.False(t, s.IsRunning())

	s2, err := NewSession(&fakeClient{respond: replyWith("x")}, nil, WithSessionID("fixed"))
	require.NoError(t, err)
	require.Equal(t, "fixed", s2.SessionID)
}

// Scenario A: first message succeeds.
func TestSubmit_SuccessAppendsUserThenAssistant(t *testing.T) {
	client := &fakeClient{respond: replyWith("Hello!")}
	s, notifier := newTestSession(t, client)

	h, err := s.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	require.NotNil(t, h)

	msg, err := h.Wait()
	require.NoError(t, err)
	require.Equal(t, assistant("Hello!"), msg)

	require.Equal(t, []conversation.Message{user("Hi"), assistant("Hello!")}, s.Transcript())
	require.Equal(t, StateIdle, s.State())
	require.Empty(t, notifier.Notes())
	require.Equal(t, [][]conversation.Message{{user("Hi")}}, client.Calls())
}

// Scenario B: the full history is forwarded on every exchange.
func TestSubmit_ForwardsFullHistory(t *testing.T) {
	client := &fakeClient{respond: func(call int, _ []conversation.Message) (string, error) {
		if call == 0 {
			return "Hello!", nil
		}
		return "Fine, thanks.", nil
	}}
	s, _ := newTestSession(t, client)

	h, err := s.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	_, err = h.Wait()
	require.NoError(t, err)

	h, err = s.Submit(context.Background(), "How are you?")
	require.NoError(t, err)
	_, err = h.Wait()
	require.NoError(t, err)

	calls := client.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, []conversation.Message{user("Hi"), assistant("Hello!"), user("How are you?")}, calls[1])
	require.Equal(t, []conversation.Message{
		user("Hi"), assistant("Hello!"), user("How are you?"), assistant("Fine, thanks."),
	}, s.Transcript())
}

// Scenario C: a failure keeps the user turn and the next submit carries both
// consecutive user messages.
func TestSubmit_FailureKeepsUserTurnAndRecovers(t *testing.T) {
	client := &fakeClient{respond: func(call int, _ []conversation.Message) (string, error) {
		if call == 0 {
			return "", &engine.ExchangeError{Kind: engine.FailureStatus, StatusCode: 500}
		}
		return "ok", nil
	}}
	s, notifier := newTestSession(t, client)

	h, err := s.Submit(context.Background(), "A")
	require.NoError(t, err)
	msg, err := h.Wait()
	require.Error(t, err)
	require.ErrorIs(t, err, engine.ErrExchangeFailed)
	require.Equal(t, conversation.Message{}, msg)

	require.Equal(t, []conversation.Message{user("A")}, s.Transcript())
	require.Equal(t, StateIdle, s.State())
	require.Equal(t, []Notification{FailureNotification()}, notifier.Notes())

	h, err = s.Submit(context.Background(), "B")
	require.NoError(t, err)
	_, err = h.Wait()
	require.NoError(t, err)

	calls := client.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, []conversation.Message{user("A"), user("B")}, calls[1])
	require.Equal(t, []conversation.Message{user("A"), user("B"), assistant("ok")}, s.Transcript())
	require.Len(t, notifier.Notes(), 1)
}

func TestSubmit_FailureNotificationIsGeneric(t *testing.T) {
	client := &fakeClient{respond: failWith(errors.New("dial tcp: connection refused"))}
	s, notifier := newTestSession(t, client)

	h, err := s.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	_, err = h.Wait()

	var xe *engine.ExchangeError
	require.True(t, errors.As(err, &xe))
	require.Equal(t, engine.FailureTransport, xe.Kind)

	notes := notifier.Notes()
	require.Len(t, notes, 1)
	require.Equal(t, "Error", notes[0].Title)
	require.Equal(t, "Failed to send message. Please try again.", notes[0].Description)
	require.Equal(t, SeverityError, notes[0].Severity)
	require.NotContains(t, notes[0].Description, "connection refused")
}

func TestSubmit_EmptyReplyIsFailure(t *testing.T) {
	client := &fakeClient{respond: replyWith("")}
	s, notifier := newTestSession(t, client)

	h, err := s.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	_, err = h.Wait()

	var xe *engine.ExchangeError
	require.True(t, errors.As(err, &xe))
	require.Equal(t, engine.FailureMissingContent, xe.Kind)
	require.Equal(t, []conversation.Message{user("Hi")}, s.Transcript())
	require.Len(t, notifier.Notes(), 1)
}

func TestSubmit_ClientPanicIsRecovered(t *testing.T) {
	client := engine.CompletionClientFunc(func(context.Context, []conversation.Message) (string, error) {
		panic("boom")
	})
	s, notifier := newTestSession(t, client)

	h, err := s.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	_, err = h.Wait()
	require.ErrorIs(t, err, engine.ErrExchangeFailed)
	require.Contains(t, err.Error(), "boom")

	require.Equal(t, StateIdle, s.State())
	require.Equal(t, []conversation.Message{user("Hi")}, s.Transcript())
	require.Len(t, notifier.Notes(), 1)
}

func TestSubmit_EmptyInputIsNoop(t *testing.T) {
	client := &fakeClient{respond: replyWith("x")}
	sink := &recordingSink{}
	s, notifier := newTestSession(t, client, WithEventSink(sink))

	for _, text := range []string{"", "   ", "\n\t "} {
		h, err := s.Submit(context.Background(), text)
		require.ErrorIs(t, err, ErrPromptEmpty)
		require.Nil(t, h)
	}

	require.Empty(t, s.Transcript())
	require.Equal(t, StateIdle, s.State())
	require.Empty(t, client.Calls())
	require.Empty(t, sink.Types())
	require.Empty(t, notifier.Notes())
}

func TestSubmit_KeepsTextVerbatim(t *testing.T) {
	client := &fakeClient{respond: replyWith("ok")}
	s, _ := newTestSession(t, client)

	h, err := s.Submit(context.Background(), "  Hi there \n")
	require.NoError(t, err)
	_, err = h.Wait()
	require.NoError(t, err)

	require.Equal(t, user("  Hi there \n"), s.Transcript()[0])
}

func TestSubmit_SingleFlight(t *testing.T) {
	client := &fakeClient{
		release: make(chan completeResult),
		started: make(chan struct{}, 1),
	}
	s, _ := newTestSession(t, client)

	h, err := s.Submit(context.Background(), "first")
	require.NoError(t, err)
	<-client.started

	require.Equal(t, StatePending, s.State())
	require.True(t, s.IsRunning())
	require.True(t, h.IsRunning())

	h2, err := s.Submit(context.Background(), "second")
	require.ErrorIs(t, err, ErrSessionAlreadyActive)
	require.Nil(t, h2)

	// empty text while pending is rejected as empty
	_, err = s.Submit(context.Background(), " ")
	require.ErrorIs(t, err, ErrPromptEmpty)

	require.Equal(t, []conversation.Message{user("first")}, s.Transcript())

	client.release <- completeResult{reply: "done"}
	_, err = h.Wait()
	require.NoError(t, err)
	require.False(t, h.IsRunning())

	require.Len(t, client.Calls(), 1)
	require.Equal(t, []conversation.Message{user("first"), assistant("done")}, s.Transcript())
	require.Equal(t, StateIdle, s.State())
}

func TestSubmit_ConcurrentSubmitsAcceptExactlyOne(t *testing.T) {
	client := &fakeClient{
		release: make(chan completeResult),
		started: make(chan struct{}, 1),
	}
	s, _ := newTestSession(t, client)

	const n = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []*ExecutionHandle
		rejected int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			h, err := s.Submit(context.Background(), "hello")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, ErrSessionAlreadyActive)
				rejected++
				return
			}
			accepted = append(accepted, h)
		}()
	}
	close(start)
	wg.Wait()

	require.Len(t, accepted, 1)
	require.Equal(t, n-1, rejected)
	require.Len(t, s.Transcript(), 1)

	<-client.started
	client.release <- completeResult{reply: "hi"}
	_, err := accepted[0].Wait()
	require.NoError(t, err)
	require.Len(t, client.Calls(), 1)
}

func TestSubmit_EventsInOrder(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		sink := &recordingSink{}
		s, _ := newTestSession(t, &fakeClient{respond: replyWith("Hello!")}, WithEventSink(sink))

		h, err := s.Submit(context.Background(), "Hi")
		require.NoError(t, err)
		_, err = h.Wait()
		require.NoError(t, err)

		require.Equal(t, []events.EventType{
			events.EventTypeMessageAppended,
			events.EventTypeStateChanged,
			events.EventTypeMessageAppended,
			events.EventTypeStateChanged,
		}, sink.Types())

		first := sink.events[0].(*events.EventMessageAppended)
		require.Equal(t, 0, first.Index)
		require.Equal(t, user("Hi"), first.Message)
		require.Equal(t, "pending", sink.events[1].(*events.EventStateChanged).State)
		second := sink.events[2].(*events.EventMessageAppended)
		require.Equal(t, 1, second.Index)
		require.Equal(t, assistant("Hello!"), second.Message)
		require.Equal(t, "idle", sink.events[3].(*events.EventStateChanged).State)

		for _, ev := range sink.events {
			require.Equal(t, s.SessionID, ev.Metadata().SessionID)
			require.Equal(t, h.InferenceID, ev.Metadata().InferenceID)
		}
	})

	t.Run("failure", func(t *testing.T) {
		sink := &recordingSink{}
		client := &fakeClient{respond: failWith(engine.NewExchangeError(engine.FailureMalformed, errors.New("bad json")))}
		s, _ := newTestSession(t, client, WithEventSink(sink))

		h, err := s.Submit(context.Background(), "Hi")
		require.NoError(t, err)
		_, _ = h.Wait()

		require.Equal(t, []events.EventType{
			events.EventTypeMessageAppended,
			events.EventTypeStateChanged,
			events.EventTypeExchangeFailed,
			events.EventTypeStateChanged,
		}, sink.Types())
		require.Equal(t, "malformed", sink.events[2].(*events.EventExchangeFailed).Kind)
	})
}

func TestSubmit_SinkMayReadSessionBack(t *testing.T) {
	var (
		s      *Session
		mu     sync.Mutex
		states []RequestState
		lens   []int
	)
	sink := inference.EventSinkFunc(func(ev events.Event) error {
		if ev.Type() != events.EventTypeStateChanged {
			return nil
		}
		st := s.State()
		l := len(s.Transcript())
		mu.Lock()
		states = append(states, st)
		lens = append(lens, l)
		mu.Unlock()
		return nil
	})
	s, _ = newTestSession(t, &fakeClient{respond: replyWith("Hello!")}, WithEventSink(sink))

	h, err := s.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	_, err = h.Wait()
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []RequestState{StatePending, StateIdle}, states)
	require.Equal(t, []int{1, 2}, lens)
}

func TestSubmit_FromAnotherGoroutineWhileSinkReadsBack(t *testing.T) {
	var (
		s      *Session
		once   sync.Once
		second = make(chan *ExecutionHandle, 1)
		lens   = make(chan int, 1)
	)
	sink := inference.EventSinkFunc(func(ev events.Event) error {
		appended, ok := ev.(*events.EventMessageAppended)
		if !ok || appended.Message.Role != conversation.RoleAssistant {
			return nil
		}
		once.Do(func() {
			go func() {
				h, err := s.Submit(context.Background(), "second")
				if err != nil {
					h = nil
				}
				second <- h
			}()
			time.Sleep(50 * time.Millisecond)
			lens <- len(s.Transcript())
		})
		return nil
	})
	s, _ = newTestSession(t, &fakeClient{respond: replyWith("Hello!")}, WithEventSink(sink))

	h, err := s.Submit(context.Background(), "first")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := h.Wait()
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		require.FailNow(t, "first exchange never finished")
	}
	require.Equal(t, 2, <-lens)

	var h2 *ExecutionHandle
	select {
	case h2 = <-second:
	case <-time.After(3 * time.Second):
		require.FailNow(t, "second submit never returned")
	}
	require.NotNil(t, h2)
	_, err = h2.Wait()
	require.NoError(t, err)
	require.Len(t, s.Transcript(), 4)
	require.Equal(t, StateIdle, s.State())
}

func TestSubmit_SinkErrorsDoNotAffectExchange(t *testing.T) {
	sink := inference.EventSinkFunc(func(events.Event) error {
		return errors.New("sink down")
	})
	s, _ := newTestSession(t, &fakeClient{respond: replyWith("ok")}, WithEventSink(sink))

	h, err := s.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	msg, err := h.Wait()
	require.NoError(t, err)
	require.Equal(t, assistant("ok"), msg)
}

func TestSubmit_NotifierPanicStillResetsState(t *testing.T) {
	client := &fakeClient{respond: failWith(errors.New("boom"))}
	s, err := NewSession(client, NotifierFunc(func(context.Context, Notification) {
		panic("toast broke")
	}))
	require.NoError(t, err)

	h, err := s.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	_, err = h.Wait()
	require.ErrorIs(t, err, engine.ErrExchangeFailed)
	require.Equal(t, StateIdle, s.State())
}

func TestSubmit_ContextCarriesSessionMeta(t *testing.T) {
	client := &fakeClient{respond: replyWith("ok")}
	s, _ := newTestSession(t, client, WithSessionID("sess-42"))

	h, err := s.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	_, err = h.Wait()
	require.NoError(t, err)

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Equal(t, "sess-42", SessionIDFromContext(client.ctxs[0]))
	require.Equal(t, h.InferenceID, InferenceIDFromContext(client.ctxs[0]))
}

func TestSubmit_WaitImpliesNotified(t *testing.T) {
	client := &fakeClient{respond: func(int, []conversation.Message) (string, error) {
		time.Sleep(10 * time.Millisecond)
		return "", errors.New("late failure")
	}}
	s, notifier := newTestSession(t, client)

	h, err := s.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	<-h.Done()
	require.Len(t, notifier.Notes(), 1)
	require.Equal(t, StateIdle, s.State())
}

func TestNilSessionAndHandle(t *testing.T) {
	var s *Session
	_, err := s.Submit(context.Background(), "Hi")
	require.ErrorIs(t, err, ErrSessionNil)
	require.Equal(t, StateIdle, s.State())
	require.Empty(t, s.Transcript())

	var h *ExecutionHandle
	_, err = h.Wait()
	require.ErrorIs(t, err, ErrExecutionHandleNil)
	require.False(t, h.IsRunning())
}

func TestRequestStateString(t *testing.T) {
	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "pending", StatePending.String())
	require.Equal(t, "unknown", RequestState(7).String())
}
