package tutor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codetrek/codetrek/internal/api"
	"github.com/codetrek/codetrek/internal/log"
	"github.com/codetrek/codetrek/internal/sandbox"
	"github.com/codetrek/codetrek/internal/session"
	"github.com/codetrek/codetrek/internal/testutil"
	"github.com/codetrek/codetrek/internal/transcript"
)

const (
	problemPath  = "/api/problem-by-topic/"
	chatPath     = "/api/chat/"
	guidePath    = "/api/guide-me/"
	evaluatePath = "/api/evaluate-code/"
)

type harness struct {
	ctrl    *Controller
	store   *session.Store
	backend *testutil.Backend
	journal *log.Logger

	mu      sync.Mutex
	notices []Notice
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:   session.NewStore(),
		backend: testutil.NewBackend(t),
	}
	j, err := log.NewLogger(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	h.journal = j
	h.ctrl = New(Options{
		Store:   h.store,
		Backend: api.NewClient(h.backend.URL, "tok", 5*time.Second),
		Runner:  sandbox.New(sandbox.Options{Timeout: 500 * time.Millisecond}),
		Journal: j,
		Notify: func(n Notice) {
			h.mu.Lock()
			h.notices = append(h.notices, n)
			h.mu.Unlock()
		},
		Health: NewHealth(2),
	})
	return h
}

func (h *harness) noticeTexts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, n := range h.notices {
		out = append(out, n.Text)
	}
	return out
}

func (h *harness) events(t *testing.T) []string {
	t.Helper()
	evs, err := h.journal.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	var out []string
	for _, e := range evs {
		out = append(out, e.Event)
	}
	return out
}

func lastText(t *testing.T, s *session.Store) string {
	t.Helper()
	m := s.Snapshot().Transcript
	if len(m) == 0 {
		t.Fatal("transcript is empty")
	}
	return m[len(m)-1].Text
}

func TestFetchQuestionSuccess(t *testing.T) {
	h := newHarness(t)
	h.backend.Set(problemPath, http.StatusOK, api.Problem{Title: "Two Sum", Description: "...", Difficulty: "easy"})
	h.ctrl.SelectTopic("Arrays")

	if err := h.ctrl.FetchQuestion(context.Background(), "Arrays", "easy"); err != nil {
		t.Fatalf("FetchQuestion: %v", err)
	}

	want := "### Two Sum\n\n**Difficulty:** easy\n\n..."
	snap := h.store.Snapshot()
	if len(snap.Transcript) != 2 {
		t.Fatalf("transcript has %d entries, want 2", len(snap.Transcript))
	}
	if got := snap.Transcript[1]; got.Kind != transcript.KindBot || got.Text != want {
		t.Errorf("appended %+v, want bot %q", got, want)
	}
	if snap.Question == nil || snap.Question.FullText != want {
		t.Errorf("Question = %+v", snap.Question)
	}

	reqs := h.backend.Requests(problemPath)
	if len(reqs) != 1 {
		t.Fatalf("got %d requests, want 1", len(reqs))
	}
	if reqs[0].Query != "difficulty=easy&topic=Arrays" {
		t.Errorf("query = %q", reqs[0].Query)
	}
	if got := reqs[0].Header.Get("Authorization"); got != "Token tok" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestFetchQuestionFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   interface{}
		want   string
	}{
		{"server error text", http.StatusNotFound, map[string]string{"error": "No matching questions found"}, "⚠️ No matching questions found"},
		{"server error without text", http.StatusInternalServerError, map[string]string{}, "⚠️ Unable to fetch a question right now."},
		{"malformed body", http.StatusOK, "<html>", "⚠️ Network error. Please try again later."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.ctrl.SelectTopic("Arrays")
			prev := session.NewQuestion("Old", "d", "easy")
			h.store.ApplyFetch(h.store.Epoch(), transcript.Bot(prev.FullText), &prev)
			before := len(h.store.Snapshot().Transcript)

			h.backend.Set(problemPath, tt.status, tt.body)
			if err := h.ctrl.FetchQuestion(context.Background(), "Arrays", "easy"); err == nil {
				t.Fatal("expected error")
			}

			snap := h.store.Snapshot()
			if len(snap.Transcript) != before+1 {
				t.Fatalf("transcript grew by %d, want 1", len(snap.Transcript)-before)
			}
			if got := lastText(t, h.store); got != tt.want {
				t.Errorf("appended %q, want %q", got, tt.want)
			}
			if snap.Question == nil || snap.Question.Title != "Old" {
				t.Errorf("Question changed to %+v", snap.Question)
			}
		})
	}
}

func TestFetchQuestionUnreachable(t *testing.T) {
	store := session.NewStore()
	ctrl := New(Options{
		Store:   store,
		Backend: api.NewClient("http://127.0.0.1:1", "", time.Second),
		Runner:  sandbox.New(sandbox.Options{}),
		Health:  NewHealth(1),
	})
	ctrl.SelectTopic("Trees")

	err := ctrl.FetchQuestion(context.Background(), "Trees", "hard")
	if !api.IsTransport(err) {
		t.Fatalf("err = %v, want transport error", err)
	}
	if got := lastText(t, store); got != "⚠️ Network error. Please try again later." {
		t.Errorf("appended %q", got)
	}
	if !ctrl.Health().Unreachable() {
		t.Error("health not tripped after transport failure")
	}
}

func TestFetchQuestionEmptyTopic(t *testing.T) {
	h := newHarness(t)
	if err := h.ctrl.FetchQuestion(context.Background(), "", "easy"); !errors.Is(err, ErrNoTopic) {
		t.Errorf("err = %v, want ErrNoTopic", err)
	}
	if n := len(h.store.Snapshot().Transcript); n != 0 {
		t.Errorf("transcript has %d entries, want 0", n)
	}
	if n := len(h.backend.Requests(problemPath)); n != 0 {
		t.Errorf("sent %d requests, want 0", n)
	}
}

func TestFetchCurrentUsesSessionLevel(t *testing.T) {
	h := newHarness(t)
	h.backend.Set(problemPath, http.StatusOK, api.Problem{Title: "Paths", Description: "d", Difficulty: "hard"})
	h.ctrl.SelectTopic("Graphs")
	h.ctrl.SetLevel(session.LevelHard)

	if err := h.ctrl.FetchCurrent(context.Background()); err != nil {
		t.Fatalf("FetchCurrent: %v", err)
	}
	reqs := h.backend.Requests(problemPath)
	if len(reqs) != 1 || !strings.Contains(reqs[0].Query, "difficulty=hard") {
		t.Errorf("requests = %+v", reqs)
	}
}

func TestTopicChangeDiscardsInFlightFetch(t *testing.T) {
	h := newHarness(t)
	h.backend.Set(problemPath, http.StatusOK, api.Problem{Title: "Two Sum", Description: "d", Difficulty: "easy"})
	release := h.backend.Hold(problemPath)
	defer release()

	h.ctrl.SelectTopic("Arrays")
	done := make(chan error, 1)
	go func() {
		done <- h.ctrl.FetchQuestion(context.Background(), "Arrays", "easy")
	}()

	select {
	case <-h.backend.Arrived():
	case <-time.After(5 * time.Second):
		t.Fatal("fetch never reached the backend")
	}
	h.ctrl.SelectTopic("Graphs")

	select {
	case err := <-done:
		if !errors.Is(err, ErrSuperseded) {
			t.Errorf("err = %v, want ErrSuperseded", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("superseded fetch did not return")
	}

	snap := h.store.Snapshot()
	if len(snap.Transcript) != 1 || snap.Transcript[0].Text != session.Greeting("Graphs") {
		t.Errorf("new topic transcript = %+v", snap.Transcript)
	}
	if snap.Question != nil {
		t.Errorf("Question set by superseded fetch: %+v", snap.Question)
	}
	if h.ctrl.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0", h.ctrl.InFlight())
	}
	if h.ctrl.Health().ConsecutiveFailures() != 0 {
		t.Error("superseded fetch counted as a backend failure")
	}

	evs := h.events(t)
	if len(evs) == 0 || evs[len(evs)-1] != log.EventQuestionDiscarded {
		t.Errorf("events = %v, want trailing %s", evs, log.EventQuestionDiscarded)
	}
}

func TestFetchForStaleSelectionIsDiscarded(t *testing.T) {
	h := newHarness(t)
	h.backend.Set(problemPath, http.StatusOK, api.Problem{Title: "Two Sum", Description: "d", Difficulty: "easy"})

	h.ctrl.SelectTopic("Arrays")
	stale := h.store.Snapshot()
	h.ctrl.SelectTopic("Graphs")

	err := h.ctrl.fetch(context.Background(), stale.Topic, string(stale.Level), stale.Epoch)
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("err = %v, want ErrSuperseded", err)
	}
	if n := len(h.backend.Requests(problemPath)); n != 0 {
		t.Errorf("backend received %d requests, want 0", n)
	}

	snap := h.store.Snapshot()
	if len(snap.Transcript) != 1 || snap.Transcript[0].Text != session.Greeting("Graphs") {
		t.Errorf("new topic transcript = %+v", snap.Transcript)
	}
	if snap.Question != nil {
		t.Errorf("Question set for stale selection: %+v", snap.Question)
	}
	if h.ctrl.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0", h.ctrl.InFlight())
	}
	evs := h.events(t)
	if len(evs) == 0 || evs[len(evs)-1] != log.EventQuestionDiscarded {
		t.Errorf("events = %v, want trailing %s", evs, log.EventQuestionDiscarded)
	}
}

func TestSendMessage(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   interface{}
		want   string
	}{
		{"reply", http.StatusOK, map[string]any{"bot_response": map[string]string{"content": "Use two pointers."}}, "Use two pointers."},
		{"fim tokens stripped", http.StatusOK, map[string]any{"bot_response": map[string]string{"content": "<|fim_prefix|>Hi<|fim_suffix|> there<|fim_middle|>"}}, "Hi there"},
		{"missing content", http.StatusOK, map[string]any{}, "No response from server."},
		{"server failure", http.StatusInternalServerError, map[string]string{"error": "boom"}, "⚠️ Something went wrong while connecting to the server."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.ctrl.SelectTopic("Sorting")
			h.backend.Set(chatPath, tt.status, tt.body)

			_ = h.ctrl.SendMessage(context.Background(), "how?")

			msgs := h.store.Snapshot().Transcript
			if len(msgs) != 3 {
				t.Fatalf("transcript has %d entries, want 3", len(msgs))
			}
			if msgs[1].Kind != transcript.KindUser || msgs[1].Text != "how?" {
				t.Errorf("user message = %+v", msgs[1])
			}
			if msgs[2].Kind != transcript.KindBot || msgs[2].Text != tt.want {
				t.Errorf("bot message = %q, want %q", msgs[2].Text, tt.want)
			}

			var req api.ChatRequest
			h.backend.Requests(chatPath)[0].Decode(t, &req)
			if req.Message != "how?" || req.Topic != "Sorting" || req.Level != "easy" {
				t.Errorf("request = %+v", req)
			}
		})
	}
}

func TestSendMessageBlankIsNoop(t *testing.T) {
	h := newHarness(t)
	for _, text := range []string{"", "   ", "\n\t"} {
		if err := h.ctrl.SendMessage(context.Background(), text); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("SendMessage(%q) = %v, want ErrEmptyMessage", text, err)
		}
	}
	if n := len(h.store.Snapshot().Transcript); n != 0 {
		t.Errorf("transcript has %d entries, want 0", n)
	}
	if n := len(h.backend.Requests(chatPath)); n != 0 {
		t.Errorf("sent %d requests", n)
	}
}

func withQuestion(h *harness) {
	q := session.NewQuestion("Two Sum", "Find two numbers.", "easy")
	h.store.ApplyFetch(h.store.Epoch(), transcript.Bot(q.FullText), &q)
}

func TestGuideMeDeliversThroughBridge(t *testing.T) {
	h := newHarness(t)
	withQuestion(h)
	h.backend.Set(guidePath, http.StatusOK, api.GuideResponse{Guide: "Try a hash map."})

	var got []string
	h.ctrl.Bridge().Register(func(s string) { got = append(got, s) })

	if err := h.ctrl.GuideMe(context.Background()); err != nil {
		t.Fatalf("GuideMe: %v", err)
	}
	if len(got) != 1 || got[0] != "Try a hash map." {
		t.Errorf("handler got %v", got)
	}
	if lastText(t, h.store) != "Try a hash map." {
		t.Errorf("transcript tail = %q", lastText(t, h.store))
	}

	var req api.GuideRequest
	h.backend.Requests(guidePath)[0].Decode(t, &req)
	if req.Title != "Two Sum" || req.Description != "Find two numbers." || req.Difficulty != "easy" {
		t.Errorf("request = %+v", req)
	}
}

func TestGuideMeFailureNeverAppends(t *testing.T) {
	tests := []struct {
		name     string
		question bool
		status   int
		wantErr  error
	}{
		{"no question", false, http.StatusOK, ErrNoQuestion},
		{"server error", true, http.StatusInternalServerError, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.question {
				withQuestion(h)
			}
			h.backend.Set(guidePath, tt.status, map[string]string{"error": "x"})
			before := len(h.store.Snapshot().Transcript)

			called := false
			h.ctrl.Bridge().Register(func(string) { called = true })

			err := h.ctrl.GuideMe(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if n := len(h.store.Snapshot().Transcript); n != before {
				t.Errorf("transcript grew from %d to %d", before, n)
			}
			if called {
				t.Error("bridge handler invoked on failure")
			}
			if notices := h.noticeTexts(); len(notices) != 1 || notices[0] != "Error getting guidance" {
				t.Errorf("notices = %v", notices)
			}
			if !tt.question && len(h.backend.Requests(guidePath)) != 0 {
				t.Error("request sent without a question")
			}
		})
	}
}

func TestEvaluateCode(t *testing.T) {
	h := newHarness(t)
	withQuestion(h)
	h.backend.Set(evaluatePath, http.StatusOK, api.EvaluateResponse{Feedback: "Correct."})

	ch, sub := h.ctrl.Bridge().Listen(1)
	defer sub.Cancel()

	if err := h.ctrl.EvaluateCode(context.Background(), "return 1"); err != nil {
		t.Fatalf("EvaluateCode: %v", err)
	}
	want := "## Code Evaluation\nCorrect."
	select {
	case got := <-ch:
		if got != want {
			t.Errorf("delivered %q, want %q", got, want)
		}
	default:
		t.Fatal("nothing delivered through the bridge")
	}
	if lastText(t, h.store) != want {
		t.Errorf("transcript tail = %q", lastText(t, h.store))
	}

	var req api.EvaluateRequest
	h.backend.Requests(evaluatePath)[0].Decode(t, &req)
	if req.Code != "return 1" || req.Title != "Two Sum" {
		t.Errorf("request = %+v", req)
	}
}

func TestEvaluateCodeFailures(t *testing.T) {
	h := newHarness(t)
	if err := h.ctrl.EvaluateCode(context.Background(), "x"); !errors.Is(err, ErrNoQuestion) {
		t.Errorf("err = %v, want ErrNoQuestion", err)
	}
	withQuestion(h)
	h.backend.Set(evaluatePath, http.StatusBadRequest, map[string]string{"error": "Title and code are required"})
	before := len(h.store.Snapshot().Transcript)
	if err := h.ctrl.EvaluateCode(context.Background(), "x"); err == nil {
		t.Error("expected error")
	}
	if n := len(h.store.Snapshot().Transcript); n != before {
		t.Errorf("transcript grew from %d to %d", before, n)
	}
	notices := h.noticeTexts()
	if len(notices) != 2 || notices[0] != "Error evaluating code" || notices[1] != "Error evaluating code" {
		t.Errorf("notices = %v", notices)
	}
}

func TestRunCode(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		wantSuccess bool
		wantOutput  string
		wantEvent   string
	}{
		{"value", "return 2+2", true, "4", log.EventCodeExecuted},
		{"fault", "throw new Error('boom')", false, "boom", log.EventCodeExecuted},
		{"policy", "require('fs')", false, "Import statements are not allowed for security reasons", log.EventCodeRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			res := h.ctrl.RunCode(context.Background(), tt.code)
			if res.Success != tt.wantSuccess || fmt.Sprint(res.Output) != tt.wantOutput {
				t.Errorf("result = %+v", res)
			}

			msgs := h.store.Snapshot().Transcript
			if len(msgs) != 1 || msgs[0].Kind != transcript.KindCodeOutput {
				t.Fatalf("transcript = %+v", msgs)
			}
			if msgs[0].Result.Code != tt.code {
				t.Errorf("stored code = %q", msgs[0].Result.Code)
			}
			evs := h.events(t)
			if len(evs) != 1 || evs[0] != tt.wantEvent {
				t.Errorf("events = %v, want [%s]", evs, tt.wantEvent)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	hl := NewHealth(2)
	hl.RecordFailure()
	if hl.Unreachable() {
		t.Error("unreachable after one failure")
	}
	hl.RecordFailure()
	if !hl.Unreachable() {
		t.Error("reachable after threshold failures")
	}
	hl.RecordSuccess()
	if hl.Unreachable() || hl.ConsecutiveFailures() != 0 {
		t.Error("success did not reset")
	}
	if NewHealth(0).threshold != 3 {
		t.Error("default threshold not applied")
	}
}
