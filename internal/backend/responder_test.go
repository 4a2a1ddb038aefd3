package backend

import (
	"strings"
	"testing"

	"github.com/codetrek/codetrek/internal/sandbox"
)

func TestLoopShape(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		wantLoops int
		wantDepth int
	}{
		{"none", "return 1", 0, 0},
		{"single", "for (let i = 0; i < n; i++) { s += i }", 1, 1},
		{"sequential", "for (;;) { break }\nwhile (x) { x-- }", 2, 1},
		{"nested", "for (;;) { while (y) { y-- } }", 2, 2},
		{"block inside loop", "for (;;) { if (a) { b() } }", 1, 1},
		{"braceless", "for (;;) x++", 1, 1},
		{"identifier", "const format = 1; return format", 0, 0},
	}
	for _, tt := range tests {
		loops, depth := loopShape(tt.code)
		if loops != tt.wantLoops || depth != tt.wantDepth {
			t.Errorf("%s: loopShape = %d, %d; want %d, %d", tt.name, loops, depth, tt.wantLoops, tt.wantDepth)
		}
	}
}

func TestFindConcept(t *testing.T) {
	r, err := NewResponder(sandbox.New(sandbox.Options{}))
	if err != nil {
		t.Fatalf("NewResponder: %v", err)
	}
	tests := []struct {
		text, topic, want string
		ok               bool
	}{
		{"how does a hash map work", "", "Hash Maps", true},
		{"what is memoization in dp", "", "Dynamic Programming", true},
		{"any tips?", "Graphs", "Graphs", true},
		{"any tips?", "linked", "Linked Lists", true},
		{"hello", "", "", false},
	}
	for _, tt := range tests {
		c, ok := r.FindConcept(tt.text, tt.topic)
		if ok != tt.ok || c.Name != tt.want {
			t.Errorf("FindConcept(%q, %q) = %q, %v; want %q, %v", tt.text, tt.topic, c.Name, ok, tt.want, tt.ok)
		}
	}
}

func TestChatFallback(t *testing.T) {
	r, err := NewResponder(sandbox.New(sandbox.Options{}))
	if err != nil {
		t.Fatalf("NewResponder: %v", err)
	}
	out, err := r.Chat("hello", "", "easy")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !strings.HasPrefix(out, "I don't have notes on that yet.") {
		t.Errorf("Chat = %q", out)
	}
}
