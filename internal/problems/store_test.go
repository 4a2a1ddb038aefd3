package problems

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s, err := New(db)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func seeded(t *testing.T) *Store {
	t.Helper()
	s := newTestStore(t)
	ps, err := EmbeddedDataset()
	if err != nil {
		t.Fatalf("EmbeddedDataset: %v", err)
	}
	if _, err := s.Seed(context.Background(), ps); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return s
}

func TestEmbeddedDatasetCoversTopicsAndLevels(t *testing.T) {
	ps, err := EmbeddedDataset()
	if err != nil {
		t.Fatalf("EmbeddedDataset: %v", err)
	}
	seen := map[string]bool{}
	for _, p := range ps {
		seen[p.Topic+"/"+strings.ToLower(p.Difficulty)] = true
	}
	for _, topic := range []string{"Arrays", "Linked Lists", "Sorting", "Dynamic Programming", "Trees", "Graphs"} {
		for _, d := range []string{"easy", "medium", "hard"} {
			if !seen[topic+"/"+d] {
				t.Errorf("no %s problem for %s", d, topic)
			}
		}
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ps := []Problem{
		{Title: "A", Description: "a", Difficulty: "Easy", Topic: "Arrays"},
		{Title: "B", Description: "b", Difficulty: "Hard", Topic: "Graphs"},
	}
	ctx := context.Background()
	n, err := s.Seed(ctx, ps)
	if err != nil || n != 2 {
		t.Fatalf("first Seed = %d, %v", n, err)
	}
	n, err = s.Seed(ctx, ps)
	if err != nil || n != 0 {
		t.Fatalf("second Seed = %d, %v", n, err)
	}
	if c, _ := s.Count(ctx); c != 2 {
		t.Errorf("Count = %d, want 2", c)
	}
}

func TestPick(t *testing.T) {
	s := seeded(t)
	tests := []struct {
		query      string
		difficulty string
		wantTopic  string
	}{
		{"Arrays", "easy", "Arrays"},
		{"arrays", "EASY", "Arrays"},
		{"linked list", "medium", "Linked Lists"},
		{"dp", "hard", "Dynamic Programming"},
		{"graph", "Hard", "Graphs"},
	}
	for _, tt := range tests {
		p, err := s.Pick(context.Background(), tt.query, tt.difficulty)
		if err != nil {
			t.Errorf("Pick(%q, %q): %v", tt.query, tt.difficulty, err)
			continue
		}
		if p.Topic != tt.wantTopic {
			t.Errorf("Pick(%q) topic = %q, want %q", tt.query, p.Topic, tt.wantTopic)
		}
		if !strings.EqualFold(p.Difficulty, tt.difficulty) {
			t.Errorf("Pick(%q) difficulty = %q, want %q", tt.query, p.Difficulty, tt.difficulty)
		}
	}
}

func TestPickNotFound(t *testing.T) {
	s := seeded(t)
	for _, q := range []struct{ topic, difficulty string }{
		{"quantum", "easy"},
		{"Arrays", "impossible"},
	} {
		if _, err := s.Pick(context.Background(), q.topic, q.difficulty); !errors.Is(err, ErrNotFound) {
			t.Errorf("Pick(%q, %q) err = %v, want ErrNotFound", q.topic, q.difficulty, err)
		}
	}
}

func TestList(t *testing.T) {
	s := seeded(t)
	all, err := s.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	trees, err := s.List(context.Background(), "tree")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(trees) == 0 || len(trees) >= len(all) {
		t.Errorf("List(tree) = %d of %d", len(trees), len(all))
	}
	for _, p := range trees {
		if p.Topic != "Trees" {
			t.Errorf("List(tree) returned %q", p.Topic)
		}
	}
}

func TestMatchTopic(t *testing.T) {
	topics := []string{"Arrays", "Linked Lists", "Dynamic Programming"}
	tests := []struct {
		query string
		want  string
		ok    bool
	}{
		{"Arrays", "Arrays", true},
		{"LINKED LISTS", "Linked Lists", true},
		{"dynamic", "Dynamic Programming", true},
		{"zzz", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := MatchTopic(tt.query, topics)
		if got != tt.want || ok != tt.ok {
			t.Errorf("MatchTopic(%q) = %q, %v; want %q, %v", tt.query, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseCSV(t *testing.T) {
	in := "Title,Description,Difficulty,Related_Topics,extra\n" +
		"X,\"multi\nline\",Easy,Arrays,ignored\n" +
		",skipped,Easy,Arrays,\n"
	ps, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(ps) != 1 || ps[0].Description != "multi\nline" {
		t.Errorf("parsed %+v", ps)
	}

	if _, err := ParseCSV(strings.NewReader("title,difficulty\n")); err == nil {
		t.Error("expected missing column error")
	}
	if _, err := ParseCSV(strings.NewReader("")); err == nil {
		t.Error("expected empty dataset error")
	}
}
