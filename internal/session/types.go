// Package session owns the mutable state of a tutoring session: level,
// topic, transcript and the current question.
package session

import (
	"fmt"
	"strings"

	"github.com/codetrek/codetrek/internal/transcript"
)

// Level is the requested problem difficulty.
type Level string

const (
	LevelEasy   Level = "easy"
	LevelMedium Level = "medium"
	LevelHard   Level = "hard"
)

// Levels lists every level in ascending difficulty.
var Levels = []Level{LevelEasy, LevelMedium, LevelHard}

// ParseLevel converts s (case-insensitive) to a Level.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelEasy:
		return LevelEasy, nil
	case LevelMedium:
		return LevelMedium, nil
	case LevelHard:
		return LevelHard, nil
	}
	return "", fmt.Errorf("invalid level %q (want easy, medium or hard)", s)
}

// Next returns the level after l, wrapping from hard back to easy.
func (l Level) Next() Level {
	for i, lv := range Levels {
		if lv == l {
			return Levels[(i+1)%len(Levels)]
		}
	}
	return LevelEasy
}

// Question is a practice problem retrieved from the backend.
type Question struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
	FullText    string `json:"full_text"`
}

// NewQuestion builds a Question and its transcript-ready rendering.
func NewQuestion(title, description, difficulty string) Question {
	return Question{
		Title:       title,
		Description: description,
		Difficulty:  difficulty,
		FullText:    fmt.Sprintf("### %s\n\n**Difficulty:** %s\n\n%s", title, difficulty, description),
	}
}

// Greeting is the bot message seeded when a topic is selected.
func Greeting(topic string) string {
	return fmt.Sprintf("Hello! I can help you learn %s. What would you like to know?", topic)
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	Level      Level                `json:"level"`
	Topic      string               `json:"topic"`
	Transcript []transcript.Message `json:"transcript"`
	Question   *Question            `json:"question,omitempty"`
	Epoch      uint64               `json:"epoch"`
}

// HasTopic reports whether a topic is selected.
func (s Snapshot) HasTopic() bool { return s.Topic != "" }

// ChangeKind identifies a store mutation.
type ChangeKind string

const (
	ChangeAppend   ChangeKind = "append"
	ChangeReset    ChangeKind = "reset"
	ChangeQuestion ChangeKind = "question"
	ChangeLevel    ChangeKind = "level"
)

// Change describes a single mutation, delivered to observers in the order
// the mutations were applied.
type Change struct {
	Kind     ChangeKind
	Message  *transcript.Message // appended message (append, reset)
	Question *Question           // new question (question)
	Level    Level
	Topic    string
	Length   int // transcript length after the change
	Epoch    uint64
}
