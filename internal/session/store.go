package session

import (
	"sync"

	"github.com/codetrek/codetrek/internal/transcript"
)

// Store is the single source of truth for a session. Every mutation goes
// through its methods; readers get copies via Snapshot. No operation fails.
type Store struct {
	mu         sync.Mutex
	level      Level
	topic      string
	transcript *transcript.Transcript
	question   *Question
	epoch      uint64

	// nmu serialises observer callbacks so they see changes in apply order.
	nmu       sync.Mutex
	observers map[int]func(Change)
	nextObs   int
}

// NewStore creates a session with level easy, no topic, an empty
// transcript and no question.
func NewStore() *Store {
	return &Store{
		level:      LevelEasy,
		transcript: transcript.New(),
		observers:  make(map[int]func(Change)),
	}
}

// SetLevel changes the requested difficulty.
func (s *Store) SetLevel(level Level) {
	s.mu.Lock()
	s.level = level
	ch := Change{Kind: ChangeLevel, Level: level, Topic: s.topic, Length: s.transcript.Len(), Epoch: s.epoch}
	s.publish(ch)
}

// SetTopic selects topic. A non-empty topic starts a new transcript seeded
// with a single greeting and advances the epoch so completions of fetches
// issued under the previous topic can be recognised as stale. An empty
// topic clears the selection without touching the transcript.
// The current question is never affected.
func (s *Store) SetTopic(topic string) {
	s.mu.Lock()
	s.topic = topic
	if topic == "" {
		s.mu.Unlock()
		return
	}
	s.epoch++
	s.transcript = transcript.New()
	s.transcript.Append(transcript.Bot(Greeting(topic)))
	greeting, _ := s.transcript.Last()
	ch := Change{Kind: ChangeReset, Message: &greeting, Level: s.level, Topic: topic, Length: 1, Epoch: s.epoch}
	s.publish(ch)
}

// AppendMessage adds msg to the transcript and returns the new length.
func (s *Store) AppendMessage(msg transcript.Message) int {
	s.mu.Lock()
	n := s.transcript.Append(msg)
	last, _ := s.transcript.Last()
	ch := Change{Kind: ChangeAppend, Message: &last, Level: s.level, Topic: s.topic, Length: n, Epoch: s.epoch}
	s.publish(ch)
	return n
}

// ApplyFetch records the outcome of a question fetch issued at epoch.
// msg is appended and, when q is non-nil, q becomes the current question,
// both under one lock. If the topic changed since the fetch was issued the
// outcome is discarded and ApplyFetch returns false.
func (s *Store) ApplyFetch(epoch uint64, msg transcript.Message, q *Question) bool {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return false
	}
	n := s.transcript.Append(msg)
	last, _ := s.transcript.Last()
	changes := []Change{{Kind: ChangeAppend, Message: &last, Level: s.level, Topic: s.topic, Length: n, Epoch: s.epoch}}
	if q != nil {
		cp := *q
		s.question = &cp
		qc := cp
		changes = append(changes, Change{Kind: ChangeQuestion, Question: &qc, Level: s.level, Topic: s.topic, Length: n, Epoch: s.epoch})
	}
	s.publish(changes...)
	return true
}

// Snapshot returns a copy of the whole session.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Level:      s.level,
		Topic:      s.topic,
		Transcript: s.transcript.All(),
		Epoch:      s.epoch,
	}
	if s.question != nil {
		q := *s.question
		snap.Question = &q
	}
	return snap
}

// Level returns the current level.
func (s *Store) Level() Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// Topic returns the selected topic, or "" when none is selected.
func (s *Store) Topic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topic
}

// Epoch returns the current topic epoch.
func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Question returns the current question, if any.
func (s *Store) Question() (Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.question == nil {
		return Question{}, false
	}
	return *s.question, true
}

// Observe registers fn to be called after every mutation. Observers run
// outside the state lock and may read the store, but must not mutate it.
// The returned function removes the observer.
func (s *Store) Observe(fn func(Change)) (cancel func()) {
	s.nmu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.nmu.Unlock()
	return func() {
		s.nmu.Lock()
		delete(s.observers, id)
		s.nmu.Unlock()
	}
}

// publish hands changes to observers. It must be called with s.mu held and
// releases it.
func (s *Store) publish(changes ...Change) {
	s.nmu.Lock()
	s.mu.Unlock()
	defer s.nmu.Unlock()
	for _, ch := range changes {
		for _, fn := range s.observers {
			fn(ch)
		}
	}
}
