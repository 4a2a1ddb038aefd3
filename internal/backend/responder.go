package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/codetrek/codetrek/internal/problems"
	"github.com/codetrek/codetrek/internal/sandbox"
	"github.com/codetrek/codetrek/prompts"
)

// Concept is a note from the concept knowledge base.
type Concept struct {
	Name      string   `yaml:"name"`
	Keywords  []string `yaml:"keywords"`
	Summary   string   `yaml:"summary"`
	Detail    string   `yaml:"detail"`
	Subtopics []string `yaml:"subtopics"`
	Hints     []string `yaml:"hints"`
}

// LoadConcepts parses a concepts YAML document.
func LoadConcepts(data []byte) ([]Concept, error) {
	var doc struct {
		Concepts []Concept `yaml:"concepts"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing concepts: %w", err)
	}
	return doc.Concepts, nil
}

var genericHints = []string{
	"Restate the problem in your own words and work a small example by hand.",
	"Write the brute-force approach first, then look for repeated work.",
	"List the edge cases: empty input, a single element, duplicates.",
}

// Responder renders guidance, evaluations and chat replies from the
// embedded templates and concept notes.
type Responder struct {
	concepts []Concept
	names    []string
	sandbox  *sandbox.Sandbox

	guide    *template.Template
	evaluate *template.Template
	chat     *template.Template
}

// NewResponder parses the embedded templates and concepts. sb runs code
// submitted for evaluation.
func NewResponder(sb *sandbox.Sandbox) (*Responder, error) {
	concepts, err := LoadConcepts(prompts.Concepts)
	if err != nil {
		return nil, err
	}
	funcs := template.FuncMap{"inc": func(i int) int { return i + 1 }}
	r := &Responder{concepts: concepts, sandbox: sb}
	for _, c := range concepts {
		r.names = append(r.names, c.Name)
	}
	if r.guide, err = template.New("guide").Funcs(funcs).Parse(prompts.GuideTemplate); err != nil {
		return nil, fmt.Errorf("parsing guide template: %w", err)
	}
	if r.evaluate, err = template.New("evaluate").Funcs(funcs).Parse(prompts.EvaluateTemplate); err != nil {
		return nil, fmt.Errorf("parsing evaluate template: %w", err)
	}
	if r.chat, err = template.New("chat").Funcs(funcs).Parse(prompts.ChatTemplate); err != nil {
		return nil, fmt.Errorf("parsing chat template: %w", err)
	}
	return r, nil
}

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

// rankConcepts returns concepts mentioned in text, best first.
func (r *Responder) rankConcepts(text string) []Concept {
	lower := strings.ToLower(text)
	words := map[string]bool{}
	for _, w := range wordRe.FindAllString(lower, -1) {
		words[w] = true
	}

	type scored struct {
		c     Concept
		score int
	}
	var hits []scored
	for _, c := range r.concepts {
		score := 0
		for _, kw := range c.Keywords {
			kw = strings.ToLower(kw)
			if strings.Contains(kw, " ") {
				if strings.Contains(lower, kw) {
					score += 2
				}
			} else if words[kw] {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{c, score})
		}
	}
	// Stable insertion sort keeps knowledge-base order among ties.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].score > hits[j-1].score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	out := make([]Concept, len(hits))
	for i, h := range hits {
		out[i] = h.c
	}
	return out
}

// FindConcept returns the concept best matching text, falling back to a
// fuzzy match of topic against concept names.
func (r *Responder) FindConcept(text, topic string) (Concept, bool) {
	if ranked := r.rankConcepts(text); len(ranked) > 0 {
		return ranked[0], true
	}
	if name, ok := problems.MatchTopic(topic, r.names); ok {
		for _, c := range r.concepts {
			if c.Name == name {
				return c, true
			}
		}
	}
	return Concept{}, false
}

// Guide renders guidance for a problem.
func (r *Responder) Guide(title, description, difficulty string) (string, error) {
	ranked := r.rankConcepts(title + " " + description)
	if len(ranked) > 2 {
		ranked = ranked[:2]
	}
	hints := genericHints
	if len(ranked) > 0 && len(ranked[0].Hints) > 0 {
		hints = ranked[0].Hints
	}
	data := struct {
		Title      string
		Difficulty string
		Concepts   []Concept
		Hints      []string
	}{title, difficulty, ranked, hints}
	return render(r.guide, data)
}

var loopToken = regexp.MustCompile(`\b(?:for|while)\b|[{}]`)

// loopShape counts loop keywords and estimates their maximum nesting.
func loopShape(code string) (loops, depth int) {
	var stack []bool
	pending, cur := 0, 0
	for _, tok := range loopToken.FindAllString(code, -1) {
		switch tok {
		case "{":
			isLoop := pending > 0
			if isLoop {
				pending--
				cur++
			}
			stack = append(stack, isLoop)
		case "}":
			if n := len(stack); n > 0 {
				if stack[n-1] {
					cur--
				}
				stack = stack[:n-1]
			}
		default:
			loops++
			pending++
			if cur+1 > depth {
				depth = cur + 1
			}
		}
	}
	return loops, depth
}

func complexity(depth int) string {
	switch depth {
	case 0:
		return "O(1)"
	case 1:
		return "O(n)"
	default:
		return fmt.Sprintf("O(n^%d)", depth)
	}
}

// Evaluate runs code and renders feedback on it.
func (r *Responder) Evaluate(ctx context.Context, title, description, code string) (string, error) {
	res, err := r.sandbox.Run(ctx, code)
	loops, depth := loopShape(code)

	data := struct {
		Title      string
		Ran        bool
		Output     string
		Failure    string
		Complexity string
		Loops      int
		Depth      int
		Notes      []string
	}{
		Title:      title,
		Ran:        res.Success,
		Complexity: complexity(depth),
		Loops:      loops,
		Depth:      depth,
	}
	if res.Success && res.Output != nil {
		data.Output = summarize(res.Output)
	}
	if err != nil {
		data.Failure = err.Error()
		data.Notes = append(data.Notes, "Fix the error above before optimising.")
	}
	if depth >= 2 {
		data.Notes = append(data.Notes, "Nested loops dominate the running time; a hash map or sorting may remove one level.")
	}
	if res.Success && !strings.Contains(code, "return") {
		data.Notes = append(data.Notes, "The snippet never returns a value; return the result so it can be checked.")
	}
	if strings.Count(code, "\n") > 40 {
		data.Notes = append(data.Notes, "Consider splitting the solution into helper functions.")
	}
	return render(r.evaluate, data)
}

func summarize(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	s := string(b)
	if len(s) > 80 {
		s = s[:77] + "..."
	}
	return s
}

var detailRe = regexp.MustCompile(`(?i)\bexplain\b|in detail`)

// Chat renders a reply to message.
func (r *Responder) Chat(message, topic, level string) (string, error) {
	c, ok := r.FindConcept(message, topic)
	data := struct {
		Concept  *Concept
		Topic    string
		Level    string
		Detailed bool
	}{Topic: topic, Level: level, Detailed: detailRe.MatchString(message)}
	if ok {
		data.Concept = &c
	}
	return render(r.chat, data)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
