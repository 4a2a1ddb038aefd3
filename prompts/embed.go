// Package prompts embeds the response templates and concept notes used by
// the development backend.
package prompts

import _ "embed"

//go:embed guide.md.tmpl
var GuideTemplate string

//go:embed evaluate.md.tmpl
var EvaluateTemplate string

//go:embed chat.md.tmpl
var ChatTemplate string

//go:embed concepts.yaml
var Concepts []byte
