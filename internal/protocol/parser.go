// Package protocol parses the structured text the language model replies with.
//
// A reply is a sequence of lines: an optional ACTIONS line that must come
// first, free speech, and an optional MEMORY line that must come last.
//
//	ACTIONS: nod, look_at_person
//	Coolt! T-rex är klassisk.
//	MEMORY[Leon]: gillar dinosaurier
package protocol

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rcliao/robot-brain/internal/model"
)

// LineKind classifies a single line of a reply.
type LineKind int

const (
	SpeechLine LineKind = iota
	ActionsLine
	MemoryLine
)

func (k LineKind) String() string {
	switch k {
	case ActionsLine:
		return "actions"
	case MemoryLine:
		return "memory"
	default:
		return "speech"
	}
}

const (
	actionsPrefix = "ACTIONS:"
	memoryPrefix  = "MEMORY"
)

var taggedMemory = regexp.MustCompile(`(?i)^MEMORY\[([\p{L}\p{N}_]+)\]:\s*(.+)$`)

// Classify reports what a line would be if it sat in the position where that
// kind is recognized. Position rules are applied by Parse.
func Classify(line string) LineKind {
	s := strings.TrimSpace(line)
	switch {
	case hasPrefixFold(s, actionsPrefix):
		return ActionsLine
	case hasPrefixFold(s, memoryPrefix):
		return MemoryLine
	default:
		return SpeechLine
	}
}

// Parse splits a reply into actions, speech and an optional memory note.
// It never fails: malformed input degrades to plain speech.
func Parse(raw string) model.ParsedResponse {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	out := model.ParsedResponse{Actions: []string{}}

	end := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if Classify(line) == MemoryLine {
			out.Memory = ParseMemoryLine(line)
			end = i
		}
		break
	}

	var speech []string
	for i, line := range lines[:end] {
		if i == 0 && Classify(line) == ActionsLine {
			out.Actions = ParseActionsLine(line)
			continue
		}
		speech = append(speech, line)
	}
	out.Speech = strings.TrimSpace(strings.Join(speech, "\n"))
	return out
}

// ParseActionsLine returns the normalized action tokens of an ACTIONS line.
func ParseActionsLine(line string) []string {
	s := strings.TrimSpace(line)
	if !hasPrefixFold(s, actionsPrefix) {
		return []string{}
	}
	s = strings.TrimSpace(s[len(actionsPrefix):])
	s = strings.Trim(s, "[]")
	out := []string{}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// ParseMemoryLine decodes a MEMORY line. It returns nil when the line carries
// no usable observation.
func ParseMemoryLine(line string) *model.MemoryNote {
	s := strings.TrimSpace(line)
	if m := taggedMemory.FindStringSubmatch(s); m != nil {
		obs := strings.TrimSpace(m[2])
		if obs == "" {
			return nil
		}
		return &model.MemoryNote{Entity: NormalizeEntity(m[1]), Observation: obs}
	}
	_, text, ok := strings.Cut(s, ":")
	if !ok {
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	note := DetectEntity(text)
	return &note
}

// NormalizeEntity maps a MEMORY tag to an entity.
func NormalizeEntity(tag string) model.Entity {
	t := strings.ToLower(strings.TrimSpace(tag))
	switch t {
	case "leon":
		return model.EntityUser
	case "env", "environment", "rummet":
		return model.EntityEnvironment
	case "self", "jag", "själv":
		return model.EntitySelf
	}
	r, size := utf8.DecodeRuneInString(t)
	if r == utf8.RuneError {
		return model.EntityGeneral
	}
	return model.Entity(string(unicode.ToUpper(r)) + t[size:])
}

var environmentKeywords = []string{"hittade", "såg", "rummet", "under", "bakom"}

// DetectEntity infers the entity of an untagged observation from a small
// fixed keyword table. Misclassification is an accepted limitation.
func DetectEntity(text string) model.MemoryNote {
	lower := strings.ToLower(strings.TrimSpace(text))

	if strings.HasPrefix(lower, "leon") {
		for _, prefix := range []string{"leon's ", "leons ", "leon "} {
			if strings.HasPrefix(lower, prefix) {
				return model.MemoryNote{Entity: model.EntityUser, Observation: strings.TrimSpace(strings.TrimSpace(text)[len(prefix):])}
			}
		}
		return model.MemoryNote{Entity: model.EntityUser, Observation: text}
	}

	if strings.HasPrefix(lower, "jag ") {
		return model.MemoryNote{Entity: model.EntitySelf, Observation: strings.TrimSpace(strings.TrimSpace(text)[len("jag "):])}
	}

	for _, kw := range environmentKeywords {
		if strings.Contains(lower, kw) {
			return model.MemoryNote{Entity: model.EntityEnvironment, Observation: text}
		}
	}
	return model.MemoryNote{Entity: model.EntityGeneral, Observation: text}
}

// Render writes a response back into the wire format Parse accepts.
func Render(p model.ParsedResponse) string {
	var lines []string
	if len(p.Actions) > 0 {
		lines = append(lines, actionsPrefix+" "+strings.Join(p.Actions, ", "))
	}
	if p.Speech != "" {
		lines = append(lines, p.Speech)
	}
	if p.Memory != nil && p.Memory.Observation != "" {
		lines = append(lines, memoryPrefix+"["+renderTag(p.Memory.Entity)+"]: "+p.Memory.Observation)
	}
	return strings.Join(lines, "\n")
}

func renderTag(e model.Entity) string {
	if e == "" {
		return string(model.EntityGeneral)
	}
	return strings.ReplaceAll(string(e), " ", "_")
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
