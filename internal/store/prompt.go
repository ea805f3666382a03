package store

import (
	"strings"

	"github.com/rcliao/robot-brain/internal/model"
)

// Header returns the prompt header introducing an entity's observations.
func Header(e model.Entity) string {
	switch e {
	case model.EntityUser:
		return "Du minns om Leon:"
	case model.EntitySelf:
		return "Du minns om dig själv:"
	case model.EntityEnvironment:
		return "Du minns om rummet:"
	case model.EntityGeneral:
		return "Du minns:"
	default:
		return "Du minns om " + string(e) + ":"
	}
}

// FormatForPrompt renders the bounded memory digest for the system prompt.
// An empty store renders as "".
func (s *Store) FormatForPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FormatDocument(s.doc, MaxPromptPerEntity, MaxPromptObservations)
}

// FormatDocument renders at most perEntity recent observations per entity and
// at most total observations overall, in entity priority order.
func FormatDocument(doc *model.Document, perEntity, total int) string {
	if doc == nil {
		return ""
	}
	var sections []string
	count := 0
	for _, e := range doc.OrderedEntities() {
		if count >= total {
			break
		}
		el := doc.Entities[e]
		if el == nil || len(el.Observations) == 0 {
			continue
		}
		recent := el.Observations
		if len(recent) > perEntity {
			recent = recent[len(recent)-perEntity:]
		}

		lines := []string{Header(e)}
		for _, o := range recent {
			lines = append(lines, "- "+o.Content)
			count++
			if count >= total {
				break
			}
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	return strings.Join(sections, "\n\n")
}
