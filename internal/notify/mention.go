package notify

import (
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/imkarma/crewdeck/internal/store"
)

// mentionPattern matches @name or @{name} (braces allow names with
// spaces). Plain mentions stop at whitespace or common punctuation.
var mentionPattern = regexp.MustCompile(`@\{([^}]+)\}|@([^\s@{}.,!?;:]+)`)

// Scanner resolves @-mentions in free text to active member IDs.
type Scanner struct {
	store *store.Store
	log   *logrus.Entry
}

// NewScanner creates a mention scanner backed by the member table.
func NewScanner(s *store.Store, log *logrus.Entry) *Scanner {
	return &Scanner{store: s, log: log}
}

// ParseMentions extracts the deduplicated set of mentioned names.
func ParseMentions(text string) []string {
	if text == "" {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// MentionedMembers implements workflow.MentionScanner. Lookup failures
// are logged and yield no mentions; a broken mention must not fail the
// operation that carried it.
func (s *Scanner) MentionedMembers(text string) []int64 {
	names := ParseMentions(text)
	if len(names) == 0 {
		return nil
	}
	members, err := s.store.FindActiveMembersByName(names)
	if err != nil {
		s.log.WithError(err).Error("resolve mentions")
		return nil
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids
}
