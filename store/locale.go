package store

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/tporcham/hermes/snomed"
)

// bcp47Tags is the process-local mapping BCP47 -> language-refset identifier
// referenced by spec.md §4.2/C5's glossary, generalized from the fixed
// five-language table in terminology/language.go into a data-driven list a
// matcher can be built from at runtime against whatever refsets are
// installed.
var bcp47Tags = []struct {
	tag      language.Tag
	refsetID int64
}{
	{language.BritishEnglish, 999001261000000100},
	{language.AmericanEnglish, 900000000000509007},
	{language.French, 722131000},
	{language.MustParse("da"), 554831000005107},
	{language.MustParse("es"), 450828004},
	{language.MustParse("sv"), 45991000052106},
	{language.MustParse("de"), 722130004},
	{language.MustParse("nl"), 31000146106},
}

// LocaleResolver maps a BCP-47 language-priority list to an ordered list of
// installed language-refset identifiers (spec.md §4.2/C5). It closes over
// the refsets installed when it was built; callers rebuild it after
// re-ingestion, per spec.md's note that the mapping is a start-time snapshot.
type LocaleResolver struct {
	matcher   language.Matcher
	orderedBy map[language.Tag]int64
	order     []language.Tag
	installed map[int64]struct{}
}

// NewLocaleResolver builds a resolver scoped to the refsets currently
// installed in s.
func NewLocaleResolver(s *Store) (*LocaleResolver, error) {
	installed, err := s.InstalledReferenceSets()
	if err != nil {
		return nil, err
	}
	var tags []language.Tag
	byTag := make(map[language.Tag]int64)
	for _, e := range bcp47Tags {
		if _, ok := installed[e.refsetID]; ok {
			tags = append(tags, e.tag)
			byTag[e.tag] = e.refsetID
		}
	}
	return &LocaleResolver{matcher: language.NewMatcher(tags), orderedBy: byTag, order: tags, installed: installed}, nil
}

// Resolve implements spec.md §4.2's C5 algorithm: an `*-x-<digits>` header
// naming a valid, installed refset concept id short-circuits to that single
// refset; otherwise the priority list is matched against installed refsets
// in RFC 4647 preference order.
func (r *LocaleResolver) Resolve(header string) ([]int64, error) {
	if refsetID, ok := parseRefsetShortcut(header); ok {
		if _, installed := r.installed[refsetID]; !installed {
			return nil, nil
		}
		return []int64{refsetID}, nil
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return nil, nil
	}
	var result []int64
	seen := make(map[int64]struct{})
	for _, want := range tags {
		_, index, confidence := r.matcher.Match(want)
		if confidence == language.No {
			continue
		}
		if index < 0 || index >= len(r.order) {
			continue
		}
		refsetID := r.orderedBy[r.order[index]]
		if _, already := seen[refsetID]; !already {
			result = append(result, refsetID)
			seen[refsetID] = struct{}{}
		}
	}
	return result, nil
}

// parseRefsetShortcut recognizes a private-use subtag directly naming a
// refset concept id, e.g. "en-x-999001261000000100".
func parseRefsetShortcut(header string) (int64, bool) {
	idx := strings.Index(header, "-x-")
	if idx < 0 {
		return 0, false
	}
	digits := header[idx+3:]
	if comma := strings.IndexByte(digits, ','); comma >= 0 {
		digits = digits[:comma]
	}
	id, err := snomed.ParseIdentifier(digits)
	if err != nil || !id.IsValid() || id.Kind() != snomed.KindConcept {
		return 0, false
	}
	return int64(id), true
}
