// Package schedule turns a freeform weekly schedule post into candidate
// Operations matched against known template names.
package schedule

import (
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Bullet marks the start of one event line inside a day section.
const Bullet = "•"

// minWordLen is the shortest word that counts toward a template match.
const minWordLen = 4

// Unix timestamps outside this window are treated as noise (years, counts).
var (
	minTimestamp = time.Date(2001, 9, 9, 0, 0, 0, 0, time.UTC).Unix()
	maxTimestamp = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
)

var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// Match is one schedule entry and the template it resolved to.
type Match struct {
	Day          time.Weekday `json:"day"`
	TemplateName string       `json:"template_name"`
	EventTitle   string       `json:"event_title"`
	Date         time.Time    `json:"date"`
	Organizer    string       `json:"organizer"`
	// Postable is true when both a template and a valid timestamp were found.
	Postable bool `json:"postable"`
}

// HasDate reports whether a timestamp was parsed for the entry.
func (m Match) HasDate() bool { return !m.Date.IsZero() }

type section struct {
	day   time.Weekday
	start int
	body  string
}

// Parse splits text into weekday sections and returns one Match per bullet,
// in the order they appear.
func Parse(text string, templates []string) []Match {
	var matches []Match
	for _, sec := range splitDays(text) {
		for _, entry := range splitBullets(sec.body) {
			m := parseEntry(entry, templates)
			m.Day = sec.day
			matches = append(matches, m)
		}
	}
	return matches
}

// Postable filters matches down to the ones that can be posted directly.
func Postable(matches []Match) []Match {
	var out []Match
	for _, m := range matches {
		if m.Postable {
			out = append(out, m)
		}
	}
	return out
}

// splitDays locates the first occurrence of each weekday name and slices the
// text between consecutive occurrences. The last day runs to the end.
func splitDays(text string) []section {
	var found []section
	for _, day := range weekdays {
		idx := indexFold(text, day.String())
		if idx < 0 {
			continue
		}
		found = append(found, section{day: day, start: idx})
	}

	slices.SortFunc(found, func(a, b section) int { return a.start - b.start })

	for i := range found {
		from := found[i].start + len(found[i].day.String())
		to := len(text)
		if i+1 < len(found) {
			to = found[i+1].start
		}
		found[i].body = text[from:to]
	}
	return found
}

// indexFold is a case-insensitive strings.Index for ASCII needles.
func indexFold(s, needle string) int {
	for i := 0; i+len(needle) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

// splitBullets returns the text following each bullet marker.
func splitBullets(body string) []string {
	parts := strings.Split(body, Bullet)
	if len(parts) < 2 {
		return nil
	}
	var out []string
	for _, p := range parts[1:] {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseEntry(entry string, templates []string) Match {
	line := entry
	if nl := strings.IndexAny(line, "\r\n"); nl >= 0 {
		line = line[:nl]
	}

	body, organizer := line, ""
	if at := strings.Index(line, "@"); at >= 0 {
		body = line[:at]
		organizer = strings.TrimSpace(strings.TrimRight(line[at+1:], "> \t"))
	}

	m := Match{
		EventTitle: extractTitle(body),
		Organizer:  organizer,
	}

	if ts, ok := extractTimestamp(body); ok {
		m.Date = time.Unix(ts, 0).UTC()
	}

	m.TemplateName = BestTemplate(m.EventTitle, templates)
	m.Postable = m.TemplateName != "" && m.HasDate()
	return m
}

// extractTitle returns the text before the first colon, digit or tag opener.
func extractTitle(body string) string {
	end := strings.IndexFunc(body, func(r rune) bool {
		return r == ':' || r == '<' || unicode.IsDigit(r)
	})
	if end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// extractTimestamp concatenates every digit in body and accepts the result
// when it is a plausible Unix timestamp.
func extractTimestamp(body string) (int64, bool) {
	var digits strings.Builder
	for _, r := range body {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, false
	}

	ts, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil || ts < minTimestamp || ts >= maxTimestamp {
		return 0, false
	}
	return ts, true
}

// BestTemplate returns the template sharing the most significant words with
// title, or "" when no template shares any. Ties keep the earlier template.
func BestTemplate(title string, templates []string) string {
	titleWords := words(title)
	if len(titleWords) == 0 {
		return ""
	}

	best, bestScore := "", 0
	for _, name := range templates {
		score := overlap(titleWords, words(name))
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	return best
}

// overlap counts template words present in the title, bounded by the
// template's own word count.
func overlap(title, template []string) int {
	n := 0
	for _, w := range template {
		if slices.Contains(title, w) {
			n++
		}
	}
	return min(n, len(template))
}

// words lower-cases s and returns its distinct words of at least minWordLen
// characters.
func words(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, f := range fields {
		if len([]rune(f)) >= minWordLen && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}
