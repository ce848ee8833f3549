package generation

import (
	"strings"

	"studio/internal/domain"
)

// Section is one tagged block of a lyric sheet, e.g. "[chorus]" and its lines.
type Section struct {
	Type    string
	Content string
}

// ParseLyrics splits a lyric sheet into tagged sections. A tag is recognized
// only at the start of a line; brackets inside a lyric line stay as text.
// Untagged text before the first tag becomes an Intro; a sheet without any
// tag is a single Verse.
func ParseLyrics(text string) ([]Section, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var (
		sections []Section
		lead     []string
		body     []string
		tagged   bool
	)
	flush := func() {
		if tagged {
			sections[len(sections)-1].Content = strings.TrimSpace(strings.Join(body, "\n"))
		}
		body = nil
	}
	for _, line := range strings.Split(text, "\n") {
		rest := strings.TrimSpace(line)
		for strings.HasPrefix(rest, "[") {
			end := strings.IndexByte(rest, ']')
			if end == -1 {
				return nil, &domain.ValidationError{Field: "lyrics", Reason: "unterminated section tag"}
			}
			tag := strings.TrimSpace(rest[1:end])
			if tag == "" || strings.ContainsRune(tag, '[') {
				return nil, &domain.ValidationError{Field: "lyrics", Reason: "malformed section tag"}
			}
			flush()
			sections = append(sections, Section{Type: tag})
			tagged = true
			rest = strings.TrimSpace(rest[end+1:])
			line = rest
		}
		if tagged {
			body = append(body, line)
		} else {
			lead = append(lead, line)
		}
	}
	flush()

	intro := strings.TrimSpace(strings.Join(lead, "\n"))
	if !tagged {
		return []Section{{Type: "Verse", Content: intro}}, nil
	}
	if intro != "" {
		sections = append([]Section{{Type: "Intro", Content: intro}}, sections...)
	}
	return sections, nil
}

// FormatLyrics renders sections back into "[Type]\ncontent" blocks separated by a blank line.
func FormatLyrics(sections []Section) string {
	blocks := make([]string, 0, len(sections))
	for _, s := range sections {
		blocks = append(blocks, "["+s.Type+"]\n"+s.Content)
	}
	return strings.Join(blocks, "\n\n")
}

// CanonicalLyrics normalizes a lyric sheet to the tagged block layout.
func CanonicalLyrics(text string) (string, error) {
	sections, err := ParseLyrics(text)
	if err != nil {
		return "", err
	}
	return FormatLyrics(sections), nil
}
