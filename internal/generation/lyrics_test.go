package generation

import (
	"errors"
	"testing"

	"studio/internal/domain"
)

func TestParseLyrics(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Section
	}{
		{name: "empty", in: "  \n ", want: nil},
		{name: "untagged becomes verse", in: "la la la\nsecond line", want: []Section{{Type: "Verse", Content: "la la la\nsecond line"}}},
		{
			name: "tagged sections",
			in:   "[verse]\nwalking home\n\n[chorus]\nsing it loud\n",
			want: []Section{{Type: "verse", Content: "walking home"}, {Type: "chorus", Content: "sing it loud"}},
		},
		{
			name: "leading text becomes intro",
			in:   "ooh yeah\n[Verse]\nline",
			want: []Section{{Type: "Intro", Content: "ooh yeah"}, {Type: "Verse", Content: "line"}},
		},
		{
			name: "empty section kept",
			in:   "[Instrumental][Outro] fade",
			want: []Section{{Type: "Instrumental", Content: ""}, {Type: "Outro", Content: "fade"}},
		},
		{name: "crlf normalized", in: "[bridge]\r\nup\r\n", want: []Section{{Type: "bridge", Content: "up"}}},
		{
			name: "brackets inside a line stay text",
			in:   "[Verse]\nI said [oh]\nand [yeah] again",
			want: []Section{{Type: "Verse", Content: "I said [oh]\nand [yeah] again"}},
		},
		{name: "untagged with inline brackets", in: "hey [whoa] hey", want: []Section{{Type: "Verse", Content: "hey [whoa] hey"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseLyrics(tc.in)
			if err != nil {
				t.Fatalf("ParseLyrics: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d sections %#v, want %#v", len(got), got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("section %d = %#v, want %#v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestParseLyricsRejectsMalformedTags(t *testing.T) {
	for _, in := range []string{"[verse hello", "[] hi", "[[verse] hi"} {
		if _, err := ParseLyrics(in); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("ParseLyrics(%q) expected validation error, got %v", in, err)
		}
	}
}

func TestCanonicalLyricsRoundTrip(t *testing.T) {
	got, err := CanonicalLyrics("intro words\n[Chorus]   hey\n  [Verse]\nline one\nline two")
	if err != nil {
		t.Fatalf("CanonicalLyrics: %v", err)
	}
	want := "[Intro]\nintro words\n\n[Chorus]\nhey\n\n[Verse]\nline one\nline two"
	if got != want {
		t.Fatalf("CanonicalLyrics = %q, want %q", got, want)
	}
	again, err := CanonicalLyrics(got)
	if err != nil || again != got {
		t.Fatalf("canonical form should be stable: %q %v", again, err)
	}
}
