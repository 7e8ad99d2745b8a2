package ai

import "testing"

func TestParseCitation(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		wantText string
		wantPage int
		found    bool
	}{
		{
			name:     "well formed marker",
			in:       "The warranty lasts two years. [page: 11]",
			wantText: "The warranty lasts two years.",
			wantPage: 10,
			found:    true,
		},
		{
			name:     "marker with spaces and trailing newline",
			in:       "See the appendix. [page:  3 ]\n",
			wantText: "See the appendix.",
			wantPage: 2,
			found:    true,
		},
		{
			name:     "no marker",
			in:       "I could not find that in the document.",
			wantText: "I could not find that in the document.",
			found:    false,
		},
		{
			name:     "marker not at end is ignored",
			in:       "[page: 4] is where it starts, as discussed.",
			wantText: "[page: 4] is where it starts, as discussed.",
			found:    false,
		},
		{
			name:     "malformed marker",
			in:       "Answer. [page: eleven]",
			wantText: "Answer. [page: eleven]",
			found:    false,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			text, page, found := ParseCitation(c.in)
			if found != c.found {
				t.Fatalf("found = %v, want %v", found, c.found)
			}
			if text != c.wantText {
				t.Errorf("text = %q, want %q", text, c.wantText)
			}
			if found && page != c.wantPage {
				t.Errorf("page = %d, want %d", page, c.wantPage)
			}
		})
	}
}

func TestBuildUserPrompt(t *testing.T) {
	got := buildUserPrompt("what is a widget?", []Source{
		{Page: 9, Excerpt: "A widget is a thing."},
	})
	want := "PAGE EXCERPTS:\n[page: 10]\nA widget is a thing.\n\nQUESTION: what is a widget?"
	if got != want {
		t.Errorf("buildUserPrompt = %q, want %q", got, want)
	}
}
