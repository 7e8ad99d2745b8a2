package pages

import "fmt"

// Window is the configured number of context pages shown around the answer page.
type Window struct {
	Before int
	After  int
}

// Range is an inclusive, zero-based page range within a document.
type Range struct {
	Start int
	End   int
}

// Len returns the number of pages in the range.
func (r Range) Len() int { return r.End - r.Start + 1 }

// Clamp constrains a zero-based page index into [0, totalPages-1].
func Clamp(page, totalPages int) int {
	if page < 0 {
		return 0
	}
	if page >= totalPages {
		return totalPages - 1
	}
	return page
}

// Resolve computes the page range to display around answerPage and the offset
// of the answer page within that range.
//
// The cited page comes from heuristic citation extraction and may be out of
// bounds; it is clamped into [0, totalPages-1] before the window offsets
// apply, so the answer page is always inside the returned range.
func Resolve(answerPage, totalPages int, w Window) (Range, int, error) {
	if totalPages < 1 {
		return Range{}, 0, fmt.Errorf("invalid total pages: %d", totalPages)
	}
	if w.Before < 0 || w.After < 0 {
		return Range{}, 0, fmt.Errorf("invalid context window: before=%d after=%d", w.Before, w.After)
	}

	p := Clamp(answerPage, totalPages)

	start := p - w.Before
	if start < 0 {
		start = 0
	}
	end := p + w.After
	if end > totalPages-1 {
		end = totalPages - 1
	}

	return Range{Start: start, End: end}, p - start, nil
}

// DisplayOrder returns the page numbers of the range in presentation order:
// the answer page first, then the remaining pages ascending. answerOffset is
// the offset returned by Resolve. A single-page range yields one element.
func (r Range) DisplayOrder(answerOffset int) []int {
	out := make([]int, 0, r.Len())
	out = append(out, r.Start+answerOffset)
	for p := r.Start; p <= r.End; p++ {
		if p == r.Start+answerOffset {
			continue
		}
		out = append(out, p)
	}
	return out
}
