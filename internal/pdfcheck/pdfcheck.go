package pdfcheck

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"time"
)

// Probe captures the result of probing a single PDF page.
type Probe struct {
	PageIndex int    `json:"page_index"`
	CharCount int    `json:"char_count"`
	Err       string `json:"err,omitempty"`
}

// Report describes the extractable-text check run at upload time. A document
// that fails the check cannot be indexed for question answering.
type Report struct {
	FilePath     string  `json:"file_path"`
	TotalPages   int     `json:"total_pages"`
	SampledPages []int   `json:"sampled_pages"`
	SampleChars  int     `json:"sample_chars"`
	Threshold    int     `json:"threshold"`
	Probes       []Probe `json:"probes"`
	Extractable  bool    `json:"extractable"`
	DurationMs   int64   `json:"duration_ms"`
}

// DefaultThreshold is used when a non-positive threshold is passed in.
const DefaultThreshold = 300

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Doc abstracts a PDF document for text probing.
type Doc interface {
	NumPage() int
	PageText(i int) (string, error)
	Close() error
}

// Opener abstracts opening a PDF path into a Doc.
type Opener interface {
	Open(path string) (Doc, error)
}

// defaultOpener is provided in opener_fitz.go using go-fitz.
var defaultOpener Opener

func setDefaultOpener(o Opener) { defaultOpener = o }

// HasExtractableText samples pages of the PDF at pdfPath and reports whether
// enough non-whitespace text is present to index the document. If threshold
// <= 0, DefaultThreshold is used.
func HasExtractableText(pdfPath string, threshold int) (bool, *Report, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if defaultOpener == nil {
		return false, nil, errors.New("no PDF opener configured")
	}
	return hasExtractableText(defaultOpener, pdfPath, threshold)
}

func hasExtractableText(opener Opener, pdfPath string, threshold int) (bool, *Report, error) {
	start := time.Now()
	d, err := opener.Open(pdfPath)
	if err != nil {
		return false, nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer d.Close()

	total := d.NumPage()
	report := &Report{
		FilePath:     pdfPath,
		TotalPages:   total,
		SampledPages: []int{},
		Threshold:    threshold,
	}
	if total <= 0 {
		report.DurationMs = time.Since(start).Milliseconds()
		return false, report, nil
	}

	sampleIdx := sampleIndices(total)
	report.SampledPages = sampleIdx

	for _, idx := range sampleIdx {
		probe := Probe{PageIndex: idx}
		text, terr := d.PageText(idx)
		if terr != nil {
			probe.Err = terr.Error()
			report.Probes = append(report.Probes, probe)
			continue
		}

		cleaned := whitespaceRegex.ReplaceAllString(text, "")
		probe.CharCount = len([]rune(cleaned))
		report.SampleChars += probe.CharCount
		report.Probes = append(report.Probes, probe)

		if report.SampleChars >= threshold {
			// Early exit for speed
			break
		}
	}

	report.Extractable = report.SampleChars >= threshold
	report.DurationMs = time.Since(start).Milliseconds()
	return report.Extractable, report, nil
}

// sampleIndices picks up to 5 pages: first, mid, last, plus random distinct
// fillers. Documents of 5 pages or fewer are sampled in full.
func sampleIndices(total int) []int {
	if total <= 0 {
		return []int{}
	}
	if total <= 5 {
		idx := make([]int, total)
		for i := 0; i < total; i++ {
			idx[i] = i
		}
		return idx
	}

	base := map[int]struct{}{0: {}, total / 2: {}, total - 1: {}}
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for len(base) < 5 {
		base[rnd.Intn(total)] = struct{}{}
	}

	out := make([]int, 0, len(base))
	for i := range base {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
