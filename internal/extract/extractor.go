package extract

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// PageText is the cleaned text of one document page, kept per page so
// retrieval hits can cite their source page.
type PageText struct {
	Page int // zero-based
	Text string
}

// Extractor pulls per-page text out of a PDF using go-fitz.
type Extractor struct{}

// New creates a new extractor
func New() *Extractor {
	return &Extractor{}
}

// PageCount returns the number of pages in a PDF.
func (e *Extractor) PageCount(pdfPath string) (int, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	return doc.NumPage(), nil
}

// ExtractPages extracts and cleans text for every page of the document.
// Pages that fail to extract are kept with empty text so page numbering
// stays aligned with the document.
func (e *Extractor) ExtractPages(pdfPath string) ([]PageText, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := make([]PageText, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			log.Warn().Err(err).Int("page", i).Msg("failed to extract text from page")
			pages = append(pages, PageText{Page: i})
			continue
		}
		pages = append(pages, PageText{Page: i, Text: cleanText(text, i+1)})
	}

	log.Debug().Str("pdf", pdfPath).Int("pages", len(pages)).Msg("extracted page texts")
	return pages, nil
}

// cleanText removes headers, footers, and other artifacts. pageNum is the
// 1-based page number as printed in the document.
func cleanText(text string, pageNum int) string {
	lines := strings.Split(text, "\n")
	var cleaned []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isPageNumber(trimmed, pageNum) {
			continue
		}
		if isHeaderFooter(trimmed) {
			continue
		}
		if isNoise(trimmed) {
			continue
		}
		cleaned = append(cleaned, line)
	}

	result := fixBrokenLines(strings.Join(cleaned, "\n"))
	return strings.TrimSpace(result)
}

func isPageNumber(line string, pageNum int) bool {
	if line == fmt.Sprintf("%d", pageNum) {
		return true
	}

	patterns := []string{
		fmt.Sprintf("Page %d", pageNum),
		fmt.Sprintf("- %d -", pageNum),
		fmt.Sprintf("[%d]", pageNum),
	}
	for _, pattern := range patterns {
		if strings.EqualFold(line, pattern) {
			return true
		}
	}
	return false
}

func isHeaderFooter(line string) bool {
	if len(line) < 3 {
		return true
	}

	if len(line) < 50 && strings.ToUpper(line) == line {
		words := strings.Fields(line)
		if len(words) <= 2 {
			return true
		}
	}

	footerPatterns := []string{
		"CONFIDENTIAL",
		"COPYRIGHT",
		"ALL RIGHTS RESERVED",
		"PROPRIETARY",
	}
	upperLine := strings.ToUpper(line)
	for _, pattern := range footerPatterns {
		if strings.Contains(upperLine, pattern) && len(line) < 100 {
			return true
		}
	}
	return false
}

func isNoise(line string) bool {
	// Lines with no letters or digits are decoration
	for _, r := range line {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// fixBrokenLines joins a line with the next one when the break falls
// mid-sentence (no terminal punctuation, continuation starts lowercase).
func fixBrokenLines(text string) string {
	lines := strings.Split(text, "\n")
	var fixed []string

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if i < len(lines)-1 {
			trimmed := strings.TrimSpace(line)
			nextTrimmed := strings.TrimSpace(lines[i+1])

			if trimmed != "" && nextTrimmed != "" {
				lastChar := trimmed[len(trimmed)-1]
				isSentenceEnd := lastChar == '.' || lastChar == '!' || lastChar == '?' || lastChar == ':' || lastChar == ';'

				if !isSentenceEnd {
					firstChar := nextTrimmed[0]
					startsWithLower := firstChar >= 'a' && firstChar <= 'z'

					if startsWithLower && !strings.HasSuffix(trimmed, "-") {
						fixed = append(fixed, trimmed+" "+nextTrimmed)
						i++ // Skip next line
						continue
					}
				}
			}
		}

		fixed = append(fixed, line)
	}

	return strings.Join(fixed, "\n")
}
