package reader

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// countPagesPDFCPU counts pages without MuPDF. Used as a cross-check against
// the go-fitz count at upload time; disagreement usually means a damaged
// cross-reference table.
func countPagesPDFCPU(localPath string) (int, error) {
	n, err := api.PageCountFile(localPath)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}
