package filetype

import (
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Info contains detected file type information.
type Info struct {
	MIMEType  string
	Extension string
	IsPDF     bool
}

// Detect identifies the upload by magic bytes, not filename. The reader only
// indexes PDFs, so anything else is reported but unsupported.
func Detect(r io.Reader) (*Info, error) {
	mtype, err := mimetype.DetectReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}

	info := &Info{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
		IsPDF:     mtype.Is("application/pdf"),
	}
	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Msg("detected upload type")
	return info, nil
}

// ValidatePDF returns a descriptive error when the upload is not a PDF.
func ValidatePDF(r io.Reader) (*Info, error) {
	info, err := Detect(r)
	if err != nil {
		return nil, err
	}
	if !info.IsPDF {
		return info, fmt.Errorf("unsupported file type %s: only PDF documents can be indexed", info.MIMEType)
	}
	return info, nil
}
