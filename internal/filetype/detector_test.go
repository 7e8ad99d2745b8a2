package filetype

import (
	"bytes"
	"strings"
	"testing"
)

func TestValidatePDF_AcceptsPDFMagic(t *testing.T) {
	data := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{' '}, 64)...)
	info, err := ValidatePDF(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !info.IsPDF {
		t.Error("expected IsPDF")
	}
	if info.MIMEType != "application/pdf" {
		t.Errorf("mime = %q", info.MIMEType)
	}
}

func TestValidatePDF_RejectsOtherTypes(t *testing.T) {
	info, err := ValidatePDF(strings.NewReader("just some plain text, not a document"))
	if err == nil {
		t.Fatal("expected error for non-PDF upload")
	}
	if info == nil || info.IsPDF {
		t.Errorf("unexpected info: %+v", info)
	}
	if !strings.Contains(err.Error(), "only PDF documents") {
		t.Errorf("expected user-facing message, got %v", err)
	}
}
