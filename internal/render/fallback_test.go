package render

import (
	"bytes"
	"testing"
)

func TestFallbackProducesPDF(t *testing.T) {
	rc := Context{
		Name:       "Ada Lovelace",
		EventTitle: "Go Meetup Toronto",
		Date:       "2026-03-14",
	}

	pdf, err := NewFallback().RenderPDF(rc)

	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("output does not start with PDF magic, got %q", pdf[:min(8, len(pdf))])
	}

	if len(pdf) < 500 {
		t.Fatalf("suspiciously small PDF: %d bytes", len(pdf))
	}
}

func TestFallbackIsDeterministicAcrossContexts(t *testing.T) {
	// different contexts must both render; nothing about the input can
	// make the fallback fail
	contexts := []Context{
		{},
		{Name: "名前", EventTitle: `quotes "inside" title`, Date: "2026-01-01"},
	}

	for _, rc := range contexts {
		pdf, err := NewFallback().RenderPDF(rc)

		if err != nil {
			t.Fatalf("render failed for %+v: %v", rc, err)
		}

		if !bytes.HasPrefix(pdf, []byte("%PDF")) {
			t.Fatalf("no PDF magic for %+v", rc)
		}
	}
}
