// Package parser implements C1, the DocumentParser capability: bytes
// plus a file extension in, extracted text out. Connectors hand it raw
// bytes fetched from the source system; it never performs its own I/O.
package parser

import (
	"context"
	"fmt"
	"strings"
)

// Result is the text extracted from one document, plus how many pages
// the source format reported (1 for formats without pagination).
type Result struct {
	Text  string
	Pages int
}

// Parser extracts text from raw document bytes. ext is the lowercase
// file extension including the leading dot, e.g. ".pdf".
type Parser interface {
	Parse(ctx context.Context, data []byte, ext string) (Result, error)
}

// plainTextExts are extensions the textAdapter can read directly
// without any OCR or layout analysis.
var plainTextExts = map[string]bool{
	".txt": true, ".md": true, ".csv": true, ".json": true,
	".log": true, ".yaml": true, ".yml": true,
}

// Router dispatches to a DocAI-backed adapter for formats that need
// OCR/layout analysis (PDF, DOC/DOCX, images) and decodes the extensions
// in plainTextExts directly; any other extension is an error. This matches spec.md's "given bytes + extension → text"
// contract for C1.
type Router struct {
	docAI DocAIClient
}

// DocAIClient is the subset of the Document AI adapter Router depends
// on, narrowed to an interface so tests can supply a fake.
type DocAIClient interface {
	ProcessBytes(ctx context.Context, data []byte, mimeType string) (Result, error)
}

// NewRouter creates a Router. docAI may be nil; in that case documents
// requiring it fail with a clear error instead of panicking.
func NewRouter(docAI DocAIClient) *Router {
	return &Router{docAI: docAI}
}

var _ Parser = (*Router)(nil)

// Parse routes by extension: plain-text formats are decoded directly,
// formats in docAIMimeTypes are handed to Document AI, and any other
// extension returns an error.
func (r *Router) Parse(ctx context.Context, data []byte, ext string) (Result, error) {
	ext = strings.ToLower(ext)

	if plainTextExts[ext] {
		return Result{Text: string(data), Pages: 1}, nil
	}

	mimeType, ok := docAIMimeTypes[ext]
	if !ok {
		return Result{}, fmt.Errorf("parser.Parse: unsupported extension %q", ext)
	}
	if r.docAI == nil {
		return Result{}, fmt.Errorf("parser.Parse: extension %q requires Document AI, none configured", ext)
	}
	res, err := r.docAI.ProcessBytes(ctx, data, mimeType)
	if err != nil {
		return Result{}, fmt.Errorf("parser.Parse: %w", err)
	}
	return res, nil
}

// docAIMimeTypes maps extensions that need Document AI's OCR/layout
// pipeline to the MIME type it expects.
var docAIMimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":  "application/msword",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".tiff": "image/tiff",
}
