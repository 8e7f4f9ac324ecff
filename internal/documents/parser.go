package documents

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Parser extracts a single text blob from a source file
type Parser interface {
	Parse(filePath string) (string, error)
}

// PDFParser extracts text from PDF files
type PDFParser struct{}

// NewPDFParser creates a new PDF parser
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Parse extracts text from a PDF file, one blob per document with pages
// joined by blank lines.
func (p *PDFParser) Parse(filePath string) (string, error) {
	doc, err := fitz.New(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var textParts []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err == nil && strings.TrimSpace(text) != "" {
			textParts = append(textParts, text)
		}
	}

	return strings.Join(textParts, "\n\n"), nil
}

// TextParser reads plain-text and markdown files as-is
type TextParser struct{}

// NewTextParser creates a new plain-text parser
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse reads the file contents
func (p *TextParser) Parse(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

// ExtractText picks a parser by file extension and returns the extracted
// text blob. PDF uses go-fitz; .txt and .md are read directly.
func ExtractText(filePath string) (string, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return NewPDFParser().Parse(filePath)
	case ".txt", ".md":
		return NewTextParser().Parse(filePath)
	default:
		return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(filePath))
	}
}
