// Package plantemplate validates and loads test plan templates (.md, .txt
// and .pdf files) used to shape the generation prompt.
package plantemplate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Validation statuses.
const (
	StatusValid   = "valid"
	StatusWarning = "warning"
	StatusFailed  = "failed"
)

// MinChars is the size below which a text template is flagged.
const MinChars = 10

// Validation is the outcome of validating a template file.
type Validation struct {
	Status  string `json:"status"`
	Format  string `json:"format,omitempty"`
	Pages   int    `json:"pages,omitempty"`
	Size    int    `json:"size,omitempty"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// OK reports whether the template can be used.
func (v Validation) OK() bool {
	return v.Status != StatusFailed
}

// FormatOf returns "pdf", "markdown" or "text" for a supported path.
func FormatOf(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "pdf", true
	case ".md":
		return "markdown", true
	case ".txt":
		return "text", true
	}
	return "", false
}

// Validate checks that path exists, has a supported extension and is
// readable.
func Validate(path string) Validation {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return Validation{
			Status:  StatusFailed,
			Error:   "File not found",
			Message: fmt.Sprintf("Template file '%s' does not exist", path),
		}
	}

	format, ok := FormatOf(path)
	if !ok {
		return Validation{
			Status:  StatusFailed,
			Error:   "Unsupported format",
			Message: "Only PDF, Markdown (.md), and text (.txt) supported",
		}
	}

	if format == "pdf" {
		pages, err := pageCount(path)
		if err != nil {
			return Validation{
				Status:  StatusFailed,
				Format:  format,
				Error:   err.Error(),
				Message: fmt.Sprintf("PDF validation error: %v", err),
			}
		}
		return Validation{
			Status:  StatusValid,
			Format:  format,
			Pages:   pages,
			Message: fmt.Sprintf("PDF template valid (%d pages)", pages),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Validation{
			Status:  StatusFailed,
			Format:  format,
			Error:   err.Error(),
			Message: fmt.Sprintf("Error reading template: %v", err),
		}
	}
	size := utf8.RuneCount(data)
	if size < MinChars {
		return Validation{
			Status:  StatusWarning,
			Format:  format,
			Size:    size,
			Message: fmt.Sprintf("Template is very small (less than %d characters)", MinChars),
		}
	}
	return Validation{
		Status:  StatusValid,
		Format:  format,
		Size:    size,
		Message: fmt.Sprintf("Template valid (%d characters)", size),
	}
}

// Load returns the text content of the template at path. PDF text is
// extracted page by page.
func Load(path string) (string, error) {
	format, ok := FormatOf(path)
	if !ok {
		return "", fmt.Errorf("unsupported template format %q", filepath.Ext(path))
	}
	if format == "pdf" {
		return loadPDF(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template: %w", err)
	}
	return string(data), nil
}

// LoadOptional loads path, returning "" when no template is configured or
// the file has gone missing.
func LoadOptional(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	text, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	return text, err
}

func pageCount(path string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return r.NumPage(), nil
}

// loadPDF extracts plain text. The pdf package panics on some malformed
// inputs, so those are turned into errors.
func loadPDF(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to extract page %d: %w", i, err)
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String(), nil
}
