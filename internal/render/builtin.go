package render

import "github.com/tpcreator/tpagent/internal/domain"

func init() {
	MustRegister(domain.FormatMarkdown, Markdown)
	MustRegister(domain.FormatPDF, PDF)
	MustRegister(domain.FormatDOCX, DOCX)
}

// Markdown returns the body unchanged.
func Markdown(doc Document) ([]byte, error) {
	return []byte(doc.Body), nil
}
