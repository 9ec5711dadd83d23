package document

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// loadPDF extracts text from a PDF, producing one document per page.
// Pages with no extractable text are skipped.
func loadPDF(path string) ([]Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	total := reader.NumPage()
	docs := make([]Document, 0, total)

	for pageNum := 1; pageNum <= total; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting text from page %d: %w", pageNum, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		docs = append(docs, Document{
			ID:         NewID(path, pageNum),
			SourcePath: path,
			Page:       pageNum,
			Text:       text,
			Metadata:   pageMetadata(path, pageNum),
		})
	}

	return docs, nil
}
