// Package pdfs extracts page-level text from uploaded PDF statements and
// splits it into token-bounded chunks for indexing.
package pdfs

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Page is the extraction outcome for a single PDF page. Pages that yield no
// text are kept in sequence and flagged rather than dropped, so page numbers
// stay citable downstream.
type Page struct {
	Number     int    // 1-based
	Text       string
	Unreadable bool
	Reason     string
}

// ExtractResult holds the ordered page texts of one document.
type ExtractResult struct {
	Pages           []Page
	UnreadablePages int
}

// ExtractPages parses raw PDF bytes and returns per-page plain text.
// A stream that is not a valid PDF container fails with
// ErrUnreadableDocument. Per-page extraction failures are recorded on the
// page and never abort the document.
func ExtractPages(data []byte) (*ExtractResult, error) {
	reader, err := newReader(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	total := reader.NumPage()
	result := &ExtractResult{Pages: make([]Page, 0, total)}

	for i := 1; i <= total; i++ {
		page := Page{Number: i}
		text, err := pageText(reader, i)
		if err != nil {
			page.Unreadable = true
			page.Reason = err.Error()
			result.UnreadablePages++
		} else if len(bytes.TrimSpace([]byte(text))) == 0 {
			page.Unreadable = true
			page.Reason = "no extractable text"
			result.UnreadablePages++
		} else {
			page.Text = text
		}
		result.Pages = append(result.Pages, page)
	}

	return result, nil
}

// newReader opens the PDF, converting parser panics into errors. The
// underlying library panics on some malformed cross-reference tables.
func newReader(data []byte) (reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse: %v", r)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// pageText extracts plain text from one page, best effort.
func pageText(reader *pdf.Reader, number int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", number, r)
		}
	}()

	page := reader.Page(number)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d: missing content", number)
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d: %w", number, err)
	}
	return text, nil
}
