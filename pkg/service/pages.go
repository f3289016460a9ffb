package service

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

const (
	runesPerPage = 3000
	bytesPerPage = 100 * 1024
)

// CountPages returns the page count of an uploaded file. PDFs report their
// own page tree; HTML and plain text are paged by visible character count.
// ok is false when the format cannot be paged from its content.
func CountPages(name string, content []byte) (pages int, ok bool, err error) {
	if len(content) == 0 {
		return 0, false, nil
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return countPDFPages(content)
	case ".html", ".htm":
		doc, err := html.Parse(bytes.NewReader(content))
		if err != nil {
			return 0, false, fmt.Errorf("parse html: %w", err)
		}
		return pagesForRunes(utf8.RuneCountInString(strings.Join(strings.Fields(visibleText(doc)), " "))), true, nil
	case ".txt", ".md", ".csv":
		return pagesForRunes(utf8.RuneCount(content)), true, nil
	}
	return 0, false, nil
}

// countPDFPages turns reader panics on malformed objects into errors.
func countPDFPages(content []byte) (pages int, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, ok, err = 0, false, fmt.Errorf("open pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, false, fmt.Errorf("open pdf: %w", err)
	}
	return reader.NumPage(), true, nil
}

// EstimatePages guesses a page count from the byte size.
func EstimatePages(size int64) int {
	if size <= 0 {
		return 1
	}
	return int((size + bytesPerPage - 1) / bytesPerPage)
}

func pagesForRunes(n int) int {
	if n <= 0 {
		return 1
	}
	return (n + runesPerPage - 1) / runesPerPage
}

func visibleText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			buf.WriteString(node.Data)
			buf.WriteString(" ")
		case html.ElementNode:
			if node.Data == "script" || node.Data == "style" {
				return
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return buf.String()
}
