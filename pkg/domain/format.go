package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// UploadDateLayout is the calendar-date layout used for Document.UploadDate.
const UploadDateLayout = "2006-01-02"

// FormatSize renders a byte count the way the document table shows it.
func FormatSize(n int64) string {
	if n < 1024*1024 {
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	}
	return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
}

// TypeFromName returns the upper-cased extension of a filename, without the dot.
// A name without a dot yields the whole name upper-cased.
func TypeFromName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[i+1:]
	}
	return strings.ToUpper(base)
}

// TitleFromName strips directory and extension from a filename.
func TitleFromName(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	title := strings.TrimSpace(strings.TrimSuffix(base, ext))
	if title == "" || title == "." {
		return "Untitled document"
	}
	return title
}
