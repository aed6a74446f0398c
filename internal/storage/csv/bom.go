package csv

import "strings"

const utf8BOM = "\uFEFF"

// stripHeaderBOM removes a UTF-8 BOM from the first cell if present. Files
// saved by Excel as "CSV UTF-8" start with one.
func stripHeaderBOM(row []string) []string {
	if len(row) == 0 {
		return row
	}
	row[0] = strings.TrimPrefix(row[0], utf8BOM)
	return row
}
