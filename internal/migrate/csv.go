package migrate

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// readLines returns the non-blank lines of a legacy file, trimmed.
func readLines(path string) ([]string, error) {
	// #nosec G304 - path comes from walking the database root
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// splitLine splits one legacy line into trimmed cells. Quoted cells may
// contain commas (JSON blobs are stored that way).
func splitLine(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	cells, err := r.Read()
	if err != nil {
		return nil, err
	}
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells, nil
}

// isHeader reports whether cells look like a column header row.
func isHeader(cells []string, columns []string) bool {
	if len(cells) == 0 || len(columns) == 0 {
		return false
	}
	return strings.EqualFold(cells[0], columns[0])
}
