package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// contentColumn is the required column; externalIDColumns are accepted
// aliases for the optional external id column.
const contentColumn = "content"

var externalIDColumns = map[string]bool{
	"external_id":     true,
	"user_content_id": true,
}

// ParseItemsFile parses an uploaded file into item inputs. CSV files use the
// given separator (comma when empty), XLSX files read the first sheet, and
// anything else falls back to one item per non-empty line. Tabular formats
// need a header row with a content column; its absence is reported before
// anything is written.
func ParseItemsFile(filename string, content []byte, separator string) ([]ItemInput, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return parseCSV(content, separator)
	case ".xlsx":
		return parseXLSX(content)
	default:
		return parseLines(content), nil
	}
}

func parseCSV(content []byte, separator string) ([]ItemInput, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = ','
	if separator != "" {
		runes := []rune(separator)
		reader.Comma = runes[0]
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return parseTable(rows)
}

func parseXLSX(content []byte) ([]ItemInput, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMissingFileColumns)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return parseTable(rows)
}

// parseTable turns header + data rows into item inputs. Header names match
// case-insensitively after trimming.
func parseTable(rows [][]string) ([]ItemInput, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrMissingFileColumns)
	}

	contentCol := -1
	externalCol := -1
	for i, header := range rows[0] {
		name := strings.ToLower(strings.TrimSpace(header))
		switch {
		case name == contentColumn:
			contentCol = i
		case externalIDColumns[name]:
			externalCol = i
		}
	}
	if contentCol == -1 {
		return nil, fmt.Errorf("%w: no %q column", ErrMissingFileColumns, contentColumn)
	}

	inputs := make([]ItemInput, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if contentCol >= len(row) {
			continue
		}
		content := strings.TrimSpace(row[contentCol])
		if content == "" {
			continue
		}
		input := ItemInput{Content: content}
		if externalCol != -1 && externalCol < len(row) {
			input.ExternalID = strings.TrimSpace(row[externalCol])
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}

// parseLines treats each non-empty line as one item's content
func parseLines(content []byte) []ItemInput {
	var inputs []ItemInput
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		inputs = append(inputs, ItemInput{Content: line})
	}
	return inputs
}
