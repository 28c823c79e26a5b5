// Package resource reads workload data files: whole documents, line and word
// lists, CSV tables and JSON documents.
package resource

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/torosent/crankdb/internal/value"
)

// ReadToString returns the whole file.
func ReadToString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// ReadLines returns the non-empty lines of a file with surrounding
// whitespace removed.
func ReadLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

// ReadWords splits a file into words. Anything that is not a letter, digit,
// apostrophe or hyphen separates words.
func ReadWords(path string) ([]string, error) {
	text, err := ReadToString(path)
	if err != nil {
		return nil, err
	}
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '-'
	}), nil
}

// ReadCSV reads a CSV table whose first row names the columns. Each data row
// becomes a map from column name to string.
func ReadCSV(path string) ([]value.Value, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV file must have at least one header row and one data row")
	}

	header := rows[0]
	records := make([]value.Value, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", i+2, len(row), len(header))
		}
		record := make(map[string]value.Value, len(header))
		for j, field := range header {
			record[field] = value.String(row[j])
		}
		records = append(records, value.Map(record))
	}
	return records, nil
}

// ReadJSON parses a JSON document into a value tree.
func ReadJSON(path string) (value.Value, error) {
	text, err := ReadToString(path)
	if err != nil {
		return value.Null, err
	}
	v, err := value.FromJSON(text)
	if err != nil {
		return value.Null, fmt.Errorf("decode %s: %w", path, err)
	}
	return v, nil
}

// Loaders maps the loader names accepted in workload plans to functions
// producing a value.
var Loaders = map[string]func(path string) (value.Value, error){
	"read_to_string": func(path string) (value.Value, error) {
		s, err := ReadToString(path)
		return value.String(s), err
	},
	"read_lines": func(path string) (value.Value, error) {
		lines, err := ReadLines(path)
		return value.FromGo(lines), err
	},
	"read_words": func(path string) (value.Value, error) {
		words, err := ReadWords(path)
		return value.FromGo(words), err
	},
	"read_csv": func(path string) (value.Value, error) {
		records, err := ReadCSV(path)
		return value.List(records...), err
	},
	"read_json": ReadJSON,
}

// Load runs the loader called name.
func Load(name, path string) (value.Value, error) {
	loader, ok := Loaders[name]
	if !ok {
		return value.Null, fmt.Errorf("unknown resource loader %q", name)
	}
	return loader(path)
}
