// Package parser converts uploaded byte streams into a normalized sequence
// of raw records. Supported formats: CSV (delimiter auto-detected), JSON
// (array or single object), line-delimited plain text, and a minimal XML
// indicator extraction. Row-level problems surface as warnings, not errors;
// only a stream that cannot be interpreted at all is fatal.
package parser

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hive-corporation/harrier/internal/core/domain"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatText Format = "txt"
	FormatXML  Format = "xml"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")
var ErrEmptyInput = errors.New("input is empty")

// DetectFormat infers the format from the filename extension, falling back
// to sniffing the payload when the extension is unknown.
func DetectFormat(filename string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	case ".xml":
		return FormatXML
	case ".txt", ".log":
		return FormatText
	}

	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return FormatText
	case trimmed[0] == '{' || trimmed[0] == '[':
		return FormatJSON
	case trimmed[0] == '<':
		return FormatXML
	case bytes.ContainsAny(bytes.SplitN(trimmed, []byte("\n"), 2)[0], ",;|\t"):
		return FormatCSV
	default:
		return FormatText
	}
}

// Parse converts data into raw records. The returned warnings describe rows
// that were dropped; they do not abort parsing.
func Parse(data []byte, format Format) ([]domain.RawRecord, []string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, ErrEmptyInput
	}
	switch format {
	case FormatCSV:
		return parseCSV(data)
	case FormatJSON:
		return parseJSON(data)
	case FormatText:
		return parseText(data)
	case FormatXML:
		return parseXML(data)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// detectDelimiter picks the delimiter with the highest occurrence in the
// header line, ignoring characters inside quoted fields.
func detectDelimiter(header string) rune {
	counts := map[rune]int{',': 0, ';': 0, '\t': 0, '|': 0}
	inQuotes := false
	for _, c := range header {
		if c == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		if _, ok := counts[c]; ok {
			counts[c]++
		}
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

func parseCSV(data []byte) ([]domain.RawRecord, []string, error) {
	firstLine, _, _ := strings.Cut(string(data), "\n")
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(firstLine)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}
	valueCol := -1
	for i, h := range header {
		if h == "value" || h == "indicator" || h == "ioc" {
			valueCol = i
			break
		}
	}

	var records []domain.RawRecord
	var warnings []string
	row := 1
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d: %v", row, err))
			continue
		}
		rec := domain.RawRecord{
			Index:  len(records),
			Fields: make(map[string]string, len(fields)),
		}
		for i, f := range fields {
			if i < len(header) && header[i] != "" {
				rec.Fields[header[i]] = strings.TrimSpace(f)
			}
		}
		switch {
		case valueCol >= 0 && valueCol < len(fields):
			rec.Value = strings.TrimSpace(fields[valueCol])
		case len(fields) > 0:
			// No recognizable value column: seed from the first field.
			rec.Value = strings.TrimSpace(fields[0])
		}
		if rec.Value == "" {
			warnings = append(warnings, fmt.Sprintf("row %d: empty value", row))
			continue
		}
		records = append(records, rec)
	}
	return records, warnings, nil
}

func parseJSON(data []byte) ([]domain.RawRecord, []string, error) {
	trimmed := bytes.TrimSpace(data)

	// Array of strings or objects.
	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, nil, fmt.Errorf("failed to parse json array: %w", err)
		}
		var records []domain.RawRecord
		var warnings []string
		for i, item := range items {
			rec, err := jsonRecord(item)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("element %d: %v", i, err))
				continue
			}
			rec.Index = len(records)
			records = append(records, rec)
		}
		return records, warnings, nil
	}

	// Single object.
	rec, err := jsonRecord(trimmed)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse json object: %w", err)
	}
	return []domain.RawRecord{rec}, nil, nil
}

func jsonRecord(raw json.RawMessage) (domain.RawRecord, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return domain.RawRecord{}, errors.New("empty value")
		}
		return domain.RawRecord{Value: strings.TrimSpace(s)}, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return domain.RawRecord{}, errors.New("neither string nor object")
	}
	rec := domain.RawRecord{Fields: make(map[string]string, len(obj))}
	for k, v := range obj {
		switch val := v.(type) {
		case string:
			rec.Fields[strings.ToLower(k)] = val
		case float64, bool:
			rec.Fields[strings.ToLower(k)] = fmt.Sprint(val)
		}
	}
	for _, key := range []string{"value", "indicator", "ioc"} {
		if v := rec.Fields[key]; v != "" {
			rec.Value = strings.TrimSpace(v)
			break
		}
	}
	if rec.Value == "" {
		return domain.RawRecord{}, errors.New("object has no value field")
	}
	return rec, nil
}

func parseText(data []byte) ([]domain.RawRecord, []string, error) {
	var records []domain.RawRecord
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		records = append(records, domain.RawRecord{
			Index: len(records),
			Value: line,
		})
	}
	return records, nil, nil
}

// xmlIndicator covers the minimal indicator-tag shape accepted for XML
// uploads. Anything fancier belongs in a dedicated feed adapter.
type xmlIndicator struct {
	Value   string `xml:",chardata"`
	Type    string `xml:"type,attr"`
	Context string `xml:"context,attr"`
}

type xmlDocument struct {
	Indicators []xmlIndicator `xml:"indicator"`
}

func parseXML(data []byte) ([]domain.RawRecord, []string, error) {
	var doc xmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse xml: %w", err)
	}
	var records []domain.RawRecord
	var warnings []string
	for i, ind := range doc.Indicators {
		value := strings.TrimSpace(ind.Value)
		if value == "" {
			warnings = append(warnings, fmt.Sprintf("indicator %d: empty value", i))
			continue
		}
		rec := domain.RawRecord{
			Index: len(records),
			Value: value,
		}
		if ind.Type != "" || ind.Context != "" {
			rec.Fields = map[string]string{}
			if ind.Type != "" {
				rec.Fields["type"] = ind.Type
			}
			if ind.Context != "" {
				rec.Fields["context"] = ind.Context
			}
		}
		records = append(records, rec)
	}
	return records, warnings, nil
}
