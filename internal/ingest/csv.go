package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// metadataFields are lifted from CSV columns into chunk metadata so entity
// hints and session memory can use them without parsing the masked text.
var metadataFields = map[string]bool{
	"first_name":  true,
	"last_name":   true,
	"email":       true,
	"department":  true,
	"designation": true,
	"employee_id": true,
}

// ChunksFromCSV turns each CSV row into one chunk: a "header: value" line
// per column joined with " | ", PII-masked. Identity columns are duplicated
// into metadata unmasked. The first row is the header.
func ChunksFromCSV(r io.Reader, source string) ([]Chunk, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var chunks []Chunk
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row %d: %w", row+1, err)
		}
		row++

		parts := make([]string, 0, len(record))
		metadata := map[string]string{
			"source": source,
			"row":    fmt.Sprintf("%d", row),
		}
		for i, value := range record {
			if i >= len(header) {
				break
			}
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			key := header[i]
			if metadataFields[strings.ToLower(key)] {
				metadata[strings.ToLower(key)] = value
			}
			parts = append(parts, key+": "+value)
		}
		if len(parts) == 0 {
			continue
		}

		text := MaskPII(strings.Join(parts, " | "))
		chunks = append(chunks, Chunk{
			ID:       contentID(source, text),
			Text:     text,
			Metadata: metadata,
		})
	}
	return chunks, nil
}
