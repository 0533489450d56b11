package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/astralhq/astral-assist/internal/log"
	"github.com/astralhq/astral-assist/internal/testutil"
)

func TestChunkText(t *testing.T) {
	words := make([]string, 2000)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")

	chunks := ChunkText(text, "doc.txt", 800, 120)
	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}

	// Full-size chunks carry the configured window.
	first := strings.Fields(chunks[0].Text)
	if len(first) != 800 {
		t.Errorf("len(first chunk) = %d words, want 800", len(first))
	}
	// Step is window minus overlap: 680 + 680 = 1360, leaving 640 words.
	last := strings.Fields(chunks[2].Text)
	if len(last) != 640 {
		t.Errorf("len(last chunk) = %d words, want 640", len(last))
	}

	for i, c := range chunks {
		if c.ID == "" {
			t.Errorf("chunks[%d].ID is empty", i)
		}
		if c.Metadata["source"] != "doc.txt" {
			t.Errorf("chunks[%d] source = %q, want doc.txt", i, c.Metadata["source"])
		}
	}
}

func TestChunkText_Short(t *testing.T) {
	chunks := ChunkText("just a few words", "doc.txt", 800, 120)
	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}
	if chunks[0].Text != "just a few words" {
		t.Errorf("Text = %q", chunks[0].Text)
	}
}

func TestChunkText_Empty(t *testing.T) {
	if got := ChunkText("   ", "doc.txt", 800, 120); got != nil {
		t.Errorf("ChunkText(blank) = %v, want nil", got)
	}
}

func TestChunkText_OverlapAtLeastWindow(t *testing.T) {
	// An overlap >= the window cannot be honored; the fallback must still
	// leave a positive step for windows smaller than the default overlap.
	words := make([]string, 200)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")

	chunks := ChunkText(text, "doc.txt", 100, 100)
	if len(chunks) == 0 {
		t.Fatal("ChunkText() returned no chunks")
	}
	first := strings.Fields(chunks[0].Text)
	if len(first) != 100 {
		t.Errorf("len(first chunk) = %d words, want 100", len(first))
	}
	// Every word must be covered: the last chunk ends at the final word.
	last := strings.Fields(chunks[len(chunks)-1].Text)
	if len(last) == 0 {
		t.Error("last chunk is empty")
	}

	// Negative overlap falls back the same way.
	if got := ChunkText(text, "doc.txt", 100, -1); len(got) == 0 {
		t.Error("ChunkText() with negative overlap returned no chunks")
	}
}

func TestChunkText_DeterministicIDs(t *testing.T) {
	a := ChunkText("same content here", "doc.txt", 800, 120)
	b := ChunkText("same content here", "doc.txt", 800, 120)
	if a[0].ID != b[0].ID {
		t.Errorf("IDs differ for identical content: %q vs %q", a[0].ID, b[0].ID)
	}

	c := ChunkText("same content here", "other.txt", 800, 120)
	if a[0].ID == c[0].ID {
		t.Error("IDs collide across different sources")
	}
}

func TestMaskPII(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "email keeps domain",
			in:   "contact jane.doe@example.com for details",
			want: "contact ***@example.com for details",
		},
		{
			name: "phone with separators",
			in:   "call +1 (555) 123-4567 today",
			want: "call ***-REDACTED-PHONE*** today",
		},
		{
			name: "long digit run keeps last four",
			in:   "account 123456789012",
			want: "account ***9012",
		},
		{
			name: "short numbers untouched",
			in:   "room 4021 on floor 3",
			want: "room 4021 on floor 3",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MaskPII(tc.in); got != tc.want {
				t.Errorf("MaskPII(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestChunksFromCSV(t *testing.T) {
	csvData := `employee_id,first_name,last_name,email,department,bank_account
3,Jane,Doe,jane.doe@example.com,Engineering,123456789012
4,John,Smith,john.smith@example.com,HR,987654321098
`
	chunks, err := ChunksFromCSV(strings.NewReader(csvData), "employees.csv")
	if err != nil {
		t.Fatalf("ChunksFromCSV() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}

	first := chunks[0]
	// Identity fields are lifted into metadata unmasked.
	if first.Metadata["first_name"] != "Jane" || first.Metadata["last_name"] != "Doe" {
		t.Errorf("metadata = %v, want lifted name fields", first.Metadata)
	}
	if first.Metadata["email"] != "jane.doe@example.com" {
		t.Errorf("metadata email = %q, want unmasked", first.Metadata["email"])
	}
	if first.Metadata["employee_id"] != "3" {
		t.Errorf("metadata employee_id = %q, want 3", first.Metadata["employee_id"])
	}

	// The embedded text is masked.
	if strings.Contains(first.Text, "jane.doe@example.com") {
		t.Errorf("Text = %q, contains unmasked email", first.Text)
	}
	if !strings.Contains(first.Text, "***@example.com") {
		t.Errorf("Text = %q, want masked email", first.Text)
	}
	if strings.Contains(first.Text, "123456789012") {
		t.Errorf("Text = %q, contains unmasked account number", first.Text)
	}
	if !strings.Contains(first.Text, "first_name: Jane") {
		t.Errorf("Text = %q, want header: value rows", first.Text)
	}
}

func TestIngest_Batches(t *testing.T) {
	embedder := &testutil.Embedder{}
	index := &testutil.Index{}
	ing := NewIngestor(embedder, index, "main", log.NewNop())
	ing.batchSize = 10

	chunks := make([]Chunk, 25)
	for i := range chunks {
		chunks[i] = Chunk{ID: string(rune('a' + i)), Text: "text"}
	}

	written, err := ing.Ingest(context.Background(), chunks)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if written != 25 {
		t.Errorf("written = %d, want 25", written)
	}
	if len(index.Upserted) != 25 {
		t.Errorf("upserted = %d items, want 25", len(index.Upserted))
	}
	if embedder.Calls() != 25 {
		t.Errorf("embedder called %d times, want 25", embedder.Calls())
	}
	for _, item := range index.Upserted {
		if item.Namespace != "main" {
			t.Errorf("Namespace = %q, want main", item.Namespace)
		}
	}
}

func TestIngest_StopsOnError(t *testing.T) {
	embedder := &testutil.Embedder{}
	index := &testutil.Index{UpsertErr: context.DeadlineExceeded}
	ing := NewIngestor(embedder, index, "main", log.NewNop())

	chunks := []Chunk{{ID: "a", Text: "text"}}
	written, err := ing.Ingest(context.Background(), chunks)
	if err == nil {
		t.Fatal("Ingest() error = nil, want upsert failure")
	}
	if written != 0 {
		t.Errorf("written = %d, want 0", written)
	}
}
