package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hedgescan/hedgescan/internal/domain"
)

// Archiver implements domain.SnapshotArchiver by serializing the raw quote
// batch of an evaluation cycle to JSONL and uploading it to S3, partitioned
// by year-month:
//
//	raw/quotes/2026-08/<evaluationID>.jsonl
//
// Replay mode reads these files back through Loader and re-runs the engine
// against the captured books.
type Archiver struct {
	writer domain.BlobWriter
}

// NewArchiver creates a new Archiver on top of the given blob writer.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{writer: writer}
}

var _ domain.SnapshotArchiver = (*Archiver)(nil)

// ArchiveQuotes uploads the quote batch as one JSONL object keyed by the
// evaluation ID and returns the object path. Empty batches are skipped and
// return an empty path with no error.
func (a *Archiver) ArchiveQuotes(ctx context.Context, evalID string, quotes []domain.OutcomeQuote) (string, error) {
	if len(quotes) == 0 {
		return "", nil
	}

	buf, err := marshalJSONL(quotes)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive quotes marshal: %w", err)
	}

	path := snapshotPath(evalID, snapshotTime(quotes))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive quotes upload: %w", err)
	}

	return path, nil
}

// Loader reads archived quote snapshots back out of the bucket for replay.
type Loader struct {
	reader domain.BlobReader
}

// NewLoader creates a new Loader on top of the given blob reader.
func NewLoader(reader domain.BlobReader) *Loader {
	return &Loader{reader: reader}
}

// LoadQuotes fetches the JSONL object at path and decodes one OutcomeQuote
// per line. Blank lines are skipped; a malformed line fails the whole load
// since a partial batch would silently skew the replayed evaluation.
func (l *Loader) LoadQuotes(ctx context.Context, path string) ([]domain.OutcomeQuote, error) {
	body, err := l.reader.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load quotes %s: %w", path, err)
	}
	defer body.Close()

	var quotes []domain.OutcomeQuote

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var q domain.OutcomeQuote
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("s3blob: load quotes %s line %d: %w", path, line, err)
		}
		quotes = append(quotes, q)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("s3blob: load quotes %s: %w", path, err)
	}

	return quotes, nil
}

// ListSnapshots returns the paths of archived snapshots under the given
// year-month (format "2006-01") in the bucket's key order. An empty month
// lists the whole snapshot tree.
func (l *Loader) ListSnapshots(ctx context.Context, month string) ([]string, error) {
	prefix := "raw/quotes/"
	if month != "" {
		prefix += month + "/"
	}

	infos, err := l.reader.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("s3blob: list snapshots: %w", err)
	}

	paths := make([]string, 0, len(infos))
	for _, info := range infos {
		paths = append(paths, info.Path)
	}
	return paths, nil
}

// snapshotPath builds the S3 key for a quote snapshot, partitioned by the
// year-month of the capture time.
func snapshotPath(evalID string, at time.Time) string {
	return fmt.Sprintf("raw/quotes/%s/%s.jsonl", at.UTC().Format("2006-01"), evalID)
}

// snapshotTime picks the partition timestamp for a batch: the first quote's
// capture time, or the current time when the batch carries no timestamps.
func snapshotTime(quotes []domain.OutcomeQuote) time.Time {
	for _, q := range quotes {
		if !q.Timestamp.IsZero() {
			return q.Timestamp
		}
	}
	return time.Now()
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
