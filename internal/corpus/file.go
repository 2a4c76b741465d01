package corpus

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oscara1796/vecsearch/internal/indexer/index"
	apperrors "github.com/oscara1796/vecsearch/pkg/errors"
)

const maxLineSize = 16 << 20

type record struct {
	ID   any    `yaml:"id" json:"id"`
	Text string `yaml:"text" json:"text"`
}

// FileSource reads a corpus file on every Load. ".yaml" and ".yml" files
// hold a list of {id, text} mappings; ".jsonl" files hold one {"id", "text"}
// object per line.
type FileSource struct {
	path   string
	format string
}

func NewFileSource(path string) (*FileSource, error) {
	if path == "" {
		return nil, apperrors.InvalidInputf("corpus file path is empty")
	}
	format := strings.ToLower(filepath.Ext(path))
	switch format {
	case ".yaml", ".yml", ".jsonl":
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, format)
	}
	return &FileSource{path: path, format: format}, nil
}

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) Path() string { return s.path }

func (s *FileSource) Load(ctx context.Context) ([]index.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus file: %w", err)
	}
	if s.format == ".jsonl" {
		return decodeJSONLines(data)
	}
	return decodeYAML(data)
}

func decodeYAML(data []byte) ([]index.Document, error) {
	var records []record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, apperrors.InvalidInputf("parsing yaml corpus: %v", err)
	}
	docs := make([]index.Document, 0, len(records))
	for i, r := range records {
		id, err := documentID(r.ID, i)
		if err != nil {
			return nil, err
		}
		docs = append(docs, index.Document{ID: id, Text: r.Text})
	}
	return docs, nil
}

// decodeJSONLines reads one record per line. A record without an id takes
// its zero-based line number, so blank lines keep later ids stable.
func decodeJSONLines(data []byte) ([]index.Document, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var docs []index.Document
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var r record
		if err := dec.Decode(&r); err != nil {
			return nil, apperrors.InvalidInputf("line %d: %v", line, err)
		}
		id, err := documentID(r.ID, line-1)
		if err != nil {
			return nil, err
		}
		docs = append(docs, index.Document{ID: id, Text: r.Text})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning corpus file: %w", err)
	}
	return docs, nil
}
