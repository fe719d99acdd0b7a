package sources

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"mongocsvexport/internal/etl"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ── Document Stream ────────────────────────────────────────
// Decodes Extended JSON documents from a reader, one at a time. The input is
// either a JSON array of documents or a sequence of concatenated documents
// (mongoexport's newline-delimited output).

type docCursor struct {
	r      io.ReadCloser
	dec    *json.Decoder
	inList bool
	n      int

	rec *etl.Map
	err error
}

func newDocCursor(r io.ReadCloser) (*docCursor, error) {
	br := bufio.NewReader(r)
	c := &docCursor{r: r}

	first, err := peekNonSpace(br)
	if err != nil && !errors.Is(err, io.EOF) {
		r.Close()
		return nil, fmt.Errorf("read input: %w", err)
	}
	c.dec = json.NewDecoder(br)
	if first == '[' {
		if _, err := c.dec.Token(); err != nil {
			r.Close()
			return nil, fmt.Errorf("parse json: %w", err)
		}
		c.inList = true
	}
	return c, nil
}

// peekNonSpace skips whitespace and a UTF-8 byte order mark and returns the
// next byte without consuming it.
func peekNonSpace(br *bufio.Reader) (byte, error) {
	if bom, err := br.Peek(3); err == nil && string(bom) == "\xef\xbb\xbf" {
		br.Discard(3)
	}
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			br.Discard(1)
		default:
			return b[0], nil
		}
	}
}

func (c *docCursor) Next(ctx context.Context) bool {
	if c.err != nil || ctx.Err() != nil {
		return false
	}
	if c.inList && !c.dec.More() {
		return false
	}

	var raw json.RawMessage
	if err := c.dec.Decode(&raw); err != nil {
		if !errors.Is(err, io.EOF) || c.inList {
			c.err = fmt.Errorf("parse json: %w", err)
		}
		return false
	}
	c.n++

	var doc bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		c.err = fmt.Errorf("document %d: %w", c.n, err)
		return false
	}
	c.rec = etl.MapFromBSON(doc)
	return true
}

func (c *docCursor) Record() *etl.Map { return c.rec }
func (c *docCursor) Err() error       { return c.err }

func (c *docCursor) Close(context.Context) error { return c.r.Close() }

// extractDocuments parses the whole input and returns the documents found
// in the array at the dot-separated dataPath.
func extractDocuments(r io.Reader, dataPath string) ([]*etl.Map, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	var root bson.D
	if err := bson.UnmarshalExtJSON(data, false, &root); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	current := etl.MapValue(etl.MapFromBSON(root))
	for _, part := range strings.Split(dataPath, etl.PathSeparator) {
		m := current.Map()
		if current.Kind() != etl.KindMap || m == nil {
			return nil, fmt.Errorf("invalid data path: %q is not an object", part)
		}
		v, ok := m.Get(part)
		if !ok {
			return nil, fmt.Errorf("invalid data path: %q not found", part)
		}
		current = v
	}

	switch current.Kind() {
	case etl.KindMap:
		return []*etl.Map{current.Map()}, nil
	case etl.KindSequence:
		var docs []*etl.Map
		for i, item := range current.Items() {
			if item.Kind() != etl.KindMap {
				return nil, fmt.Errorf("data path %q: element %d is not an object", dataPath, i)
			}
			docs = append(docs, item.Map())
		}
		return docs, nil
	default:
		return nil, fmt.Errorf("data path %q does not hold documents", dataPath)
	}
}

// openDocuments returns a cursor over r, streaming unless a dataPath must be
// resolved first. It takes ownership of r.
func openDocuments(r io.ReadCloser, dataPath string) (etl.Cursor, error) {
	if dataPath == "" {
		return newDocCursor(r)
	}
	defer r.Close()
	docs, err := extractDocuments(r, dataPath)
	if err != nil {
		return nil, err
	}
	return etl.NewSliceCursor(docs...), nil
}
