package feed

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/festtally/festtally/pkg/types"
)

// Table is one parsed load of the feed.
type Table struct {
	// IdentityColumn is the header of column 0 (conventionally "ORGANIZATION").
	IdentityColumn string `json:"identity_column"`

	// ScoreColumn is the header of column 1, read from the feed rather than
	// assumed. Downstream stages label the value axis with it.
	ScoreColumn string `json:"score_column"`

	// ExtraColumns lists headers beyond the first two; their values are ignored.
	ExtraColumns []string `json:"extra_columns,omitempty"`

	// Standings holds one entry per data row, in feed order.
	Standings []types.Standing `json:"standings"`
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads CSV with a header row into a Table. Column 0 becomes the
// organization and column 1 the score, regardless of header text. Every row
// must have the header's column count and a finite numeric score.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Line: 1, Reason: "missing header row"}
	}
	if err != nil {
		return nil, csvError(err)
	}
	if len(header) < 2 {
		return nil, &ParseError{Line: 1, Reason: "need at least 2 columns (organization, score), got " + strconv.Itoa(len(header))}
	}
	header[0] = strings.TrimPrefix(header[0], string(utf8BOM))

	t := &Table{
		IdentityColumn: strings.TrimSpace(header[0]),
		ScoreColumn:    strings.TrimSpace(header[1]),
		Standings:      []types.Standing{},
	}
	for _, h := range header[2:] {
		t.ExtraColumns = append(t.ExtraColumns, strings.TrimSpace(h))
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		line, _ := cr.FieldPos(0)

		scoreText := strings.TrimSpace(rec[1])
		if scoreText == "" {
			return nil, &ParseError{Line: line, Reason: "empty score for " + strconv.Quote(rec[0])}
		}
		score, err := strconv.ParseFloat(scoreText, 64)
		if err != nil {
			return nil, &ParseError{Line: line, Reason: "score " + strconv.Quote(scoreText) + " is not numeric", Err: err}
		}
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return nil, &ParseError{Line: line, Reason: "score " + strconv.Quote(scoreText) + " is not finite"}
		}

		t.Standings = append(t.Standings, types.Standing{
			Organization: strings.TrimSpace(rec[0]),
			Score:        score,
			ScoreText:    scoreText,
		})
	}
	return t, nil
}

// csvError converts an encoding/csv failure into a ParseError, keeping the
// line number the reader reported.
func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Reason: "malformed csv", Err: pe.Err}
	}
	return &ParseError{Reason: "read csv", Err: err}
}

// Loader fetches and parses the feed.
type Loader struct {
	fetcher Fetcher
}

// NewLoader returns a Loader reading from f.
func NewLoader(f Fetcher) *Loader {
	return &Loader{fetcher: f}
}

// Load performs one fetch and parses the result. It makes exactly one call to
// the Fetcher; any retrying happens inside the Fetcher.
func (l *Loader) Load(ctx context.Context) (*Table, error) {
	body, err := l.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(body))
}
