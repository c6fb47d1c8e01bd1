package stockcount

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	enc "github.com/MrJamesThe3rd/karat/internal/encoding"
)

var ErrNoHeader = errors.New("no stock sheet header found: expected reserve and quantity or delta columns")

// Row is one line of a stock sheet. Line is 1-based in the original file.
type Row struct {
	Line  int
	Label string
	Mode  Mode
	Value decimal.Decimal
	Note  string
}

// Parser reads stock sheets exported from the counter spreadsheet. It detects
// the encoding, the separator and the layout from the header row.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(r io.Reader) ([]Row, error) {
	utf8r, charset, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	content, err := io.ReadAll(utf8r)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}

	if len(bytes.TrimSpace(content)) == 0 {
		return nil, nil
	}

	for _, sep := range separators {
		rows, err := readAll(content, sep)
		if err != nil {
			continue
		}

		profile, cols, headerIdx := detectProfile(rows)
		if profile == nil {
			continue
		}

		slog.Debug("parsed stock sheet header",
			"charset", charset, "separator", string(sep), "mode", profile.Mode)

		return parseRows(profile, cols, rows[headerIdx+1:], headerIdx+1)
	}

	return nil, ErrNoHeader
}

func readAll(content []byte, sep rune) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = sep
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	return reader.ReadAll()
}

type colIndex map[string]int

func detectProfile(rows [][]string) (*Profile, colIndex, int) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row {
			name := strings.ToLower(strings.TrimSpace(cell))
			if name != "" {
				cols[name] = i
			}
		}

		for i := range profiles {
			if matchesProfile(&profiles[i], cols) {
				return &profiles[i], cols, rowIdx
			}
		}
	}

	return nil, nil, 0
}

func matchesProfile(p *Profile, cols colIndex) bool {
	for _, name := range p.requiredCols() {
		if _, ok := cols[name]; !ok {
			return false
		}
	}

	return true
}

func parseRows(p *Profile, cols colIndex, rows [][]string, headerRowNum int) ([]Row, error) {
	labelIdx := cols[p.LabelCol]
	valueIdx := cols[p.ValueCol]

	noteIdx, hasNote := cols[p.NoteCol]
	if !hasNote {
		noteIdx = -1
	}

	var out []Row

	for i, row := range rows {
		line := headerRowNum + i + 1

		label := cellValue(row, labelIdx)
		raw := cellValue(row, valueIdx)

		if label == "" && raw == "" {
			continue
		}

		if label == "" {
			return nil, fmt.Errorf("row %d: missing reserve", line)
		}

		value, err := ParseQuantity(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		if p.Mode == ModeCount && value.IsNegative() {
			return nil, fmt.Errorf("row %d: counted quantity %s is negative", line, value)
		}

		out = append(out, Row{
			Line:  line,
			Label: label,
			Mode:  p.Mode,
			Value: value,
			Note:  cellValue(row, noteIdx),
		})
	}

	return out, nil
}

// ParseQuantity reads plain ("1234.5"), grouped ("1,234.5") and European
// ("1.234,567", "12,5") numbers. Whichever of comma or dot comes last is the
// decimal mark.
func ParseQuantity(s string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if clean == "" {
		return decimal.Zero, fmt.Errorf("missing quantity")
	}

	lastComma := strings.LastIndex(clean, ",")
	lastDot := strings.LastIndex(clean, ".")

	switch {
	case lastComma > lastDot:
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.Replace(clean, ",", ".", 1)
	case lastComma >= 0:
		clean = strings.ReplaceAll(clean, ",", "")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid quantity %q", s)
	}

	return d, nil
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
