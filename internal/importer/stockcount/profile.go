package stockcount

// Mode says how a row's value is applied to its reserve.
type Mode string

const (
	// ModeCount rows carry the physically counted balance.
	ModeCount Mode = "count"
	// ModeDelta rows carry a signed correction.
	ModeDelta Mode = "delta"
)

// Profile describes the column layout of a stock sheet. Header names are
// compared case-insensitively.
type Profile struct {
	Mode     Mode
	LabelCol string
	ValueCol string
	NoteCol  string
}

func (p Profile) requiredCols() []string {
	return []string{p.LabelCol, p.ValueCol}
}

// profiles are tried in order; count sheets are the common case.
var profiles = []Profile{
	{Mode: ModeCount, LabelCol: "reserve", ValueCol: "quantity", NoteCol: "note"},
	{Mode: ModeDelta, LabelCol: "reserve", ValueCol: "delta", NoteCol: "note"},
}

var separators = []rune{';', ',', '\t'}
