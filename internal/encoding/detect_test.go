package encoding_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/MrJamesThe3rd/karat/internal/encoding"
)

func TestNewUTF8Reader(t *testing.T) {
	const sheet = "reserve;quantity;note\nLocal Gold;125,500;Café counter\n"

	utf16le, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(sheet))
	require.NoError(t, err)

	cp1252, err := charmap.Windows1252.NewEncoder().Bytes([]byte(sheet))
	require.NoError(t, err)

	type testCase struct {
		name        string
		input       []byte
		wantCharset string
	}

	tests := []testCase{
		{
			name:        "plain UTF-8 passes through",
			input:       []byte(sheet),
			wantCharset: encoding.UTF8,
		},
		{
			name:        "UTF-8 BOM is stripped",
			input:       append([]byte{0xEF, 0xBB, 0xBF}, sheet...),
			wantCharset: encoding.UTF8,
		},
		{
			name:        "UTF-16 little endian with BOM",
			input:       utf16le,
			wantCharset: encoding.UTF16LE,
		},
		{
			name:        "Windows-1252 spreadsheet export",
			input:       cp1252,
			wantCharset: encoding.Windows1252,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, charset, err := encoding.NewUTF8Reader(bytes.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.wantCharset, charset)

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, sheet, string(got))
		})
	}
}

func TestNewUTF8Reader_Empty(t *testing.T) {
	r, charset, err := encoding.NewUTF8Reader(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, encoding.UTF8, charset)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, got)
}
