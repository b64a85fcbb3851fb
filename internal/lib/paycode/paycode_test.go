package paycode

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerate(t *testing.T) {
	code, err := New().Generate()
	require.NoError(t, err)

	assert.True(t, Valid(code), code)
	assert.Len(t, code, len(Prefix)+6)
}

func TestGenerate_Deterministic(t *testing.T) {
	g := NewWithReader(bytes.NewReader([]byte{0x3f, 0xa0, 0x9c}))

	code, err := g.Generate()
	require.NoError(t, err)
	assert.Equal(t, "REDCAJ-3FA09C", code)
}

func TestGenerate_ReaderError(t *testing.T) {
	_, err := NewWithReader(failingReader{}).Generate()
	assert.Error(t, err)
}

func TestNormalizeAndValid(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		valid bool
	}{
		{in: " redcaj-3fa09c ", want: "REDCAJ-3FA09C", valid: true},
		{in: "REDCAJ-ZZZZZZ", want: "REDCAJ-ZZZZZZ", valid: false},
		{in: "3FA09C", want: "3FA09C", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Normalize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.valid, Valid(got))
		})
	}
}
