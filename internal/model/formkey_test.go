package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    FormKey
		wantErr bool
	}{
		{"tamriel", "00003C:Skyrim.esm", FormKey{ID: 0x3C, Mod: "Skyrim.esm"}, false},
		{"short id", "800:Patch.esp", FormKey{ID: 0x800, Mod: "Patch.esp"}, false},
		{"lowercase hex", "00abcd:Patch.esp", FormKey{ID: 0xABCD, Mod: "Patch.esp"}, false},
		{"surrounding spaces", " 000001:A.esm ", FormKey{ID: 1, Mod: "A.esm"}, false},
		{"missing mod", "00003C:", FormKey{}, true},
		{"missing colon", "00003C", FormKey{}, true},
		{"not hex", "ZZZZZZ:A.esm", FormKey{}, true},
		{"too wide", "1000000:A.esm", FormKey{}, true},
		{"empty", "", FormKey{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormKey(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidFormKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormKeyString(t *testing.T) {
	k := NewFormKey(0x3C, "Skyrim.esm")
	assert.Equal(t, "00003C:Skyrim.esm", k.String())

	back, err := ParseFormKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, back)

	assert.Equal(t, uint32(0x345678), NewFormKey(0x12345678, "A.esp").ID, "ID masked to 24 bits")
	assert.True(t, NullFormKey.IsNull())
	assert.False(t, k.IsNull())
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#2A7F3B")
	require.NoError(t, err)
	assert.Equal(t, Color{R: 0x2A, G: 0x7F, B: 0x3B}, c)
	assert.Equal(t, "#2A7F3B", c.Hex())

	c, err = ParseColor("ff0000")
	require.NoError(t, err)
	assert.Equal(t, Color{R: 255}, c)

	_, err = ParseColor("#12345")
	assert.Error(t, err)
	_, err = ParseColor("#GG0000")
	assert.Error(t, err)
}
