package cryptoutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsHexString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"empty", "", true},
		{"lowercase hex", "deadbeef", true},
		{"uppercase hex", "DEADBEEF", true},
		{"contains g", "0123abcg", false},
		{"space", "ab cd", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHexString(tt.in))
		})
	}
}

func TestResolveKey(t *testing.T) {
	hexKey := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

	tests := []struct {
		name    string
		key     string
		wantErr bool
		want    int
	}{
		{"hex key", hexKey, false, KeySize},
		{"raw key", "12345678901234567890123456789012", false, KeySize},
		{"too short", "short", true, 0},
		{"64 non-hex chars", "zz" + hexKey[2:], true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	arr, err := ResolveKeyArray(hexKey)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), arr[0])
}
