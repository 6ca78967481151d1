package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1MiB", 1 << 20},
		{"4MiB", 4 << 20},
		{"8MiB", 8 << 20},
		{"512KiB", 512 << 10},
		{"1GiB", 1 << 30},
		{"100", 100},
		{"1KB", 1024},
	}

	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "ParseSize(%q)", tt.in)
	}
}

func TestParseSizeErrors(t *testing.T) {
	_, err := ParseSize("")
	assert.Error(t, err)

	_, err = ParseSize("-1MiB")
	assert.Error(t, err)

	_, err = ParseSize("notasize")
	assert.Error(t, err)
}
