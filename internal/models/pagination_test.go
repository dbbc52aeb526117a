package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name     string
		page     int
		size     int
		wantPage int
		wantSize int
	}{
		{"zero values fall back to defaults", 0, 0, 1, DefaultPageSize},
		{"negative page becomes first", -3, 10, 1, 10},
		{"size above cap falls back to default", 1, MaxPageSize + 1, 1, DefaultPageSize},
		{"size at cap is kept", 2, MaxPageSize, 2, MaxPageSize},
		{"valid values pass through", 4, 25, 4, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, size := NormalizePage(tt.page, tt.size)
			require.Equal(t, tt.wantPage, page)
			require.Equal(t, tt.wantSize, size)
		})
	}
}
