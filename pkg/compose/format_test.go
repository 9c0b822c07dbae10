package compose_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cloudops-tools/quota-notifier/pkg/compose"
)

func TestFormatMB(t *testing.T) {
	tests := []struct {
		sizeMB int
		want   string
	}{
		{0, "0M"},
		{1, "1M"},
		{500, "500M"},
		{1023, "1023M"},
		{1024, "1G"},
		{1025, "1G"},
		{2047, "1G"},
		{2048, "2G"},
		{10240, "10G"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, compose.FormatMB(tt.sizeMB), "FormatMB(%d)", tt.sizeMB)
	}
}
