package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://Example.COM/Path/", "https://example.com/Path"},
		{"HTTPS://example.com/a#section", "https://example.com/a"},
		{"https://example.com/", "https://example.com"},
		{"https://example.com/a?q=1", "https://example.com/a?q=1"},
		{"  https://example.com/a  ", "https://example.com/a"},
		{"not a url/", "not a url"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "golang.org", Domain("https://www.GoLang.org/doc"))
	assert.Equal(t, "en.wikipedia.org", Domain("https://en.wikipedia.org/wiki/Go"))
	assert.Equal(t, "", Domain("::bad"))
}
