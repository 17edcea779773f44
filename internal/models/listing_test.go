package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"drops fragment and trailing slash", "https://www.marugujarat.in/gpsc-recruitment/#more", "https://marugujarat.in/gpsc-recruitment"},
		{"lowercases host and scheme", "HTTPS://WWW.MaruGujarat.IN/Post", "https://marugujarat.in/Post"},
		{"removes default port", "http://example.com:80/a", "http://example.com/a"},
		{"keeps custom port", "http://example.com:8080/a", "http://example.com:8080/a"},
		{"sorts query", "https://example.com/a?z=1&a=2", "https://example.com/a?a=2&z=1"},
		{"relative is rejected", "/gpsc-recruitment", ""},
		{"non http is rejected", "mailto:jobs@example.com", ""},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "gpsc class 1 recruitment", NormalizeText("  GPSC   Class\t1 RECRUITMENT "))
	//fullwidth letters fold through NFKC
	assert.Equal(t, "gpsc", NormalizeText("ＧＰＳＣ"))
	//gujarati vowel signs survive
	assert.Equal(t, "ભરતી", NormalizeText("ભરતી"))
}

func TestListingIdentity(t *testing.T) {
	t.Run("url wins over title", func(t *testing.T) {
		a := Listing{Title: "GPSC Recruitment 2025", URL: "https://www.marugujarat.in/gpsc-2025/"}
		b := Listing{Title: "GPSC Recruitment 2025 (updated)", URL: "https://marugujarat.in/gpsc-2025"}

		ida, err := a.Identity()
		require.NoError(t, err)
		idb, err := b.Identity()
		require.NoError(t, err)
		assert.Equal(t, ida, idb)
	})

	t.Run("title fallback", func(t *testing.T) {
		id, err := Listing{Title: "  Talati  Bharti "}.Identity()
		require.NoError(t, err)
		assert.Equal(t, "title:talati bharti", id)
	})

	t.Run("no identity", func(t *testing.T) {
		_, err := Listing{URL: "javascript:void(0)"}.Identity()
		assert.ErrorIs(t, err, ErrNoIdentity)
	})
}
