package urlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"fragment stripped", "https://docs.example.com/guide#install", "https://docs.example.com/guide"},
		{"trailing slash stripped", "https://docs.example.com/guide/", "https://docs.example.com/guide"},
		{"root slash stripped", "https://docs.example.com/", "https://docs.example.com"},
		{"tracking removed", "https://docs.example.com/a?utm_source=x&page=2", "https://docs.example.com/a?page=2"},
		{"tracking only query dropped", "https://docs.example.com/a?utm_campaign=x", "https://docs.example.com/a"},
		{"param order preserved", "https://docs.example.com/a?b=1&utm_medium=m&a=2", "https://docs.example.com/a?b=1&a=2"},
		{"host lowercased", "https://Docs.Example.COM/A", "https://docs.example.com/A"},
		{"unparseable returned unchanged", "https://docs.example.com/%zz{", "https://docs.example.com/%zz{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in, true))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"https://docs.example.com/guide/#top",
		"https://docs.example.com/a?utm_source=x&b=1&a=2",
		"https://docs.example.com",
	}
	for _, in := range inputs {
		once := Normalize(in, true)
		assert.Equal(t, once, Normalize(once, true), in)
	}
}

func TestNormalizeKeepsTrackingWhenDisabled(t *testing.T) {
	got := Normalize("https://docs.example.com/a?utm_source=x&b=1", false)
	assert.Equal(t, "https://docs.example.com/a?utm_source=x&b=1", got)
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "docs.example.com", Domain("https://www.docs.example.com/a"))
	assert.Equal(t, "docs.example.com", Domain("https://DOCS.example.com"))
	assert.Equal(t, "127.0.0.1", Domain("http://127.0.0.1:8080/a"))
	assert.Empty(t, Domain("not a url at all\x7f"))
}

func TestIsSubdomain(t *testing.T) {
	assert.True(t, IsSubdomain("api.docs.example.com", "docs.example.com"))
	assert.False(t, IsSubdomain("docs.example.com", "docs.example.com"))
	assert.False(t, IsSubdomain("evildocs.example.com", "docs.example.com"))
	assert.False(t, IsSubdomain("docs.example.com.attacker.io", "docs.example.com"))
	assert.False(t, IsSubdomain("", "docs.example.com"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "api_v2_users", SanitizeFilename("api/v2/users"))
	assert.Equal(t, "a_b", SanitizeFilename("a  ?? b"))
	assert.Equal(t, "guide-1.2", SanitizeFilename("guide-1.2"))
	assert.Empty(t, SanitizeFilename("///"))
}

func TestFileStemForURL(t *testing.T) {
	assert.Equal(t, "index", FileStemForURL("https://docs.example.com/"))
	assert.Equal(t, "index", FileStemForURL("https://docs.example.com"))
	assert.Equal(t, "api_v2_users", FileStemForURL("https://docs.example.com/api/v2/users"))
}

func TestFileStemForURLLongPathsStayDistinct(t *testing.T) {
	prefix := strings.Repeat("a", 150)
	one := FileStemForURL("https://docs.example.com/" + prefix + "/one")
	two := FileStemForURL("https://docs.example.com/" + prefix + "/two")

	require.NotEqual(t, one, two)
	assert.LessOrEqual(t, len(one), 120)
	assert.LessOrEqual(t, len(two), 120)
}

func TestDedupe(t *testing.T) {
	got := Dedupe([]string{
		"https://docs.example.com/a",
		"https://docs.example.com/a/",
		"https://docs.example.com/a#frag",
		"https://docs.example.com/b",
	})
	assert.Equal(t, []string{"https://docs.example.com/a", "https://docs.example.com/b"}, got)
}
