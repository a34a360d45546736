package domainfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHost(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://WWW.Example.com/path":   "example.com",
		"http://blog.example.com:8080/x": "blog.example.com",
		"example.com":                    "example.com",
		"www.example.com.":               "example.com",
		"":                               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeHost(in), in)
	}
}

func TestRegistrableDomain(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "example.com", RegistrableDomain("https://shop.blog.example.com"))
	assert.Equal(t, "example.co.uk", RegistrableDomain("www.example.co.uk"))
	assert.Equal(t, "localhost", RegistrableDomain("http://localhost:9000"))
}

func TestFilterExcluded(t *testing.T) {
	t.Parallel()

	f := New("https://www.acme.io", []string{"rival.com", "https://other.co.uk"})

	excluded := []string{
		"https://acme.io/pricing",
		"https://blog.acme.io/post",
		"https://rival.com",
		"https://eu.rival.com/x",
		"https://news.other.co.uk/a",
		"https://vertexaisearch.cloud.google.com/grounding-api-redirect/abc",
		"https://cloud.google.com/docs",
	}
	for _, u := range excluded {
		assert.True(t, f.Excluded(u), u)
	}

	allowed := []string{
		"https://notacme.io/page",
		"https://rival.com.evil.org/",
		"https://developers.google.com/search",
		"https://www.nature.com/articles/x",
		"not a url",
	}
	for _, u := range allowed {
		assert.False(t, f.Excluded(u), u)
	}
}

func TestIsExcludedWithoutCompany(t *testing.T) {
	t.Parallel()

	assert.False(t, IsExcluded("https://example.org", "", nil))
	assert.True(t, IsExcluded("https://cloud.google.com/x", "", nil))
}

func TestStripTracking(t *testing.T) {
	t.Parallel()

	got := StripTracking("https://example.com/a?utm_source=x&id=7&gclid=abc&UTM_Medium=y")
	assert.Equal(t, "https://example.com/a?id=7", got)
	assert.Equal(t, "https://example.com/a", StripTracking("https://example.com/a"))
}

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Key("https://www.Example.com/Report/"), Key("http://example.com/Report"))
	assert.Equal(t, Key("https://example.com/a?b=2&a=1#frag"), Key("https://example.com/a?a=1&b=2&utm_source=z"))
	assert.Equal(t, Key("https://a.org/article?id=1"), Key("https://A.org/article/?ref=x"))
	assert.NotEqual(t, Key("https://example.com/a"), Key("https://example.com/b"))
	assert.Equal(t, "example.com/", Key("https://example.com"))
}
