package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		rawURL string
		want   string
	}{
		{"https://www.Example.COM/jobs/1", "www.example.com"},
		{"https://uk.linkedin.com/jobs/view/2?src=feed", "uk.linkedin.com"},
		{"not a url at all \x7f://", ""},
		{"/relative/path", ""},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HostOf(tc.rawURL), "HostOf(%q)", tc.rawURL)
	}
}

func TestStripQuery(t *testing.T) {
	t.Parallel()

	cases := []struct {
		rawURL string
		want   string
	}{
		{"https://a.test/jobs/1?utm_source=feed&ref=x", "https://a.test/jobs/1"},
		{"https://a.test/jobs/1#apply", "https://a.test/jobs/1"},
		{"https://a.test/jobs/1?q=1#frag", "https://a.test/jobs/1"},
		{"https://a.test/jobs/1", "https://a.test/jobs/1"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StripQuery(tc.rawURL))
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	allowed := []string{"www.adzuna.co.uk", "www.linkedin.com"}
	postings := []Posting{
		{ID: 0, ResolvedURL: strptr("https://www.adzuna.co.uk/jobs/details/1?se=abc&v=2")},
		{ID: 1, ResolvedURL: strptr("https://www.linkedin.com/jobs/view/2#top")},
		{ID: 2, ResolvedURL: strptr("https://evil.example.com/jobs/3")},
		{ID: 3, ResolvedURL: strptr(Blocked)},
		{ID: 4, ResolvedURL: nil},
		{ID: 5, ResolvedURL: strptr("WWW.ADZUNA.CO.UK")},
	}

	kept := Normalize(postings, allowed)

	require.Len(t, kept, 2)
	assert.Equal(t, 0, kept[0].ID)
	assert.Equal(t, "https://www.adzuna.co.uk/jobs/details/1", *kept[0].ResolvedURL)
	assert.Equal(t, "www.adzuna.co.uk", kept[0].Host)
	assert.Equal(t, 1, kept[1].ID)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/2", *kept[1].ResolvedURL)
	assert.Equal(t, "www.linkedin.com", kept[1].Host)
}

func TestNormalizeAllowListCaseInsensitive(t *testing.T) {
	t.Parallel()

	postings := []Posting{{ResolvedURL: strptr("https://WWW.ADZUNA.CO.UK/jobs/1")}}
	kept := Normalize(postings, []string{"WWW.Adzuna.co.uk"})
	require.Len(t, kept, 1)
	assert.Equal(t, "www.adzuna.co.uk", kept[0].Host)
}

func TestNormalizeEmptyAllowListDropsEverything(t *testing.T) {
	t.Parallel()

	postings := []Posting{{ResolvedURL: strptr("https://www.adzuna.co.uk/jobs/1")}}
	assert.Empty(t, Normalize(postings, nil))
}
