package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	normalized, domain, err := NormalizeURL("https://Example.com/path?utm_source=test&x=1")
	require.NoError(t, err)
	assert.Equal(t, "example.com", domain)
	assert.Equal(t, "https://example.com/path?x=1", normalized)
}

func TestExtractURLs(t *testing.T) {
	urls := ExtractURLs("look https://evil.example/x and <http://a.b/c> too")
	assert.Equal(t, []string{"https://evil.example/x", "http://a.b/c"}, urls)
}

func TestHostAllowed(t *testing.T) {
	allow := []string{"discord.gg", "youtube.com"}
	assert.True(t, HostAllowed("discord.gg", allow))
	assert.True(t, HostAllowed("www.youtube.com", allow))
	assert.False(t, HostAllowed("evil.example", allow))
	assert.False(t, HostAllowed("evil.example", nil))
}
