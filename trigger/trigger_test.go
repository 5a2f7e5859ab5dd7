package trigger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_ShouldTrigger_MentionsAndPhrases(t *testing.T) {
	req := require.New(t)
	detector, err := NewDetector(DefaultPhrases)
	req.NoError(err)

	cases := []struct {
		content string
		want    bool
	}{
		{"Hey Styx, what's up?", true},
		{"hey styx", true},
		{"@styx can you help", true},
		{"tell me @styx!", true},
		{"@STYX?", true},
		{"ai: summarize this", true},
		{"could use some ai help here", true},
		{"mystyx is cool", false},
		{"contact me at user@styx.com", false},
		{"@styxx is someone else", false},
		{"heystyx", false},
		{"no assistant mentioned here", false},
		{"", false},
	}
	for _, tc := range cases {
		req.Equal(tc.want, detector.ShouldTrigger(tc.content), "content: %q", tc.content)
	}
}

func Test_ShouldTrigger_MentionMustFollowWhitespaceOrStart(t *testing.T) {
	req := require.New(t)
	detector, err := NewDetector([]string{"@styx"})
	req.NoError(err)

	req.True(detector.ShouldTrigger("@styx hello"))
	req.True(detector.ShouldTrigger("hello @styx"))
	req.True(detector.ShouldTrigger("hello @styx."))
	req.False(detector.ShouldTrigger("hello@styx"))
	req.False(detector.ShouldTrigger("@styxish"))
}

func Test_NewDetector_RejectsEmptyList(t *testing.T) {
	_, err := NewDetector(nil)
	require.Error(t, err)
}
