package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   []Group
	}{
		{
			name:   "single token",
			header: "(<opaquelocktoken:a>)",
			want:   []Group{{Terms: []Term{{Kind: TermToken, Value: "opaquelocktoken:a"}}}},
		},
		{
			name:   "token and etag",
			header: `(<opaquelocktoken:a> ["abc"])`,
			want: []Group{{Terms: []Term{
				{Kind: TermToken, Value: "opaquelocktoken:a"},
				{Kind: TermETag, Value: `"abc"`},
			}}},
		},
		{
			name:   "two groups with negation",
			header: "(<opaquelocktoken:a>) (Not <DAV:no-lock>)",
			want: []Group{
				{Terms: []Term{{Kind: TermToken, Value: "opaquelocktoken:a"}}},
				{Terms: []Term{{Negated: true, Kind: TermToken, Value: "DAV:no-lock"}}},
			},
		},
		{
			name:   "resource tag is discarded",
			header: "<http://cid:8080/litmus/unmapped_url> (<opaquelocktoken:cd6798>)",
			want:   []Group{{Terms: []Term{{Kind: TermToken, Value: "opaquelocktoken:cd6798"}}}},
		},
		{
			name:   "case insensitive not",
			header: "(nOT [W/\"x\"])",
			want:   []Group{{Terms: []Term{{Negated: true, Kind: TermETag, Value: `W/"x"`}}}},
		},
		{
			name:   "loose whitespace",
			header: "  (\t<t1>\n[e1] )(Not[e2])  ",
			want: []Group{
				{Terms: []Term{{Kind: TermToken, Value: "t1"}, {Kind: TermETag, Value: "e1"}}},
				{Terms: []Term{{Negated: true, Kind: TermETag, Value: "e2"}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, err := Parse(tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cond.Groups)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	headers := map[string]string{
		"empty":            "",
		"blank":            "   ",
		"empty group":      "()",
		"unbalanced paren": "(<a>",
		"unbalanced angle": "(<a)",
		"unbalanced brack": "([abc)",
		"stray text":       "(<a>) junk",
		"text in group":    "(<a> junk)",
		"tag only":         "<http://host/a>",
		"dangling not":     "(Not)",
		"empty token":      "(<>)",
		"not glued":        "(Nota<b>)",
	}

	for name, header := range headers {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(header)
			assert.ErrorIs(t, err, ErrMalformedCondition)
		})
	}
}

func TestParse_ErrorCarriesOffset(t *testing.T) {
	_, err := Parse("(<a>) x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 6")
}
