package domparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeTokenList(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"colon pair", "9:00am – 10:00am, Team Sync", []string{"900", "1000"}},
		{"dot separator", "18.30 bis 19.45", []string{"1830", "1945"}},
		{"bare hours", "8 AM to 11 AM", []string{"8", "11"}},
		{"hyphen is not a digit separator", "9-30", []string{"9", "30"}},
		{"en dash is not a digit separator", "9–30", []string{"9", "30"}},
		{"arabic-indic digits", "٩:٣٠ – ١٠:١٥", []string{"930", "1015"}},
		{"devanagari digits", "९:०० से १०:००", []string{"900", "1000"}},
		{"fullwidth digits", "９：００～１０：３０", []string{"900", "1030"}},
		{"no digits", "all day long", nil},
		{"four digit run splits", "2015", []string{"20", "15"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TimeTokenList(tc.in))
		})
	}
}

func TestTimeTokensRestartable(t *testing.T) {
	seq := TimeTokens("9:00 – 10:30")

	var first, second []string
	for tok := range seq {
		first = append(first, tok)
	}
	for tok := range seq {
		second = append(second, tok)
	}

	require.Equal(t, []string{"900", "1030"}, first)
	require.Equal(t, first, second)
}

func TestTimeTokensEarlyStop(t *testing.T) {
	var got []string
	for tok := range TimeTokens("1:00 2:00 3:00") {
		got = append(got, tok)
		if len(got) == 2 {
			break
		}
	}
	require.Equal(t, []string{"100", "200"}, got)
}

func TestNormalizeDigits(t *testing.T) {
	assert.Equal(t, "9:30", NormalizeDigits("٩:٣٠"))
	assert.Equal(t, "12:00", NormalizeDigits("๑๒:๐๐"))
	assert.Equal(t, "plain 7", NormalizeDigits("plain 7"))
}
