package numerator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPattern_Format(t *testing.T) {
	issued := time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		pattern string
		n       int64
		want    string
	}{
		{DefaultPurchaseRequestPattern, 1, "PR2610-00001"},
		{"PR{date:yyMM}{running:5}", 42, "PR261000042"},
		{"GRN-{date:yyyyMMdd}-{running:3}", 7, "GRN-20261015-007"},
		{"{running:2}", 123, "123"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			p, err := ParsePattern(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Format(issued, tt.n))
		})
	}
}

func TestParsePattern_Errors(t *testing.T) {
	for _, s := range []string{
		"PR{date:yyMM}",        // no running
		"PR{running}{running}", // two running
		"PR{running:x}",        // bad width
		"PR{sequence:5}",       // unknown placeholder
		"PR{running:5",         // unterminated
	} {
		_, err := ParsePattern(s)
		assert.Error(t, err, s)
	}
}

func TestSequenceKey(t *testing.T) {
	issued := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "PR_2026_03", SequenceKey(Config{Type: "PR", ResetPeriod: ResetMonthly}, issued))
	assert.Equal(t, "PR_2026", SequenceKey(Config{Type: "PR", ResetPeriod: ResetYearly}, issued))
	assert.Equal(t, "PR", SequenceKey(Config{Type: "PR", ResetPeriod: ResetNever}, issued))
}

func TestMockGenerator_CountsPerPeriod(t *testing.T) {
	g := &MockGenerator{}
	cfg := PurchaseRequestConfig("")
	oct := time.Date(2026, time.October, 2, 0, 0, 0, 0, time.UTC)
	nov := time.Date(2026, time.November, 2, 0, 0, 0, 0, time.UTC)

	first, err := g.GetNextNumber(t.Context(), cfg, nil, oct)
	require.NoError(t, err)
	second, _ := g.GetNextNumber(t.Context(), cfg, nil, oct)
	other, _ := g.GetNextNumber(t.Context(), cfg, nil, nov)

	assert.Equal(t, "PR2610-00001", first)
	assert.Equal(t, "PR2610-00002", second)
	assert.Equal(t, "PR2611-00001", other)
}
