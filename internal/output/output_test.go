package output

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendergate/tendergate/internal/ratelimit"
	"github.com/tendergate/tendergate/internal/store"
)

func sampleRecords() []store.ViolationRecord {
	occurred := time.Date(2026, 8, 1, 12, 5, 0, 0, time.UTC)
	return []store.ViolationRecord{
		{
			ID: 2,
			Violation: ratelimit.Violation{
				Identifier:     "203.0.113.7",
				Endpoint:       "/api/tenders",
				ViolationCount: 3,
				WindowStart:    occurred.Add(-time.Minute),
				WindowEnd:      occurred,
				Blocked:        true,
				OccurredAt:     occurred,
			},
		},
		{
			ID: 1,
			Violation: ratelimit.Violation{
				Identifier:     "198.51.100.4",
				Endpoint:       "/api/auth/login",
				ViolationCount: 1,
				OccurredAt:     occurred.Add(-time.Hour),
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"json", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{" table ", FormatTable, false},
		{"", FormatTable, false},
		{"yaml", "", true},
	}

	for _, tc := range cases {
		got, err := ParseFormat(tc.input)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.input)
			continue
		}
		require.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, tc.want, got)
	}
}

func TestNewFormatter(t *testing.T) {
	assert.IsType(t, &TableFormatter{}, NewFormatter(FormatTable))
	assert.IsType(t, &JSONFormatter{}, NewFormatter(FormatJSON))
}

func TestTableFormatter(t *testing.T) {
	out, err := (&TableFormatter{}).FormatViolations(sampleRecords())
	require.NoError(t, err)

	assert.Contains(t, out, "203.0.113.7")
	assert.Contains(t, out, "/api/tenders")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "2 violations, 1 blocked")
	// A record with no window reported shows a placeholder.
	assert.Contains(t, out, "-")
}

func TestTableFormatterEmpty(t *testing.T) {
	out, err := (&TableFormatter{}).FormatViolations(nil)
	require.NoError(t, err)
	assert.Contains(t, out, "IDENTIFIER")
	assert.NotContains(t, out, "violations,")
}

func TestJSONFormatter(t *testing.T) {
	out, err := (&JSONFormatter{Indent: true}).FormatViolations(sampleRecords())
	require.NoError(t, err)

	var decoded []store.ViolationRecord
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, int64(2), decoded[0].ID)
	assert.Equal(t, "203.0.113.7", decoded[0].Violation.Identifier)

	// nil input renders an empty array, not null.
	out, err = (&JSONFormatter{}).FormatViolations(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}
