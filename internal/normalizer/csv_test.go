package normalizer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const csvHeader = "timestamp,level,action,username,ip,country,resource,user_agent,message"

func TestNormalize_ValidBatch(t *testing.T) {
	input := csvHeader + "\n" +
		"2025-12-18T10:00:00Z,INFO,LOGIN_OK,alice,10.0.0.1,FR,/login,Mozilla,ok\n" +
		"2025-12-18T11:30:00Z,WARN,LOGIN_FAILED,bob,10.0.0.5,DE,/login,curl,bad password\n"

	res, err := Normalize(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Events, 2)
	assert.Equal(t, 0, res.Skipped)

	e := res.Events[0]
	assert.Equal(t, time.Date(2025, 12, 18, 10, 0, 0, 0, time.UTC), e.Timestamp.UTC())
	assert.Equal(t, "2025-12-18T10:00:00Z", e.RawTime)
	assert.Equal(t, "INFO", e.Level)
	assert.Equal(t, "LOGIN_OK", e.Action)
	assert.Equal(t, "alice", e.Username)
	assert.Equal(t, "10.0.0.1", e.IP)
	assert.Equal(t, "FR", e.Country)
	assert.Equal(t, "/login", e.Resource)
	assert.Equal(t, "Mozilla", e.UserAgent)
	assert.Equal(t, "ok", e.Message)

	assert.Equal(t, "LOGIN_FAILED", res.Events[1].Action)
}

func TestNormalize_SkipsRowsWithoutTimestamp(t *testing.T) {
	input := csvHeader + "\n" +
		",INFO,LOGIN_OK,alice,10.0.0.1,FR,/login,Mozilla,no timestamp\n" +
		"2025-12-18T10:00:00Z,INFO,LOGIN_OK,bob,10.0.0.2,DE,/login,curl,kept\n"

	res, err := Normalize(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "bob", res.Events[0].Username)
}

func TestNormalize_UnparsableTimestampSkipsRowOnly(t *testing.T) {
	input := csvHeader + "\n" +
		"not-a-timestamp,INFO,LOGIN_OK,alice,10.0.0.1,FR,/login,Mozilla,bad\n" +
		"2025-12-18T10:00:00Z,INFO,LOGIN_OK,bob,10.0.0.2,DE,/login,curl,kept\n" +
		"18/12/2025 10:00,INFO,LOGIN_OK,carol,10.0.0.3,ES,/login,curl,also bad\n"

	res, err := Normalize(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, "bob", res.Events[0].Username)
}

func TestNormalize_OptionalFieldsDefaultToEmpty(t *testing.T) {
	// Short row: DictReader semantics, missing trailing fields become empty.
	input := csvHeader + "\n" + "2025-12-18T10:00:00Z,INFO\n"

	res, err := Normalize(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Events, 1)

	e := res.Events[0]
	assert.Equal(t, "INFO", e.Level)
	assert.Empty(t, e.Action)
	assert.Empty(t, e.Username)
	assert.Empty(t, e.IP)
	assert.Empty(t, e.Message)
}

func TestNormalize_HeaderRequired(t *testing.T) {
	_, err := Normalize(strings.NewReader(""))
	assert.Error(t, err)
}

func TestNormalize_Idempotent(t *testing.T) {
	input := csvHeader + "\n" +
		"2025-12-18T10:00:00Z,INFO,LOGIN_OK,alice,10.0.0.1,FR,/login,Mozilla,ok\n" +
		"bogus,INFO,LOGIN_OK,bob,10.0.0.2,DE,/login,curl,bad\n"

	first, err := Normalize(strings.NewReader(input))
	require.NoError(t, err)
	second, err := Normalize(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "Z suffix treated as UTC",
			input: "2025-12-18T10:00:00Z",
			want:  time.Date(2025, 12, 18, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "explicit offset",
			input: "2025-12-18T12:00:00+02:00",
			want:  time.Date(2025, 12, 18, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "no offset interpreted as UTC",
			input: "2025-12-18T10:00:00",
			want:  time.Date(2025, 12, 18, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "fractional seconds",
			input: "2025-12-18T10:00:00.250Z",
			want:  time.Date(2025, 12, 18, 10, 0, 0, 250000000, time.UTC),
		},
		{
			name:    "garbage",
			input:   "yesterday",
			wantErr: true,
		},
		{
			name:  "date only reads as midnight UTC",
			input: "2025-12-18",
			want:  time.Date(2025, 12, 18, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}
