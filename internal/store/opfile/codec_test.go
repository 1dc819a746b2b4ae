package opfile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/colonyops/muster/internal/core/operation"
)

func TestCodec_TimesRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
	}{
		{"unset", time.Time{}},
		{"unix epoch", time.Unix(0, 0).UTC()},
		{"before 1678", time.Date(1600, 5, 1, 9, 0, 0, 0, time.UTC)},
		{"after 2262", time.Date(2300, 1, 10, 20, 0, 0, 0, time.UTC)},
		{"nanoseconds kept", time.Date(2030, 1, 10, 20, 0, 0, 123456789, time.UTC)},
		{"non-utc input", time.Date(2030, 1, 10, 21, 0, 0, 0, time.FixedZone("CET", 3600))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &operation.Record{
				Name:      "Night Raid",
				Identity:  operation.Template(),
				Date:      tt.at,
				CreatedAt: tt.at,
				UpdatedAt: tt.at,
			}

			data, err := encode(rec)
			require.NoError(t, err)
			got, err := decode(data)
			require.NoError(t, err)

			for _, ts := range []time.Time{got.Date, got.CreatedAt, got.UpdatedAt} {
				assert.Equal(t, tt.at.IsZero(), ts.IsZero())
				assert.True(t, tt.at.Equal(ts), "want %v, got %v", tt.at, ts)
				if !ts.IsZero() {
					assert.Equal(t, time.UTC, ts.Location())
				}
			}
		})
	}
}

func TestCodec_RejectsOtherVersions(t *testing.T) {
	data, err := encode(fullRecord())
	require.NoError(t, err)
	_, err = decode(data)
	require.NoError(t, err)

	old := recordFile{Version: formatVersion - 1, Name: "Sober Dogs", Status: operation.StatusOpen.String()}
	data, err = msgpack.Marshal(&old)
	require.NoError(t, err)
	_, err = decode(data)
	assert.ErrorContains(t, err, "unsupported format version")
}
