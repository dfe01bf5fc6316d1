package remove

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdnetpi/speciestools/internal/testutil"
)

func TestConfirm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes ", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			assert.Equal(t, tt.want, confirm(strings.NewReader(tt.input), &out, "Delete? "))
			assert.Equal(t, "Delete? ", out.String())
		})
	}
}

func run(t *testing.T, st *testutil.Station, stdin string, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	cmd := Command(st.Settings)
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(t.Context()))
	return buf.String()
}

func TestDeleteCommand(t *testing.T) {
	t.Parallel()
	t.Attr("component", "cli")

	st := testutil.NewStation(t)
	st.Seed(t, testutil.Detection("2024-01-01", "American Robin", "Turdus migratorius", "a.wav"))
	a := st.File(t, "2024-01-01", "American_Robin", "a.wav")

	out := run(t, st, "n\n", "American Robin")
	assert.Contains(t, out, "Delete 1 detections and 1 recordings of American Robin? [y/N] ")
	assert.Contains(t, out, "Aborted")
	assert.FileExists(t, a)

	out = run(t, st, "y\n", "American Robin")
	assert.Contains(t, out, "Deleted 1 detections and 1 recordings of American Robin")
	assert.NoFileExists(t, a)
}

func TestDeleteCommand_Yes(t *testing.T) {
	t.Parallel()

	st := testutil.NewStation(t)
	st.Seed(t, testutil.Detection("2024-01-01", "Bob's Bird", "Avis roberti", "a.wav"))
	a := st.File(t, "2024-01-01", "Bobs_Bird", "a.wav")

	out := run(t, st, "", "--yes", "Bob's Bird")
	assert.NotContains(t, out, "[y/N]")
	assert.Contains(t, out, "Deleted 1 detections and 1 recordings of Bob's Bird")
	assert.NoFileExists(t, a)

	out = run(t, st, "", "-y", "Bob's Bird")
	assert.Contains(t, out, "Deleted 0 detections and 0 recordings")
}
