package lists

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdnetpi/speciestools/internal/testutil"
)

func run(t *testing.T, st *testutil.Station, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := Command(st.Settings)
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return buf.String(), err
}

func TestListsCommand(t *testing.T) {
	t.Parallel()
	t.Attr("component", "cli")

	st := testutil.NewStation(t)
	const id = "Turdus migratorius_American Robin"

	out, err := run(t, st, "add", "exclude", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Added "+id+" to exclude list")
	assert.Equal(t, id+"\n", st.ListFile(t, "exclude_species_list.txt"))

	out, err = run(t, st, "add", "exclude", id)
	require.NoError(t, err)
	assert.Contains(t, out, "No change to exclude list")

	out, err = run(t, st, "show", "exclude")
	require.NoError(t, err)
	assert.Equal(t, id+"\n", out)

	out, err = run(t, st, "remove", "exclude", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed "+id+" from exclude list")
	assert.Empty(t, st.ListFile(t, "exclude_species_list.txt"))

	out, err = run(t, st, "show", "whitelist")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestListsCommand_UnknownList(t *testing.T) {
	t.Parallel()

	_, err := run(t, testutil.NewStation(t), "show", "blacklist")
	require.Error(t, err)
}
