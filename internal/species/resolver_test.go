package species

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdnetpi/speciestools/internal/conf"
	"github.com/birdnetpi/speciestools/internal/datastore"
	"github.com/birdnetpi/speciestools/internal/errors"
)

func TestDirectoryToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"spaces", "American Robin", "American_Robin"},
		{"apostrophe dropped", "Bob's Bird", "Bobs_Bird"},
		{"hyphen kept", "Black-capped Chickadee", "Black-capped_Chickadee"},
		{"single word", "Osprey", "Osprey"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DirectoryToken(tt.in))
		})
	}
}

func TestResolveCandidates(t *testing.T) {
	t.Parallel()

	row := datastore.Detection{
		Date:       "2024-01-01",
		CommonName: "American Robin",
		FileName:   "x.wav",
	}

	got := ResolveCandidates(row, "/data/By_Date")
	assert.Equal(t, []string{
		"/data/By_Date/2024-01-01/American_Robin/x.wav",
		"/data/By_Date/shifted/2024-01-01/American_Robin/x.wav",
	}, got)

	assert.Equal(t, got, ResolveCandidates(row, "/data/By_Date/"), "trailing separator")
	assert.Empty(t, ResolveCandidates(row, ""))
}

func TestResolveCandidates_KeepsTraversalElements(t *testing.T) {
	t.Parallel()

	row := datastore.Detection{Date: "2024-01-01", CommonName: "Pica pica", FileName: "../../secrets.txt"}
	got := Layouts{ByDate}.ResolveCandidates(row, "/data/By_Date")
	assert.Equal(t, []string{"/data/By_Date/2024-01-01/Pica_pica/../../secrets.txt"}, got)
}

func TestLayoutsByName(t *testing.T) {
	t.Parallel()

	layouts, err := LayoutsByName([]string{conf.LayoutShifted, conf.LayoutByDate, conf.LayoutShifted})
	require.NoError(t, err)
	require.Len(t, layouts, 2)
	assert.Equal(t, conf.LayoutShifted, layouts[0].Name)
	assert.Equal(t, conf.LayoutByDate, layouts[1].Name)

	layouts, err = LayoutsByName(nil)
	require.NoError(t, err)
	assert.Len(t, layouts, len(conf.KnownLayouts))

	_, err = LayoutsByName([]string{"flat"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestLayouts_CustomConvention(t *testing.T) {
	t.Parallel()

	flat := Layout{
		Name: "flat",
		Path: func(root, _, dir, file string) string { return joinRaw(root, dir, file) },
	}
	row := datastore.Detection{Date: "2024-01-01", CommonName: "Bob's Bird", FileName: "a.mp3"}

	got := Layouts{ByDate, flat}.ResolveCandidates(row, "/srv")
	assert.Equal(t, []string{"/srv/2024-01-01/Bobs_Bird/a.mp3", "/srv/Bobs_Bird/a.mp3"}, got)
}
