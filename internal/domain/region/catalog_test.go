package region

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	apperrors "github.com/lokaskor/lokaskor/pkg/errors"
)

const testCatalogJSON = `{
  "provinces": [
    {
      "name": "İstanbul",
      "districts": [
        {
          "name": "Kadıköy",
          "neighborhoods": [
            {"name": "Moda", "center": {"lat": 40.9819, "lng": 29.0254}, "radius_meters": 800},
            {"name": "Fenerbahçe", "center": {"lat": 40.9697, "lng": 29.0365}, "radius_meters": 900}
          ]
        },
        {
          "name": "Beşiktaş",
          "neighborhoods": [
            {"name": "Levent", "center": {"lat": 41.0778, "lng": 29.0161}, "radius_meters": 1200}
          ]
        }
      ]
    },
    {
      "name": "Ankara",
      "districts": [
        {
          "name": "Çankaya",
          "neighborhoods": [
            {"name": "Kızılay", "center": {"lat": 39.9208, "lng": 32.8541}, "radius_meters": 1000}
          ]
        }
      ]
    }
  ]
}`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regions.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(writeCatalog(t, testCatalogJSON), logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func TestNewCatalog_Errors(t *testing.T) {
	_, err := NewCatalog(filepath.Join(t.TempDir(), "absent.json"), logging.NewNopLogger())
	assert.True(t, apperrors.IsNotFound(err))

	_, err = NewCatalog(writeCatalog(t, "not json"), logging.NewNopLogger())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSerialization))

	_, err = NewCatalog(writeCatalog(t, `{"provinces": []}`), logging.NewNopLogger())
	assert.True(t, apperrors.IsValidation(err))
}

func TestCatalogLookups(t *testing.T) {
	c := newTestCatalog(t)

	assert.Equal(t, []string{"İstanbul", "Ankara"}, c.Provinces())
	assert.Equal(t, []string{"Kadıköy", "Beşiktaş"}, c.Districts("İstanbul"))
	assert.Equal(t, []string{"Moda", "Fenerbahçe"}, c.Neighborhoods("İstanbul", "Kadıköy"))

	assert.Empty(t, c.Districts("İzmir"))
	assert.Empty(t, c.Neighborhoods("İstanbul", "Şişli"))
}

func TestCatalogResolve(t *testing.T) {
	c := newTestCatalog(t)

	n, err := c.Resolve(Path{Province: "İstanbul", District: "Kadıköy", Neighborhood: "Moda"})
	require.NoError(t, err)
	assert.Equal(t, "Moda", n.Name)
	assert.InDelta(t, 40.9819, n.Center.Lat, 0.0001)
	assert.True(t, n.Bounds().Contains(n.Center))

	_, err = c.Resolve(Path{Province: "İstanbul", District: "Kadıköy"})
	assert.True(t, apperrors.IsValidation(err))

	_, err = c.Resolve(Path{Province: "İstanbul", District: "Kadıköy", Neighborhood: "Yoktur"})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCatalogValidatePath(t *testing.T) {
	c := newTestCatalog(t)

	assert.NoError(t, c.ValidatePath(Path{}))
	assert.NoError(t, c.ValidatePath(Path{Province: "Ankara"}))
	assert.NoError(t, c.ValidatePath(Path{Province: "Ankara", District: "Çankaya"}))
	assert.NoError(t, c.ValidatePath(
		Path{Province: "Ankara", District: "Çankaya", Neighborhood: "Kızılay"}))

	assert.Error(t, c.ValidatePath(Path{District: "Çankaya"}), "district without province")
	assert.Error(t, c.ValidatePath(Path{Province: "İzmir"}))
	assert.Error(t, c.ValidatePath(Path{Province: "Ankara", District: "Keçiören"}))
}

func TestPathWithSelectionClearsDeeperLevels(t *testing.T) {
	p := Path{Province: "İstanbul", District: "Kadıköy", Neighborhood: "Moda"}

	p2 := p.WithSelection(LevelProvince, "Ankara")
	assert.Equal(t, Path{Province: "Ankara"}, p2)

	p3 := p.WithSelection(LevelDistrict, "Beşiktaş")
	assert.Equal(t, Path{Province: "İstanbul", District: "Beşiktaş"}, p3)
}

func TestCatalogWatchReloads(t *testing.T) {
	path := writeCatalog(t, testCatalogJSON)
	c, err := NewCatalog(path, logging.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, c.Watch())
	defer c.Close()

	updated := `{"provinces": [{"name": "Bursa", "districts": []}]}`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		provs := c.Provinces()
		return len(provs) == 1 && provs[0] == "Bursa"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestCatalogWatchKeepsOldOnBadReload(t *testing.T) {
	path := writeCatalog(t, testCatalogJSON)
	c, err := NewCatalog(path, logging.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, c.Watch())
	defer c.Close()

	require.NoError(t, os.WriteFile(path, []byte("broken"), 0o644))

	// The previous catalog must stay active.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, []string{"İstanbul", "Ankara"}, c.Provinces())
}
