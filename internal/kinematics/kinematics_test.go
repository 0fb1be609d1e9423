package kinematics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunabot/internal/spatial"
)

func writeLayout(t *testing.T, nodes []nodeLayout) string {
	t.Helper()
	data, err := json.Marshal(nodes)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "layout.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadLayout_ResolvesNodeByName(t *testing.T) {
	path := writeLayout(t, []nodeLayout{
		{Name: "base"},
		{Name: "camera", Parent: "base", Translation: [3]float64{0, 1, 0}},
	})
	chain, err := LoadLayout(path)
	require.NoError(t, err)
	idx, ok := chain.NodeIndex("camera")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestLoadLayout_UnknownParentIsAnError(t *testing.T) {
	path := writeLayout(t, []nodeLayout{
		{Name: "camera", Parent: "base"},
	})
	_, err := LoadLayout(path)
	assert.ErrorIs(t, err, ErrUnknownParent)
}

func TestLoadLayout_DuplicateNameIsAnError(t *testing.T) {
	path := writeLayout(t, []nodeLayout{
		{Name: "base"},
		{Name: "base"},
	})
	_, err := LoadLayout(path)
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestChain_WorldTransformComposesAncestorTranslations(t *testing.T) {
	path := writeLayout(t, []nodeLayout{
		{Name: "base", Translation: [3]float64{1, 0, 0}},
		{Name: "arm", Parent: "base", Translation: [3]float64{0, 2, 0}},
		{Name: "camera", Parent: "arm", Translation: [3]float64{0, 0, 3}},
	})
	chain, err := LoadLayout(path)
	require.NoError(t, err)

	idx, ok := chain.NodeIndex("camera")
	require.True(t, ok)
	world := chain.WorldTransform(idx)
	assert.Equal(t, 1.0, world.Translation.X)
	assert.Equal(t, 2.0, world.Translation.Y)
	assert.Equal(t, 3.0, world.Translation.Z)
}

func TestChain_WorldTransformOfUnknownIndexIsIdentity(t *testing.T) {
	path := writeLayout(t, []nodeLayout{{Name: "base"}})
	chain, err := LoadLayout(path)
	require.NoError(t, err)

	assert.Equal(t, spatial.Identity().Translation, chain.WorldTransform(99).Translation)
}
