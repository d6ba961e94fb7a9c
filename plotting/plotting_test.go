package plotting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scope tests mutate package-level state and must not run in parallel.

func Test_ParseShowMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		give    string
		want    ShowMode
		wantErr bool
	}{
		{give: "hang", want: ModeHang},
		{give: "draw", want: ModeDraw},
		{give: "suppress", want: ModeSuppress},
		{give: "DRAW", want: ModeDraw},
		{give: "blocking", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.give, func(t *testing.T) {
			t.Parallel()

			got, err := ParseShowMode(tt.give)
			if tt.wantErr {
				require.Error(t, err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, strings.ToLower(tt.give), got.String())
		})
	}
}

func Test_SaveScope_WritesShownFigures(t *testing.T) {
	dir := t.TempDir()

	show := OpenShowScope(ModeSuppress)
	defer show.Close()

	save := OpenSaveScope(filepath.Join(dir, "fig-%T-%L"))
	defer save.Close()

	require.NoError(t, Show(Figure{Label: "loss", Ext: ".png", Data: []byte("png-bytes")}))
	require.NoError(t, Show(Figure{Data: []byte("more-bytes")}))

	paths := save.SavedPaths()
	require.Len(t, paths, 2)
	assert.Contains(t, filepath.Base(paths[0]), "loss")
	assert.True(t, strings.HasPrefix(filepath.Base(paths[0]), "fig-"))
	// Unlabeled figures fall back to their sequence number.
	assert.Contains(t, filepath.Base(paths[1]), "-2")

	b, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), b)

	b, err = os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, []byte("more-bytes"), b)
}

func Test_SaveScope_CloseStopsSaving(t *testing.T) {
	dir := t.TempDir()

	show := OpenShowScope(ModeSuppress)
	defer show.Close()

	save := OpenSaveScope(filepath.Join(dir, "fig-%T-%L"))
	require.NoError(t, Show(Figure{Label: "a", Data: []byte("x")}))
	save.Close()

	require.NoError(t, Show(Figure{Label: "b", Data: []byte("y")}))
	require.Len(t, save.SavedPaths(), 1)
}

func Test_ShowScope_NestingRestores(t *testing.T) {
	var hangs int
	prev := SetHangHandler(func(Figure) { hangs++ })
	defer SetHangHandler(prev)

	outer := OpenShowScope(ModeHang)
	inner := OpenShowScope(ModeSuppress)

	require.NoError(t, Show(Figure{Label: "quiet"}))
	assert.Equal(t, 0, hangs)

	inner.Close()

	require.NoError(t, Show(Figure{Label: "loud"}))
	assert.Equal(t, 1, hangs)

	outer.Close()
}

func Test_Show_DefaultModeHangs(t *testing.T) {
	var got []string
	prev := SetHangHandler(func(fig Figure) { got = append(got, fig.Label) })
	defer SetHangHandler(prev)

	require.NoError(t, Show(Figure{Label: "standalone"}))
	assert.Equal(t, []string{"standalone"}, got)
}

func Test_Show_DrawDoesNotBlock(t *testing.T) {
	prev := SetHangHandler(func(Figure) { t.Fatal("draw mode must not hang") })
	defer SetHangHandler(prev)

	scope := OpenShowScope(ModeDraw)
	defer scope.Close()

	require.NoError(t, Show(Figure{Label: "drawn"}))
}
