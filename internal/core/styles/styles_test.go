package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/colonyops/waypoint/internal/core/route"
)

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	assert.Contains(t, names, DefaultTheme)
	assert.IsNonDecreasing(t, names)
}

func TestUseTheme(t *testing.T) {
	t.Cleanup(func() { UseTheme(DefaultTheme) })

	assert.True(t, UseTheme("gruvbox"))
	assert.Equal(t, themes["gruvbox"], CurrentPalette)

	assert.False(t, UseTheme("neon"))
	assert.Equal(t, themes["gruvbox"], CurrentPalette, "unknown theme keeps the current one")
}

func TestStatusIcon(t *testing.T) {
	assert.Equal(t, IconVisited, StatusIcon(route.StatusVisited))
	assert.Equal(t, IconSkipped, StatusIcon(route.StatusSkipped))
	assert.Equal(t, IconUnvisited, StatusIcon(route.StatusUnvisited))
	assert.Equal(t, IconUnvisited, StatusIcon(""))
}
