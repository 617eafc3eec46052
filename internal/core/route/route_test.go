package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/waypoint/internal/core/geo"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{in: "visited", want: StatusVisited},
		{in: " Skipped ", want: StatusSkipped},
		{in: "UNVISITED", want: StatusUnvisited},
		{in: "", want: StatusUnvisited},
		{in: "done", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "sol", Key("  Sol "))
	assert.Equal(t, Key("Colonia"), Key("COLONIA"))
}

func TestAggregate(t *testing.T) {
	stops := []Stop{
		{Name: "Sol", Coords: geo.Point3D{}, Payload: []string{"Earth"}},
		{Name: "Achenar", Coords: geo.Point3D{X: 67.5, Y: -119.47, Z: 24.84}, Payload: []string{"Achenar 3"}},
		{Name: "sol ", Coords: geo.Point3D{X: 99}, Payload: []string{"Mars", "Earth", ""}},
		{Name: "Sol", Payload: []string{"Jupiter"}},
	}

	got := Aggregate(stops)

	require.Len(t, got, 2)
	assert.Equal(t, "Sol", got[0].Name)
	assert.Equal(t, geo.Point3D{}, got[0].Coords, "first occurrence keeps coordinates")
	assert.Equal(t, []string{"Earth", "Mars", "Jupiter"}, got[0].Payload)
	assert.Equal(t, "Achenar", got[1].Name)
	assert.Equal(t, []string{"Achenar 3"}, got[1].Payload)

	// input is not aliased
	got[0].Payload[0] = "changed"
	assert.Equal(t, "Earth", stops[0].Payload[0])
}

func TestPoints(t *testing.T) {
	stops := []Stop{{Coords: geo.Point3D{X: 1}}, {Coords: geo.Point3D{Y: 2}}}
	assert.Equal(t, []geo.Point3D{{X: 1}, {Y: 2}}, Points(stops))
}
