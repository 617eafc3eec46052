package csvio

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/waypoint/internal/core/fault"
	"github.com/colonyops/waypoint/internal/core/geo"
	"github.com/colonyops/waypoint/internal/core/route"
)

const source = `System Name,Body Name,X,Y,Z,Notes
Sol,Earth,0,0,0,home
Achenar,Achenar 3,67.5,-119.46875,24.84375,
sol,Mars,0,0,0,
Sol,Earth,0,0,0,
Colonia,,-9530.5,-910.28125,19808.125,far
`

func TestRead(t *testing.T) {
	t.Parallel()

	sheet, err := Read(strings.NewReader(source), DefaultColumns())
	require.NoError(t, err)

	require.Len(t, sheet.Stops, 3)
	assert.True(t, sheet.HasPayload)
	assert.Equal(t, []string{"Notes"}, sheet.Extra)

	sol := sheet.Stops[0]
	assert.Equal(t, "Sol", sol.Name)
	assert.Equal(t, []string{"Earth", "Mars"}, sol.Payload)
	assert.Equal(t, route.StatusUnvisited, sol.Status)
	assert.Equal(t, "home", sol.Extra["Notes"])

	assert.Equal(t, geo.Point3D{X: 67.5, Y: -119.46875, Z: 24.84375}, sheet.Stops[1].Coords)
	assert.Empty(t, sheet.Stops[2].Payload)
}

func TestRead_SelectedExtraColumns(t *testing.T) {
	t.Parallel()

	cols := DefaultColumns()
	cols.Payload = ""
	cols.Extra = []string{"notes"}

	sheet, err := Read(strings.NewReader(source), cols)
	require.NoError(t, err)
	assert.False(t, sheet.HasPayload)
	assert.Equal(t, []string{"Notes"}, sheet.Extra)
}

func TestRead_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{name: "empty", input: "", wantMsg: "empty"},
		{name: "missing column", input: "System Name,X,Y\nSol,0,0\n", wantMsg: `"Z"`},
		{name: "empty name", input: "System Name,X,Y,Z\n ,0,0,0\n", wantMsg: "line 2"},
		{name: "bad coordinate", input: "System Name,X,Y,Z\nSol,0,abc,0\n", wantMsg: `Y coordinate "abc"`},
		{name: "infinite coordinate", input: "System Name,X,Y,Z\nSol,0,0,Inf\n", wantMsg: "not a finite number"},
		{name: "nan coordinate", input: "System Name,X,Y,Z\nSol,NaN,0,0\n", wantMsg: "not a finite number"},
		{name: "bad status", input: "System Name,X,Y,Z,Status\nSol,0,0,0,gone\n", wantMsg: "unknown status"},
		{name: "missing extra", input: "System Name,X,Y,Z\nSol,0,0,0\n", wantMsg: "extra column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := DefaultColumns()
			if tt.name == "missing extra" {
				cols.Extra = []string{"Notes"}
			}
			_, err := Read(strings.NewReader(tt.input), cols)
			require.ErrorIs(t, err, fault.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestRead_HeaderCaseAndBOM(t *testing.T) {
	t.Parallel()

	input := "\ufeffsystem name , x,y,z\nSol,1,2,3\n\n"
	sheet, err := Read(strings.NewReader(input), DefaultColumns())
	require.NoError(t, err)
	require.Len(t, sheet.Stops, 1)
	assert.Equal(t, geo.Point3D{X: 1, Y: 2, Z: 3}, sheet.Stops[0].Coords)
}

func TestWrite(t *testing.T) {
	t.Parallel()

	sheet := Sheet{
		Stops: []route.Stop{
			{Name: "Sol", Coords: geo.Point3D{}, Status: route.StatusVisited, Payload: []string{"Earth", "Mars"},
				Extra: map[string]string{"Notes": "home"}},
			{Name: "Achenar", Coords: geo.Point3D{X: 67.5, Y: -119.46875, Z: 24.84375}},
		},
		Extra:      []string{"Notes"},
		HasPayload: true,
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sheet, DefaultColumns()))

	want := "System Name,X,Y,Z,Notes,Status,Body Name\n" +
		`Sol,0,0,0,home,visited,"[""Earth"",""Mars""]"` + "\n" +
		"Achenar,67.5,-119.46875,24.84375,,unvisited,[]\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteThenRead(t *testing.T) {
	t.Parallel()

	sheet, err := Read(strings.NewReader(source), DefaultColumns())
	require.NoError(t, err)
	sheet.Stops[1].Status = route.StatusSkipped

	path := filepath.Join(t.TempDir(), "route.csv")
	require.NoError(t, WriteFile(path, sheet, DefaultColumns()))

	again, err := ReadFile(path, DefaultColumns())
	require.NoError(t, err)
	assert.Equal(t, sheet.Stops, again.Stops)
	assert.Equal(t, sheet.Extra, again.Extra)
}

func TestExtraColumns(t *testing.T) {
	t.Parallel()

	stops := []route.Stop{
		{Name: "a", Extra: map[string]string{"b": "1", "a": "2"}},
		{Name: "b", Extra: map[string]string{"c": "3", "a": "4"}},
		{Name: "c"},
	}
	assert.Equal(t, []string{"a", "b", "c"}, ExtraColumns(stops))
}
