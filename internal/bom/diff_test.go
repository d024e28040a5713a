package bom

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srkgupta/dependency-track-gate/internal/model"
)

func component(group, name, version string) model.Component {
	return model.Component{Group: group, Name: name, Version: version}
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "g:a", Identifier(component("g", "a", "1")))
	assert.Equal(t, "a", Identifier(component("", "a", "1")))
}

func TestDiffVersionChangeIsRemovedAndAdded(t *testing.T) {
	result := Diff(
		[]model.Component{component("g", "a", "1.0")},
		[]model.Component{component("g", "a", "2.0")},
	)

	require.Equal(t, []string{"g:a"}, result.Identifiers())
	item := result.Item("g:a")
	assert.Equal(t, []model.Component{component("g", "a", "1.0")}, item.Removed)
	assert.Equal(t, []model.Component{component("g", "a", "2.0")}, item.Added)
	assert.Empty(t, item.Unchanged)
	assert.True(t, item.HasChanges())
	assert.True(t, result.HasChanges())
}

func TestDiffClassifiesComponents(t *testing.T) {
	from := []model.Component{
		component("g", "kept", "1"),
		component("g", "gone", "1"),
		component("", "plain", "3"),
	}
	to := []model.Component{
		component("", "plain", "3"),
		component("g", "kept", "1"),
		component("h", "new", "0.1"),
	}

	result := Diff(from, to)

	assert.Equal(t, []string{"g:gone", "g:kept", "h:new", "plain"}, result.Identifiers())
	assert.Equal(t, []model.Component{component("g", "gone", "1")}, result.Item("g:gone").Removed)
	assert.Equal(t, []model.Component{component("g", "kept", "1")}, result.Item("g:kept").Unchanged)
	assert.False(t, result.Item("g:kept").HasChanges())
	assert.Equal(t, []model.Component{component("h", "new", "0.1")}, result.Item("h:new").Added)
	assert.Equal(t, []model.Component{component("", "plain", "3")}, result.Item("plain").Unchanged)
	assert.Empty(t, result.Item("missing").Added)
}

func TestDiffDuplicatesMatchOneToOne(t *testing.T) {
	result := Diff(
		[]model.Component{component("g", "a", "1"), component("g", "a", "1")},
		[]model.Component{component("g", "a", "1")},
	)

	item := result.Item("g:a")
	assert.Len(t, item.Unchanged, 1)
	assert.Len(t, item.Removed, 1)
	assert.Empty(t, item.Added)
}

func TestDiffOrdersByVersion(t *testing.T) {
	a := []model.Component{component("g", "a", "1"), component("g", "a", "2"), component("g", "b", "3")}
	b := []model.Component{component("g", "a", "2"), component("g", "a", "1"), component("g", "b", "2")}

	forward, backward := Diff(a, b), Diff(b, a)
	expected := []model.Component{component("g", "a", "1"), component("g", "a", "2")}
	assert.Equal(t, expected, forward.Item("g:a").Unchanged)
	assert.Equal(t, expected, backward.Item("g:a").Unchanged)

	removed := Diff(
		[]model.Component{component("g", "c", "9"), component("g", "c", "10"), component("g", "c", "8")},
		nil,
	).Item("g:c").Removed
	assert.Equal(t, []model.Component{component("g", "c", "10"), component("g", "c", "8"), component("g", "c", "9")}, removed)
}

func TestDiffDoesNotMutateInputs(t *testing.T) {
	from := []model.Component{component("g", "a", "1"), component("g", "b", "1")}
	to := []model.Component{component("g", "b", "1"), component("g", "a", "1")}

	Diff(from, to)
	assert.Equal(t, []model.Component{component("g", "b", "1"), component("g", "a", "1")}, to)
}

var inventories = map[string][]model.Component{
	"empty":  nil,
	"single": {component("g", "a", "1.0")},
	"mixed": {
		component("g", "a", "1.0"),
		component("g", "a", "2.0"),
		component("", "b", "1"),
		component("h", "c", "3"),
		component("h", "c", "3"),
	},
	"reordered": {
		component("h", "c", "3"),
		component("g", "a", "2.0"),
		component("", "b", "1"),
		component("g", "a", "1.0"),
	},
	"other": {
		component("g", "a", "2.0"),
		component("", "b", "2"),
		component("h", "c", "3"),
		component("i", "d", "4"),
	},
}

func TestDiffSymmetry(t *testing.T) {
	for nameA, a := range inventories {
		for nameB, b := range inventories {
			t.Run(nameA+"/"+nameB, func(t *testing.T) {
				forward, backward := Diff(a, b), Diff(b, a)
				assert.ElementsMatch(t, forward.Identifiers(), backward.Identifiers())
				for _, id := range forward.Identifiers() {
					assert.Equal(t, forward.Item(id).Added, backward.Item(id).Removed, id)
					assert.Equal(t, forward.Item(id).Removed, backward.Item(id).Added, id)
					assert.Equal(t, forward.Item(id).Unchanged, backward.Item(id).Unchanged, id)
				}
			})
		}
	}
}

func TestDiffIdentity(t *testing.T) {
	for name, inventory := range inventories {
		t.Run(name, func(t *testing.T) {
			assert.False(t, Diff(inventory, inventory).HasChanges())
		})
	}
}

func TestDiffString(t *testing.T) {
	assert.Equal(t, "--- Diff ---\n- No changes", Diff(nil, nil).String())

	result := Diff(
		[]model.Component{component("g", "a", "1.0"), component("g", "same", "1")},
		[]model.Component{component("g", "a", "2.0"), component("g", "same", "1")},
	)
	assert.Equal(t, "--- Diff ---\ng:a\n  - 1.0\n  + 2.0", result.String())
}

func TestWriteDiff(t *testing.T) {
	result := Diff([]model.Component{component("g", "a", "1.0")}, []model.Component{component("g", "a", "2.0")})

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, result))
	var decoded DiffResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Contains(t, decoded.Diffs, "g:a")
	assert.Equal(t, "2.0", decoded.Diffs["g:a"].Added[0].Version)

	dir := t.TempDir()
	require.NoError(t, WriteFile(filepath.Join(dir, "diff.txt"), result))
	text, err := os.ReadFile(filepath.Join(dir, "diff.txt"))
	require.NoError(t, err)
	assert.Equal(t, result.String()+"\n", string(text))
}
