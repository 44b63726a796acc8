package scene

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndAdd(t *testing.T) {
	m := NewMemory()
	shape := Shape{Columns: 2, Rows: 2, Slices: 1, Components: 2}
	labels := []string{"week0-1", "quarter1"}

	h, err := m.CreateVolumeNode(make([]float32, 8), shape, labels)
	require.NoError(t, err)
	assert.Empty(t, m.Nodes(), "created nodes are not in the scene until added")

	require.NoError(t, m.AddToScene(h))
	require.NoError(t, m.SetName(h, "DevelopmentalAtlas"))

	nodes := m.Nodes()
	require.Len(t, nodes, 1)
	n := nodes[0]
	assert.Equal(t, "DevelopmentalAtlas", n.Name)
	assert.True(t, n.InScene)
	assert.Equal(t, shape, n.Shape)
	assert.Equal(t, labels, n.Labels)
	assert.Equal(t, "'week0-1', 'quarter1'", n.Attributes[FrameLabelsAttribute])

	found, ok := m.FindByName("DevelopmentalAtlas")
	require.True(t, ok)
	assert.Equal(t, h, found.Handle)
}

func TestCreateVolumeNodeValidation(t *testing.T) {
	m := NewMemory()

	_, err := m.CreateVolumeNode(make([]float32, 3), Shape{2, 2, 1, 1}, nil)
	assert.Error(t, err, "buffer length must match shape")

	_, err = m.CreateVolumeNode(nil, Shape{0, 2, 1, 1}, nil)
	assert.Error(t, err, "extents must be positive")

	_, err = m.CreateVolumeNode(make([]float32, 6), Shape{1, 1, 2, 3}, []string{"a"})
	assert.Error(t, err, "labels must match component count")
}

func TestAddToSceneErrors(t *testing.T) {
	m := NewMemory()
	assert.ErrorIs(t, m.AddToScene("missing"), ErrUnknownNode)
	assert.ErrorIs(t, m.SetName("missing", "x"), ErrUnknownNode)

	h, err := m.CreateVolumeNode(make([]float32, 1), Shape{1, 1, 1, 1}, nil)
	require.NoError(t, err)
	require.NoError(t, m.AddToScene(h))
	assert.ErrorIs(t, m.AddToScene(h), ErrAlreadyInScene)
}

func TestNodeReturnsCopy(t *testing.T) {
	m := NewMemory()
	h, err := m.CreateVolumeNode(make([]float32, 2), Shape{1, 1, 1, 2}, []string{"a", "b"})
	require.NoError(t, err)

	n, ok := m.Node(h)
	require.True(t, ok)
	n.Labels[0] = "changed"
	n.Attributes["extra"] = "x"

	again, _ := m.Node(h)
	assert.Equal(t, []string{"a", "b"}, again.Labels)
	assert.Equal(t, []string{FrameLabelsAttribute}, again.AttributeKeys())
}

func TestConcurrentCreate(t *testing.T) {
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := m.CreateVolumeNode(make([]float32, 1), Shape{1, 1, 1, 1}, nil)
			if err == nil {
				err = m.AddToScene(h)
			}
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, m.Nodes(), 16)
}
