package scene

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
)

func TestAddChildSetsParent(t *testing.T) {
	n := NewNode("n")
	c := NewNode("c")
	require.NoError(t, n.AddChild(c))

	assert.Same(t, n, c.Parent())
	assert.Contains(t, n.Children(), c)

	// re-entrant add is a no-op
	require.NoError(t, n.AddChild(c))
	assert.Len(t, n.Children(), 1)
}

func TestAddChildWithOtherParentFailsWithoutMutation(t *testing.T) {
	n := NewNode("n")
	n2 := NewNode("n2")
	c := NewNode("c")
	require.NoError(t, n.AddChild(c))

	err := n2.AddChild(c)
	assert.True(t, errors.Is(err, core.ErrNodeAlreadyParented))
	assert.Same(t, n, c.Parent())
	assert.Equal(t, []*Node{c}, n.Children())
	assert.Empty(t, n2.Children())

	require.NoError(t, n.RemoveChild(c))
	require.NoError(t, n2.AddChild(c))
	assert.Same(t, n2, c.Parent())
}

func TestAddChildRejectsCyclesAndRoots(t *testing.T) {
	a := NewNode("a")
	b := NewNode("b")
	require.NoError(t, a.AddChild(b))

	assert.True(t, errors.Is(b.AddChild(a), core.ErrNodeCycle))
	assert.True(t, errors.Is(a.AddChild(a), core.ErrNodeCycle))

	s := NewScene("s")
	assert.True(t, errors.Is(a.AddChild(s.Root()), core.ErrNodeIsRoot))
}

func TestAddComponent(t *testing.T) {
	n := NewNode("n")
	tr := NewTransform()
	require.NoError(t, n.AddComponent(tr))
	require.NoError(t, n.AddComponent(tr))
	assert.Len(t, n.Components(), 1)

	err := n.AddComponent(NewTransform())
	assert.True(t, errors.Is(err, core.ErrTransformExists))

	other := NewNode("other")
	err = other.AddComponent(tr)
	assert.True(t, errors.Is(err, core.ErrComponentOwned))
	assert.False(t, other.HasTransform())
}

func TestTransformWithoutComponentIsAnError(t *testing.T) {
	n := NewNode("n")
	tr, err := n.Transform()
	assert.Nil(t, tr)
	assert.True(t, errors.Is(err, core.ErrNoTransform))
}

func buildTree() (*Node, map[string]*Node) {
	nodes := map[string]*Node{}
	for _, name := range []string{"root", "a", "b", "a1", "a2", "b1"} {
		nodes[name] = NewNode(name)
	}
	_ = nodes["root"].AddChild(nodes["a"])
	_ = nodes["root"].AddChild(nodes["b"])
	_ = nodes["a"].AddChild(nodes["a1"])
	_ = nodes["a"].AddChild(nodes["a2"])
	_ = nodes["b"].AddChild(nodes["b1"])
	return nodes["root"], nodes
}

func isAncestor(a, n *Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p == a {
			return true
		}
	}
	return false
}

func TestTraversePreOrder(t *testing.T) {
	root, nodes := buildTree()
	var order []string
	root.TraversePreOrder(func(n *Node) { order = append(order, n.Name) })

	assert.Equal(t, []string{"root", "a", "a1", "a2", "b", "b1"}, order)
	assert.Len(t, order, len(nodes))

	index := map[string]int{}
	for i, name := range order {
		index[name] = i
	}
	for _, n := range nodes {
		for _, m := range nodes {
			if isAncestor(n, m) {
				assert.Less(t, index[n.Name], index[m.Name])
			}
		}
	}
}

func TestTraversePostOrder(t *testing.T) {
	root, _ := buildTree()
	var order []string
	root.TraversePostOrder(func(n *Node) { order = append(order, n.Name) })
	assert.Equal(t, []string{"a1", "a2", "a", "b1", "b", "root"}, order)
}

func TestMutationDuringTraversalIsRejected(t *testing.T) {
	root, nodes := buildTree()
	var errs []error
	root.TraversePreOrder(func(n *Node) {
		if n == nodes["a1"] {
			errs = append(errs, n.AddChild(NewNode("late")))
			errs = append(errs, nodes["b"].RemoveChild(nodes["b1"]))
		}
	})
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.True(t, errors.Is(err, core.ErrTreeLocked))
	}
	assert.NoError(t, nodes["a1"].AddChild(NewNode("after")))
}

func TestWorldTransformComposition(t *testing.T) {
	root := NewNode("root")
	require.NoError(t, root.AddComponent(NewTransform()))
	a := NewNode("a")
	require.NoError(t, a.AddComponent(NewTransformAt(math.NewVec3(1, 0, 0))))
	b := NewNode("b")
	require.NoError(t, b.AddComponent(NewTransformAt(math.NewVec3(0, 1, 0))))
	require.NoError(t, root.AddChild(a))
	require.NoError(t, a.AddChild(b))

	assert.True(t, b.WorldMatrix().Translation().Compare(math.NewVec3(1, 1, 0), 1e-6))
}

func TestWorldTransformAppliesParentRotation(t *testing.T) {
	parent := NewNode("parent")
	pt := NewTransform()
	pt.Rotation = math.NewQuatFromAxisAngle(math.NewVec3Up(), math.DegToRad(90))
	require.NoError(t, parent.AddComponent(pt))

	child := NewNode("child")
	require.NoError(t, child.AddComponent(NewTransformAt(math.NewVec3(1, 0, 0))))
	require.NoError(t, parent.AddChild(child))

	// nodes without a transform contribute identity
	mid := NewNode("mid")
	require.NoError(t, parent.RemoveChild(child))
	require.NoError(t, parent.AddChild(mid))
	require.NoError(t, mid.AddChild(child))

	got := child.WorldMatrix().Translation()
	assert.True(t, got.Compare(math.NewVec3(0, 0, -1), 1e-5), "got %v", got)

	// computed lazily: moving the parent is seen immediately
	pt.Position = math.NewVec3(0, 2, 0)
	got = child.WorldMatrix().Translation()
	assert.True(t, got.Compare(math.NewVec3(0, 2, -1), 1e-5), "got %v", got)
}

type countingComponent struct {
	componentBase
	log *[]string
}

func (c *countingComponent) Kind() ComponentKind { return KindSpotLight }

func (c *countingComponent) Update(deltaTime float64) {
	*c.log = append(*c.log, c.node.Name)
}

func TestUpdateIsPreOrder(t *testing.T) {
	root, nodes := buildTree()
	var log []string
	for _, name := range []string{"b1", "a2", "root", "a"} {
		require.NoError(t, nodes[name].AddComponent(&countingComponent{log: &log}))
	}
	root.Update(0.016)
	assert.Equal(t, []string{"root", "a", "a2", "b1"}, log)
}

func TestGetComponentInChildren(t *testing.T) {
	root, nodes := buildTree()
	cam := NewPerspectiveCamera(1, 1, 0.1, 10)
	require.NoError(t, nodes["b1"].AddComponent(cam))
	first := NewDirectionalLight(math.NewVec3One(), 1)
	second := NewDirectionalLight(math.NewVec3One(), 2)
	require.NoError(t, nodes["a2"].AddComponent(first))
	require.NoError(t, nodes["b"].AddComponent(second))

	c, ok := root.GetComponentInChildren(KindCamera)
	require.True(t, ok)
	assert.Same(t, cam, c)

	_, ok = root.GetComponent(KindCamera)
	assert.False(t, ok)

	l, ok := ComponentInChildren[*DirectionalLight](root)
	require.True(t, ok)
	assert.Same(t, first, l)

	_, ok = ComponentOf[*MeshComponent](root)
	assert.False(t, ok)
}

func TestFindAndDestroy(t *testing.T) {
	root, nodes := buildTree()
	assert.Same(t, nodes["a2"], root.Find("a2"))
	assert.Nil(t, root.Find("missing"))

	tr := NewTransform()
	require.NoError(t, nodes["a1"].AddComponent(tr))

	require.NoError(t, nodes["a"].Destroy())
	assert.Nil(t, nodes["a"].Parent())
	assert.Equal(t, []*Node{nodes["b"]}, root.Children())
	assert.Nil(t, tr.Node())
	assert.Nil(t, nodes["a1"].Parent())
}
