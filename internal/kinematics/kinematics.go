// Package kinematics holds the robot's kinematic chain: a fixed tree of
// rigid links (camera mounts, wheel axles, the IMU mount) loaded once at
// startup from the `--layout` JSON file (§6, §9). Cyclic references are
// avoided the way §9 requires: nodes live in a flat arena and refer to
// their parent by index, never by a shared handle, grounded on
// original_source/lunabotics/lunabot/src/apps/production.rs's
// NodeSerde/ChainBuilder::from(...).finish_static() load path and
// generalized from simple_motion's Arc<[NodeData]> arena to a plain slice.
package kinematics

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"lunabot/internal/spatial"
)

// ErrUnknownParent is returned when a node names a parent that has not
// appeared earlier in the layout file.
var ErrUnknownParent = errors.New("kinematics: node references unknown parent")

// ErrDuplicateName is returned when two nodes in a layout share a name.
var ErrDuplicateName = errors.New("kinematics: duplicate node name")

// nodeLayout is the on-disk shape of one arena entry: a fixed local
// transform relative to its parent. simple_motion supports linear/one-axis/
// free translation and rotation restrictions (joint actuation); those are
// an external collaborator's concern (the actuator firmware moves joints),
// so the loader here only needs the fixed-frame case the perception and
// planning cores consume.
type nodeLayout struct {
	Name        string     `json:"name"`
	Parent      string     `json:"parent"` // empty for the root
	Translation [3]float64 `json:"translation"`
	// Rotation is a quaternion [w, x, y, z]; omitted means identity.
	Rotation *[4]float64 `json:"rotation,omitempty"`
}

// Node is one arena entry: a local transform plus an index parent pointer
// (or -1 for the root), per §9's "arena, index not shared handles."
type Node struct {
	Name      string
	ParentIdx int
	Local     spatial.Isometry
}

// Chain is the loaded kinematic tree: an arena of Node plus a name index.
type Chain struct {
	nodes  []Node
	byName map[string]int
}

// LoadLayout reads and parses the JSON kinematic-chain description named by
// the mandatory `--layout` CLI flag (§6).
func LoadLayout(path string) (*Chain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kinematics: read layout %s: %w", path, err)
	}
	var raw []nodeLayout
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("kinematics: parse layout %s: %w", path, err)
	}
	return buildChain(raw)
}

func buildChain(raw []nodeLayout) (*Chain, error) {
	c := &Chain{
		nodes:  make([]Node, 0, len(raw)),
		byName: make(map[string]int, len(raw)),
	}
	for _, n := range raw {
		if _, dup := c.byName[n.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, n.Name)
		}
		parentIdx := -1
		if n.Parent != "" {
			idx, ok := c.byName[n.Parent]
			if !ok {
				return nil, fmt.Errorf("%w: node %q wants parent %q", ErrUnknownParent, n.Name, n.Parent)
			}
			parentIdx = idx
		}
		rot := quat.Number{Real: 1}
		if n.Rotation != nil {
			rot = quat.Number{Real: n.Rotation[0], Imag: n.Rotation[1], Jmag: n.Rotation[2], Kmag: n.Rotation[3]}
		}
		node := Node{
			Name:      n.Name,
			ParentIdx: parentIdx,
			Local: spatial.Isometry{
				Translation: r3.Vec{X: n.Translation[0], Y: n.Translation[1], Z: n.Translation[2]},
				Rotation:    rot,
			},
		}
		c.byName[n.Name] = len(c.nodes)
		c.nodes = append(c.nodes, node)
	}
	return c, nil
}

// NodeIndex returns the arena index of the node named name, or false if no
// such node was loaded (production.rs's get_node_with_name, used there to
// resolve a camera's mount link).
func (c *Chain) NodeIndex(name string) (int, bool) {
	idx, ok := c.byName[name]
	return idx, ok
}

// Len reports the number of nodes in the chain.
func (c *Chain) Len() int { return len(c.nodes) }

// WorldTransform composes idx's local transform with every ancestor's,
// walking parent pointers up to the root (ParentIdx == -1). Chasing
// indices rather than shared handles means this never risks a cycle: a
// malformed layout can at worst reference an index that was itself built
// from an earlier, already-resolved node.
func (c *Chain) WorldTransform(idx int) spatial.Isometry {
	if idx < 0 || idx >= len(c.nodes) {
		return spatial.Identity()
	}
	chain := make([]int, 0, 4)
	for i := idx; i != -1; i = c.nodes[i].ParentIdx {
		chain = append(chain, i)
	}
	// chain is leaf-to-root; compose root-to-leaf so each child's local
	// transform is expressed in its parent's already-resolved frame.
	out := spatial.Identity()
	for i := len(chain) - 1; i >= 0; i-- {
		out = compose(out, c.nodes[chain[i]].Local)
	}
	return out
}

// compose returns the isometry equivalent to applying b in a's frame,
// i.e. a followed by b.
func compose(a, b spatial.Isometry) spatial.Isometry {
	rotated := a.RotateVector(b.Translation)
	return spatial.Isometry{
		Translation: r3.Add(a.Translation, rotated),
		Rotation:    quat.Mul(a.Rotation, b.Rotation),
	}
}
