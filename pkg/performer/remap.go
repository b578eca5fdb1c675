package performer

import (
	"strings"

	"github.com/marmos91/dittofolders/pkg/folder"
)

// treeNode is a snapshot of a folder subtree. Moves that change folder ids
// compare snapshots taken before and after the move to correlate them.
type treeNode struct {
	ID       string
	Name     string
	Folder   *folder.Folder
	Storage  folder.Storage
	Children []*treeNode
}

// postOrder returns the nodes of the subtree, children before parents.
func (n *treeNode) postOrder() []*treeNode {
	var out []*treeNode
	var walk func(*treeNode)
	walk = func(c *treeNode) {
		for _, child := range c.Children {
			walk(child)
		}
		out = append(out, c)
	}
	walk(n)
	return out
}

// remapTree pairs the nodes of two snapshots of the same subtree and returns
// old id -> new id. The roots are paired unconditionally; below them
// children are paired by name, level by level. Nodes without a counterpart
// are left out of the mapping.
func remapTree(before, after *treeNode) map[string]string {
	mapping := make(map[string]string)
	if before == nil || after == nil {
		return mapping
	}

	var pair func(a, b *treeNode)
	pair = func(a, b *treeNode) {
		mapping[a.ID] = b.ID
		byName := make(map[string]*treeNode, len(b.Children))
		for _, c := range b.Children {
			byName[c.Name] = c
		}
		folded := make(map[string]*treeNode, len(b.Children))
		for _, c := range b.Children {
			folded[strings.ToLower(c.Name)] = c
		}
		for _, c := range a.Children {
			if d, ok := byName[c.Name]; ok {
				pair(c, d)
			} else if d, ok := folded[strings.ToLower(c.Name)]; ok {
				pair(c, d)
			}
		}
	}
	pair(before, after)
	return mapping
}

// identityMapping maps every node of the snapshot onto itself.
func identityMapping(n *treeNode) map[string]string {
	mapping := make(map[string]string)
	for _, c := range n.postOrder() {
		mapping[c.ID] = c.ID
	}
	return mapping
}

// virtualRelation classifies the virtual storages involved in a move.
type virtualRelation int

const (
	// virtualSame: source entry and destination parent share one virtual
	// storage.
	virtualSame virtualRelation = iota
	// virtualDifferent: the entry has to change virtual storage.
	virtualDifferent
	// virtualUnified: the folder's virtual entry is its real folder; one
	// storage serves both trees.
	virtualUnified
)

func (v virtualRelation) String() string {
	switch v {
	case virtualDifferent:
		return "different"
	case virtualUnified:
		return "unified"
	default:
		return "same"
	}
}

// realRelation classifies the real storages involved in a move.
type realRelation int

const (
	// realSame: the real folder stays in its real storage.
	realSame realRelation = iota
	// realDifferent: the real folder has to change real storage.
	realDifferent
	// realNone: the folder or the destination has no real counterpart.
	realNone
)

func (r realRelation) String() string {
	switch r {
	case realDifferent:
		return "different"
	case realNone:
		return "none"
	default:
		return "same"
	}
}

// movePlan lists the steps of a move in a virtual tree, executed in field
// order.
type movePlan struct {
	// MoveReal moves the real folder within its storage.
	MoveReal bool
	// CopyReal copies the real subtree into the destination storage and
	// deletes the source.
	CopyReal bool
	// UpdateVirtual re-points the virtual entry within its storage.
	UpdateVirtual bool
	// RecreateVirtual deletes the virtual entries from the source storage
	// and recreates them in the destination storage.
	RecreateVirtual bool
}

// planVirtualMove decides the steps of a virtual-tree move from the
// relation of the virtual and the real storages.
func planVirtualMove(v virtualRelation, r realRelation) (movePlan, error) {
	switch v {
	case virtualUnified:
		switch r {
		case realSame:
			return movePlan{MoveReal: true}, nil
		case realDifferent:
			return movePlan{CopyReal: true, RecreateVirtual: true}, nil
		default:
			return movePlan{}, folder.NewError(folder.ErrMoveNotPermitted, "", "",
				"folder cannot leave its storage without a real destination")
		}
	case virtualSame:
		switch r {
		case realSame:
			return movePlan{MoveReal: true, UpdateVirtual: true}, nil
		case realDifferent:
			return movePlan{CopyReal: true, UpdateVirtual: true}, nil
		default:
			return movePlan{UpdateVirtual: true}, nil
		}
	default:
		switch r {
		case realSame:
			return movePlan{MoveReal: true, RecreateVirtual: true}, nil
		case realDifferent:
			return movePlan{CopyReal: true, RecreateVirtual: true}, nil
		default:
			return movePlan{RecreateVirtual: true}, nil
		}
	}
}

// snapshot loads the subtree rooted at id.
func (o *operation) snapshot(treeID string, s folder.Storage, id string) (*treeNode, error) {
	return o.snapshotAt(treeID, s, id, 0)
}

func (o *operation) snapshotAt(treeID string, s folder.Storage, id string, depth int) (*treeNode, error) {
	if depth >= maxDepth {
		return nil, folder.NewError(folder.ErrUnexpected, treeID, id, "subtree exceeds %d levels", maxDepth)
	}
	f, err := s.GetFolder(o.ctx, treeID, id, o.params)
	if err != nil {
		return nil, err
	}
	node := &treeNode{ID: f.ID, Name: f.Name, Folder: f, Storage: s}

	ids, err := o.subfolderIDs(treeID, f)
	if err != nil {
		return nil, err
	}
	for _, cid := range ids {
		cs, err := o.storageFor(treeID, cid)
		if err != nil {
			return nil, err
		}
		child, err := o.snapshotAt(treeID, cs, cid, depth+1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// deleteSnapshot deletes every node of the snapshot, children first.
func (o *operation) deleteSnapshot(treeID string, n *treeNode) error {
	for _, c := range n.postOrder() {
		if err := c.Storage.DeleteFolder(o.ctx, treeID, c.ID, o.params); err != nil {
			return err
		}
	}
	return nil
}

// copySnapshot recreates the snapshot in dst below parentID, parents first.
// The root takes name. Ids are assigned by dst unless keepIDs is set; then
// every node keeps its id, or takes mapping's id for it when present.
func (o *operation) copySnapshot(treeID string, n *treeNode, dst folder.Storage, parentID, name string, mapping map[string]string, keepIDs bool) (string, error) {
	var create func(c *treeNode, parentID, name string) (string, error)
	create = func(c *treeNode, parentID, name string) (string, error) {
		f := c.Folder.Clone()
		f.ID = ""
		if keepIDs {
			f.ID = c.ID
			if id, ok := mapping[c.ID]; ok {
				f.ID = id
			}
		}
		f.TreeID = treeID
		f.ParentID = parentID
		f.Name = name
		f.SubfolderIDs = nil
		f.Default = false
		if err := dst.CreateFolder(o.ctx, f, o.params); err != nil {
			return "", err
		}
		for _, child := range c.Children {
			if _, err := create(child, f.ID, child.Name); err != nil {
				return "", err
			}
		}
		return f.ID, nil
	}
	return create(n, parentID, name)
}
