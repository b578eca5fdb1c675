package registry

import (
	"fmt"
	"sort"

	"github.com/marmos91/dittofolders/pkg/folder"
)

// RegisterTree adds a folder tree. Virtual trees must name an already
// registered real tree.
func (r *Registry) RegisterTree(tree folder.Tree) error {
	if tree.ID == "" {
		return fmt.Errorf("cannot register tree with empty id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.trees[tree.ID]; exists {
		return fmt.Errorf("tree %q already registered", tree.ID)
	}

	if tree.Virtual {
		realTree, exists := r.trees[tree.RealTreeID]
		if !exists {
			return fmt.Errorf("tree %q: real tree %q not found", tree.ID, tree.RealTreeID)
		}
		if realTree.Virtual {
			return fmt.Errorf("tree %q: tree %q is not a real tree", tree.ID, tree.RealTreeID)
		}
	} else {
		tree.RealTreeID = tree.ID
	}

	r.trees[tree.ID] = tree
	return nil
}

// Tree retrieves a tree by id. Unknown trees yield an ErrUnknownTree error.
func (r *Registry) Tree(id string) (folder.Tree, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tree, exists := r.trees[id]
	if !exists {
		return folder.Tree{}, folder.NewError(folder.ErrUnknownTree, id, "", "tree %q not found", id)
	}
	return tree, nil
}

// TreeExists reports whether a tree with the given id is registered.
func (r *Registry) TreeExists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.trees[id]
	return exists
}

// Trees returns all registered trees ordered by id.
func (r *Registry) Trees() []folder.Tree {
	r.mu.RLock()
	defer r.mu.RUnlock()

	trees := make([]folder.Tree, 0, len(r.trees))
	for _, t := range r.trees {
		trees = append(trees, t)
	}
	sort.Slice(trees, func(i, j int) bool { return trees[i].ID < trees[j].ID })
	return trees
}
