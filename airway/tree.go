package airway

import (
	"fmt"
	"sort"
)

// Tree is a whole airway hierarchy: one designated root (the trachea) plus an
// id-indexed branch arena and parent-to-children adjacency. Branches refer to
// each other by id only, never by embedded pointers, so the structure cannot
// form ownership cycles. A Tree is immutable once BuildTree returns; loading
// a new model builds a fresh Tree rather than mutating this one.
type Tree struct {
	rootID   string
	branches map[string]*AirwayBranch
	children map[string][]string
}

// BuildTree assembles a Tree from a flat branch list, taking ownership of the
// branch values. Exactly one branch must claim generation 0; zero or several
// roots fail with ErrInvalidModelData. Each non-root branch's id is appended
// to its parent's child list in input order. The caller supplies each branch
// once; duplicates are not filtered.
func BuildTree(branches []*AirwayBranch) (*Tree, error) {
	t := &Tree{
		branches: make(map[string]*AirwayBranch, len(branches)),
		children: make(map[string][]string),
	}

	for _, b := range branches {
		if b.Generation == 0 {
			if t.rootID != "" {
				return nil, fmt.Errorf("%w: branches %q and %q both claim generation 0",
					ErrInvalidModelData, t.rootID, b.ID)
			}
			t.rootID = b.ID
		}
		t.addBranch(b)
	}

	if t.rootID == "" {
		return nil, fmt.Errorf("%w: no generation-0 root branch", ErrInvalidModelData)
	}

	for _, b := range branches {
		if b.ParentID == "" {
			continue
		}
		t.children[b.ParentID] = append(t.children[b.ParentID], b.ID)
	}

	// Rewrite each branch's child list from the assembled adjacency so the
	// two views never disagree.
	for _, b := range t.branches {
		b.ChildIDs = t.children[b.ID]
	}

	return t, nil
}

// addBranch registers a branch by id. Construction-time only.
func (t *Tree) addBranch(b *AirwayBranch) {
	t.branches[b.ID] = b
}

// Root returns the trachea branch.
func (t *Tree) Root() *AirwayBranch {
	return t.branches[t.rootID]
}

// RootID returns the trachea branch id.
func (t *Tree) RootID() string {
	return t.rootID
}

// FindBranch looks up a branch by id. O(1), never fails.
func (t *Tree) FindBranch(id string) (*AirwayBranch, bool) {
	b, ok := t.branches[id]
	return b, ok
}

// ChildBranches returns the ordered children of a branch, empty when the id
// is unknown or the branch is a leaf.
func (t *Tree) ChildBranches(id string) []*AirwayBranch {
	ids := t.children[id]
	out := make([]*AirwayBranch, 0, len(ids))
	for _, cid := range ids {
		if b, ok := t.branches[cid]; ok {
			out = append(out, b)
		}
	}
	return out
}

// ParentBranch returns the parent of a branch via its stored parent id.
func (t *Tree) ParentBranch(id string) (*AirwayBranch, bool) {
	b, ok := t.branches[id]
	if !ok || b.ParentID == "" {
		return nil, false
	}
	p, ok := t.branches[b.ParentID]
	return p, ok
}

// BranchCount returns the number of registered branches.
func (t *Tree) BranchCount() int {
	return len(t.branches)
}

// BranchIDs returns every branch id in sorted order for deterministic iteration.
func (t *Tree) BranchIDs() []string {
	ids := make([]string, 0, len(t.branches))
	for id := range t.branches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Leaves returns the ids of branches with no children, sorted.
func (t *Tree) Leaves() []string {
	var ids []string
	for id := range t.branches {
		if len(t.children[id]) == 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// MaxGeneration returns the deepest generation present in the tree.
func (t *Tree) MaxGeneration() int {
	max := 0
	for _, b := range t.branches {
		if b.Generation > max {
			max = b.Generation
		}
	}
	return max
}

// PathFromRoot returns the branch ids from the root down to the given branch,
// inclusive. The second return is false when the id is unknown or the parent
// chain does not reach the root.
func (t *Tree) PathFromRoot(id string) ([]string, bool) {
	b, ok := t.branches[id]
	if !ok {
		return nil, false
	}

	var reversed []string
	for {
		reversed = append(reversed, b.ID)
		if b.ID == t.rootID {
			break
		}
		if b.ParentID == "" || len(reversed) > len(t.branches) {
			return nil, false
		}
		parent, ok := t.branches[b.ParentID]
		if !ok {
			return nil, false
		}
		b = parent
	}

	path := make([]string, len(reversed))
	for i, bid := range reversed {
		path[len(reversed)-1-i] = bid
	}
	return path, true
}

// Validate checks the structural invariants that BuildTree does not enforce:
// every non-root parent id must resolve, every branch's generation must be
// exactly one more than its parent's, and every branch must be navigable.
func (t *Tree) Validate() error {
	for id, b := range t.branches {
		if len(b.Points) == 0 {
			return fmt.Errorf("%w: branch %q has no centerline points", ErrInvalidModelData, id)
		}
		if id == t.rootID {
			continue
		}
		parent, ok := t.branches[b.ParentID]
		if !ok {
			return fmt.Errorf("%w: branch %q references unknown parent %q", ErrInvalidModelData, id, b.ParentID)
		}
		if b.Generation != parent.Generation+1 {
			return fmt.Errorf("%w: branch %q has generation %d but parent %q has %d",
				ErrInvalidModelData, id, b.Generation, parent.ID, parent.Generation)
		}
	}
	return nil
}
