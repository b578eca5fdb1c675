package performer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittofolders/pkg/folder"
)

func node(id, name string, children ...*treeNode) *treeNode {
	return &treeNode{ID: id, Name: name, Children: children}
}

func TestRemapTree(t *testing.T) {
	before := node("INBOX/Work", "Work",
		node("INBOX/Work/Q1", "Q1", node("INBOX/Work/Q1/Old", "Old")),
		node("INBOX/Work/Misc", "Misc"),
		node("INBOX/Work/Gone", "Gone"),
	)
	after := node("Archive/Work", "Work",
		node("Archive/Work/q1", "q1", node("Archive/Work/q1/Old", "Old")),
		node("Archive/Work/Misc", "Misc"),
	)

	assert.Equal(t, map[string]string{
		"INBOX/Work":        "Archive/Work",
		"INBOX/Work/Q1":     "Archive/Work/q1",
		"INBOX/Work/Q1/Old": "Archive/Work/q1/Old",
		"INBOX/Work/Misc":   "Archive/Work/Misc",
	}, remapTree(before, after))

	assert.Empty(t, remapTree(nil, after))
}

func TestRemapTreePrefersExactName(t *testing.T) {
	before := node("a", "Root", node("a/x", "Notes"), node("a/y", "notes"))
	after := node("b", "Root", node("b/y", "notes"), node("b/x", "Notes"))

	m := remapTree(before, after)
	assert.Equal(t, "b/x", m["a/x"])
	assert.Equal(t, "b/y", m["a/y"])
}

func TestPostOrderAndIdentity(t *testing.T) {
	tree := node("1", "A", node("2", "B", node("3", "C")), node("4", "D"))

	var order []string
	for _, n := range tree.postOrder() {
		order = append(order, n.ID)
	}
	assert.Equal(t, []string{"3", "2", "4", "1"}, order)

	m := identityMapping(tree)
	assert.Len(t, m, 4)
	assert.True(t, isIdentity(m))
	m["2"] = "20"
	assert.False(t, isIdentity(m))
}

func TestPlanVirtualMove(t *testing.T) {
	tests := []struct {
		v    virtualRelation
		r    realRelation
		want movePlan
		err  bool
	}{
		{virtualUnified, realSame, movePlan{MoveReal: true}, false},
		{virtualUnified, realDifferent, movePlan{CopyReal: true, RecreateVirtual: true}, false},
		{virtualUnified, realNone, movePlan{}, true},
		{virtualSame, realSame, movePlan{MoveReal: true, UpdateVirtual: true}, false},
		{virtualSame, realDifferent, movePlan{CopyReal: true, UpdateVirtual: true}, false},
		{virtualSame, realNone, movePlan{UpdateVirtual: true}, false},
		{virtualDifferent, realSame, movePlan{MoveReal: true, RecreateVirtual: true}, false},
		{virtualDifferent, realDifferent, movePlan{CopyReal: true, RecreateVirtual: true}, false},
		{virtualDifferent, realNone, movePlan{RecreateVirtual: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.v.String()+"/"+tt.r.String(), func(t *testing.T) {
			plan, err := planVirtualMove(tt.v, tt.r)
			if tt.err {
				require.Error(t, err)
				assert.True(t, folder.IsCode(err, folder.ErrMoveNotPermitted))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan)
			assert.False(t, plan.MoveReal && plan.CopyReal)
			assert.False(t, plan.UpdateVirtual && plan.RecreateVirtual)
		})
	}
}
