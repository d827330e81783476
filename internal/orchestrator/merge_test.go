package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lunexa-AI/right-line-sub002/pkg/structurer"
)

func sampleTree() []structurer.TreeNode {
	return []structurer.TreeNode{
		{
			NodeID: "part-1",
			Type:   "part",
			Title:  "Part I  Preliminary",
			Children: []structurer.TreeNode{
				{NodeID: "sec-1", Type: "section", Title: "Short title"},
				{NodeID: "sec-2", Type: "section", Title: "Interpretation"},
			},
		},
		{NodeID: "empty-part", Type: "part"},
	}
}

func sampleOCR() []structurer.OCRNode {
	return []structurer.OCRNode{
		{NodeID: "sec-1", Text: "This Act may be cited as  the Labour Act.", PageIndex: 0},
		{NodeID: "sec-2", Text: "In this Act—\n\"employee\" means...", PageIndex: 1},
	}
}

func TestMergeTreeAnnotatesAndSanitizes(t *testing.T) {
	merged, err := MergeTree(sampleTree(), sampleOCR())
	require.NoError(t, err)

	// the empty part is stripped
	require.Len(t, merged, 1)
	part := merged[0]
	assert.Equal(t, "part-1", part.NodeID)
	assert.Equal(t, "Part I Preliminary", part.Title)

	require.Len(t, part.Children, 2)
	assert.Equal(t, "This Act may be cited as the Labour Act.", part.Children[0].Text)
	assert.Equal(t, 0, part.Children[0].PageIndex)
	assert.Equal(t, `In this Act— "employee" means...`, part.Children[1].Text)
	assert.Equal(t, 1, part.Children[1].PageIndex)
}

func TestMergeTreeIsDeterministic(t *testing.T) {
	first, err := MergeTree(sampleTree(), sampleOCR())
	require.NoError(t, err)
	second, err := MergeTree(sampleTree(), sampleOCR())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMergeTreeAssignsStableIDs(t *testing.T) {
	tree := []structurer.TreeNode{
		{Type: "part", Title: "Untagged part", Children: []structurer.TreeNode{
			{Type: "section", Title: "Untagged section"},
		}},
	}

	merged, err := MergeTree(tree, nil)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "n.0", merged[0].NodeID)
	require.Len(t, merged[0].Children, 1)
	assert.Equal(t, "n.0.0", merged[0].Children[0].NodeID)

	again, err := MergeTree(tree, nil)
	require.NoError(t, err)
	assert.Equal(t, merged, again)
}

func TestMergeTreeRejectsEmptyTree(t *testing.T) {
	_, err := MergeTree(nil, sampleOCR())
	require.Error(t, err)
	assert.Equal(t, KindMerge, KindOf(err))
}

func TestMergeTreeRejectsMalformedOCR(t *testing.T) {
	_, err := MergeTree(sampleTree(), []structurer.OCRNode{{Text: "no id"}})
	require.Error(t, err)
	assert.Equal(t, KindMerge, KindOf(err))

	_, err = MergeTree(sampleTree(), []structurer.OCRNode{
		{NodeID: "sec-1", Text: "a"},
		{NodeID: "sec-1", Text: "b"},
	})
	require.Error(t, err)
	assert.Equal(t, KindMerge, KindOf(err))
}

func TestAssemblePagedTextOrdersByPageIndex(t *testing.T) {
	pages := []structurer.Page{
		{PageIndex: 2, Text: "third page"},
		{PageIndex: 0, Text: "first page\n"},
		{PageIndex: 1, Text: "  second page"},
	}

	text := AssemblePagedText(pages)
	expected := "[page 0]\nfirst page\n\n[page 1]\nsecond page\n\n[page 2]\nthird page"
	assert.Equal(t, expected, text)

	// byte-identical regardless of input order
	shuffled := []structurer.Page{pages[1], pages[2], pages[0]}
	assert.Equal(t, text, AssemblePagedText(shuffled))
}

func TestCountNodes(t *testing.T) {
	merged, err := MergeTree(sampleTree(), sampleOCR())
	require.NoError(t, err)
	assert.Equal(t, 3, CountNodes(merged))
	assert.Equal(t, 0, CountNodes(nil))
}
