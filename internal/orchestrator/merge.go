package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Lunexa-AI/right-line-sub002/internal/model"
	"github.com/Lunexa-AI/right-line-sub002/pkg/structurer"
)

// MergeTree combines the structural tree with the OCR node list into one
// annotated tree. Pure and deterministic: the same two inputs always yield
// the same output. The merged tree is sanitized (empty nodes stripped,
// whitespace normalized, every node given a stable id).
func MergeTree(tree []structurer.TreeNode, ocr []structurer.OCRNode) ([]model.ContentNode, error) {
	if len(tree) == 0 {
		return nil, NewMergeError(fmt.Errorf("empty structural tree"))
	}

	spans := make(map[string]structurer.OCRNode, len(ocr))
	for _, node := range ocr {
		if node.NodeID == "" {
			return nil, NewMergeError(fmt.Errorf("ocr node missing node_id"))
		}
		if _, dup := spans[node.NodeID]; dup {
			return nil, NewMergeError(fmt.Errorf("duplicate ocr node %q", node.NodeID))
		}
		spans[node.NodeID] = node
	}

	merged := annotateNodes(tree, spans, "n")
	return sanitizeNodes(merged), nil
}

// annotateNodes copies the structural nodes, attaching the OCR span matched
// by node id. Nodes without a service-assigned id get a path-derived id,
// which is stable because sibling order is preserved.
func annotateNodes(nodes []structurer.TreeNode, spans map[string]structurer.OCRNode, parentID string) []model.ContentNode {
	out := make([]model.ContentNode, 0, len(nodes))
	for i, node := range nodes {
		id := node.NodeID
		if id == "" {
			id = fmt.Sprintf("%s.%d", parentID, i)
		}

		merged := model.ContentNode{
			NodeID: id,
			Type:   node.Type,
			Title:  normalizeWhitespace(node.Title),
		}
		if span, ok := spans[node.NodeID]; ok && node.NodeID != "" {
			merged.Text = normalizeWhitespace(span.Text)
			merged.PageIndex = span.PageIndex
		}
		merged.Children = annotateNodes(node.Children, spans, id)

		out = append(out, merged)
	}
	return out
}

// sanitizeNodes drops nodes carrying neither text, title nor surviving
// children
func sanitizeNodes(nodes []model.ContentNode) []model.ContentNode {
	out := make([]model.ContentNode, 0, len(nodes))
	for _, node := range nodes {
		node.Children = sanitizeNodes(node.Children)
		if node.Text == "" && node.Title == "" && len(node.Children) == 0 {
			continue
		}
		out = append(out, node)
	}
	return out
}

// AssemblePagedText reassembles full text from per-page reads, in ascending
// page order with page markers. The sort key is the page index, so two runs
// over the same pages produce byte-identical output.
func AssemblePagedText(pages []structurer.Page) string {
	sorted := make([]structurer.Page, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PageIndex < sorted[j].PageIndex
	})

	var b strings.Builder
	for i, page := range sorted {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[page %d]\n", page.PageIndex)
		b.WriteString(strings.TrimSpace(page.Text))
	}
	return b.String()
}

// CountNodes returns the total number of nodes in a merged tree
func CountNodes(nodes []model.ContentNode) int {
	count := 0
	for _, node := range nodes {
		count += 1 + CountNodes(node.Children)
	}
	return count
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
