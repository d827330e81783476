package structurer

// Remote job states as reported by the structuring service
const (
	StateUploaded   = "uploaded"
	StateProcessing = "processing"
	StateCompleted  = "completed"
	StateFailed     = "failed"
)

// Artifact kinds available for a completed job
const (
	KindTree     = "tree"
	KindOCRNodes = "ocr"
	KindRawText  = "text"
	KindPages    = "pages"
)

// JobState is the status payload returned by the service for one job
type JobState struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// TreeNode is one node of the service's structural tree
type TreeNode struct {
	NodeID   string     `json:"node_id"`
	Type     string     `json:"type"`
	Title    string     `json:"title,omitempty"`
	Children []TreeNode `json:"children,omitempty"`
}

// OCRNode carries the recognized text span for one structural node
type OCRNode struct {
	NodeID    string `json:"node_id"`
	Text      string `json:"text"`
	PageIndex int    `json:"page_index"`
}

// Page is one page of OCR text, used by the paged full-text fallback
type Page struct {
	PageIndex int    `json:"page_index"`
	Text      string `json:"text"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type treeResponse struct {
	Tree []TreeNode `json:"tree"`
}

type ocrResponse struct {
	Nodes []OCRNode `json:"nodes"`
}

type textResponse struct {
	Text string `json:"text"`
}

type pagesResponse struct {
	Pages []Page `json:"pages"`
}
