package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lunexa-AI/right-line-sub002/internal/config"
	"github.com/Lunexa-AI/right-line-sub002/internal/model"
	"github.com/Lunexa-AI/right-line-sub002/pkg/structurer"
)

// opLog records operations across fakes so tests can assert ordering
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(op string) {
	l.mu.Lock()
	l.ops = append(l.ops, op)
	l.mu.Unlock()
}

func (l *opLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ops...)
}

func (l *opLog) indexOf(op string) int {
	for i, o := range l.snapshot() {
		if o == op {
			return i
		}
	}
	return -1
}

// gauge tracks the high-water mark of concurrent calls
type gauge struct {
	mu  sync.Mutex
	cur int
	max int
}

func (g *gauge) enter() {
	g.mu.Lock()
	g.cur++
	if g.cur > g.max {
		g.max = g.cur
	}
	g.mu.Unlock()
}

func (g *gauge) exit() {
	g.mu.Lock()
	g.cur--
	g.mu.Unlock()
}

// fakeService scripts the remote structuring service per source filename
type fakeService struct {
	mu          sync.Mutex
	log         *opLog
	submitErrs  map[string]error
	statusPlan  map[string][]structurer.JobState
	rawTextErrs map[string]bool
	emptyRaw    map[string]bool
	pages       map[string][]structurer.Page
	treeCalls   map[string]int
	statusCalls map[string]int
	idToFile    map[string]string
	nextID      int
	submitGauge gauge
	statusGauge gauge
	stepDelay   time.Duration
}

func newFakeService(log *opLog) *fakeService {
	return &fakeService{
		log:         log,
		submitErrs:  make(map[string]error),
		statusPlan:  make(map[string][]structurer.JobState),
		rawTextErrs: make(map[string]bool),
		emptyRaw:    make(map[string]bool),
		pages:       make(map[string][]structurer.Page),
		treeCalls:   make(map[string]int),
		statusCalls: make(map[string]int),
		idToFile:    make(map[string]string),
		stepDelay:   time.Millisecond,
	}
}

func (f *fakeService) Submit(ctx context.Context, filename string, data []byte) (string, error) {
	f.submitGauge.enter()
	time.Sleep(f.stepDelay)
	f.submitGauge.exit()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.log.add("submit:" + filename)
	if err := f.submitErrs[filename]; err != nil {
		return "", err
	}

	f.nextID++
	id := fmt.Sprintf("ext-%d", f.nextID)
	f.idToFile[id] = filename
	return id, nil
}

func (f *fakeService) GetStatus(ctx context.Context, jobID string) (*structurer.JobState, error) {
	f.statusGauge.enter()
	time.Sleep(f.stepDelay)
	f.statusGauge.exit()

	f.mu.Lock()
	defer f.mu.Unlock()

	file := f.idToFile[jobID]
	f.log.add("status:" + file)
	f.statusCalls[file]++

	plan := f.statusPlan[file]
	if len(plan) == 0 {
		return &structurer.JobState{Status: structurer.StateCompleted}, nil
	}

	idx := f.statusCalls[file] - 1
	if idx >= len(plan) {
		idx = len(plan) - 1
	}
	state := plan[idx]
	return &state, nil
}

func (f *fakeService) FetchTree(ctx context.Context, jobID string) ([]structurer.TreeNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file := f.idToFile[jobID]
	f.treeCalls[file]++

	return []structurer.TreeNode{
		{
			NodeID: "root",
			Type:   "act",
			Title:  "Act " + strings.TrimSuffix(file, ".pdf"),
			Children: []structurer.TreeNode{
				{NodeID: "s1", Type: "section", Title: "Section 1"},
			},
		},
	}, nil
}

func (f *fakeService) FetchOCRNodes(ctx context.Context, jobID string) ([]structurer.OCRNode, error) {
	f.mu.Lock()
	file := f.idToFile[jobID]
	f.mu.Unlock()

	return []structurer.OCRNode{
		{NodeID: "s1", Text: "Body of " + file, PageIndex: 0},
	}, nil
}

func (f *fakeService) FetchRawText(ctx context.Context, jobID string) (string, error) {
	f.mu.Lock()
	file := f.idToFile[jobID]
	f.mu.Unlock()

	if f.rawTextErrs[file] {
		return "", errors.New("API error: status code 503")
	}
	if f.emptyRaw[file] {
		return "", nil
	}
	return "Raw text of " + file, nil
}

func (f *fakeService) FetchPages(ctx context.Context, jobID string) ([]structurer.Page, error) {
	f.mu.Lock()
	file := f.idToFile[jobID]
	f.mu.Unlock()

	if pages, ok := f.pages[file]; ok {
		return pages, nil
	}
	return []structurer.Page{{PageIndex: 0, Text: "Page text of " + file}}, nil
}

// fakeStore is an in-memory object store
type fakeStore struct {
	mu      sync.Mutex
	log     *opLog
	objects map[string][]byte
}

func newFakeStore(log *opLog) *fakeStore {
	return &fakeStore{log: log, objects: make(map[string][]byte)}
}

func (f *fakeStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such object: %s", key)
	}
	return data, nil
}

func (f *fakeStore) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.log.add("put:" + key)
	f.objects[key] = data
	return nil
}

func (f *fakeStore) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeStore) TestConnection(ctx context.Context) error { return nil }

func (f *fakeStore) keysWithPrefix(prefix string) []string {
	keys, _ := f.ListObjects(context.Background(), prefix)
	return keys
}

// fakeEvents counts emitted events
type fakeEvents struct {
	mu     sync.Mutex
	docs   int
	runs   int
	docIDs []string
}

func (f *fakeEvents) DocumentIngested(doc *model.ParentDocument) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs++
	f.docIDs = append(f.docIDs, doc.DocID)
}

func (f *fakeEvents) RunCompleted(stats *model.RunStats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
}

func sourceKeys(n int) []string {
	keys := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		keys = append(keys, fmt.Sprintf("sources/doc-%d.pdf", i))
	}
	return keys
}

func seedSources(store *fakeStore, keys []string) {
	for _, key := range keys {
		store.objects[key] = []byte("%PDF-1.7 " + key)
	}
}

func testConfig() config.IngestConfig {
	return config.IngestConfig{
		BatchSize:            2,
		MaxConcurrentUploads: 3,
		MaxConcurrentPolls:   4,
		PollIntervalMS:       1,
		MaxPolls:             5,
	}
}

func TestEngineRunWithOneSubmissionFailure(t *testing.T) {
	log := &opLog{}
	svc := newFakeService(log)
	store := newFakeStore(log)
	events := &fakeEvents{}

	keys := sourceKeys(5)
	seedSources(store, keys)
	svc.submitErrs["doc-3.pdf"] = errors.New("API error: status code 500")

	engine := NewEngine(svc, store, testConfig(), Options{
		Events:       events,
		OutputPrefix: "corpus/",
	})

	stats, err := engine.Run(context.Background(), keys)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, 4, stats.Submitted)
	assert.Equal(t, 4, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.Documents, 5)

	var failure model.DocumentOutcome
	for _, doc := range stats.Documents {
		if doc.SourceKey == "sources/doc-3.pdf" {
			failure = doc
		}
	}
	assert.Equal(t, string(model.StatusFailed), failure.Status)
	assert.Contains(t, failure.Error, KindSubmission)
	assert.Contains(t, failure.Error, "status code 500")
	assert.Empty(t, failure.DocID)

	require.NotNil(t, stats.Manifest)
	assert.Equal(t, 4, stats.Manifest.DocumentCount)
	assert.Equal(t, model.ProcessingMethod, stats.Manifest.ProcessingMethod)
	assert.Equal(t, 4, stats.Manifest.DocTypes["act"])
	assert.Positive(t, stats.Manifest.TotalTreeNodes)
	assert.Positive(t, stats.Manifest.TotalTextChars)

	assert.Len(t, store.keysWithPrefix("corpus/doc_"), 4)
	assert.Len(t, store.keysWithPrefix("corpus/manifest-"), 1)

	assert.Equal(t, 4, events.docs)
	assert.Equal(t, 1, events.runs)
}

func TestEngineStrictBatchSequencing(t *testing.T) {
	log := &opLog{}
	svc := newFakeService(log)
	store := newFakeStore(log)

	keys := sourceKeys(4)
	seedSources(store, keys)

	engine := NewEngine(svc, store, testConfig(), Options{OutputPrefix: "corpus/"})
	_, err := engine.Run(context.Background(), keys)
	require.NoError(t, err)

	// every submission of batch 2 happens after batch 1's aggregation puts
	batch1Puts := []int{
		log.indexOf("put:corpus/" + model.DocIDForSource("sources/doc-1.pdf") + ".json"),
		log.indexOf("put:corpus/" + model.DocIDForSource("sources/doc-2.pdf") + ".json"),
	}
	batch2Submits := []int{
		log.indexOf("submit:doc-3.pdf"),
		log.indexOf("submit:doc-4.pdf"),
	}

	for _, put := range batch1Puts {
		require.GreaterOrEqual(t, put, 0)
		for _, submit := range batch2Submits {
			require.GreaterOrEqual(t, submit, 0)
			assert.Greater(t, submit, put)
		}
	}
}

func TestEngineConcurrencyCeilings(t *testing.T) {
	log := &opLog{}
	svc := newFakeService(log)
	svc.stepDelay = 2 * time.Millisecond
	store := newFakeStore(log)

	keys := sourceKeys(20)
	seedSources(store, keys)

	cfg := config.IngestConfig{
		BatchSize:            20,
		MaxConcurrentUploads: 3,
		MaxConcurrentPolls:   4,
		PollIntervalMS:       1,
		MaxPolls:             5,
	}

	engine := NewEngine(svc, store, cfg, Options{OutputPrefix: "corpus/"})
	stats, err := engine.Run(context.Background(), keys)
	require.NoError(t, err)
	assert.Equal(t, 20, stats.Completed)

	assert.LessOrEqual(t, svc.submitGauge.max, 3, "upload ceiling exceeded")
	assert.LessOrEqual(t, svc.statusGauge.max, 4, "poll ceiling exceeded")
}

func TestEnginePollTimeout(t *testing.T) {
	log := &opLog{}
	svc := newFakeService(log)
	store := newFakeStore(log)

	keys := sourceKeys(1)
	seedSources(store, keys)
	svc.statusPlan["doc-1.pdf"] = []structurer.JobState{{Status: structurer.StateProcessing}}

	cfg := testConfig()
	cfg.MaxPolls = 3

	engine := NewEngine(svc, store, cfg, Options{OutputPrefix: "corpus/"})
	stats, err := engine.Run(context.Background(), keys)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 3, svc.statusCalls["doc-1.pdf"], "poll loop must stop at the iteration ceiling")

	require.Len(t, stats.Documents, 1)
	assert.Contains(t, stats.Documents[0].Error, KindPollTimeout)
	assert.Contains(t, stats.Documents[0].Error, "3 polls")
}

func TestEngineRemoteFailure(t *testing.T) {
	log := &opLog{}
	svc := newFakeService(log)
	store := newFakeStore(log)

	keys := sourceKeys(1)
	seedSources(store, keys)
	svc.statusPlan["doc-1.pdf"] = []structurer.JobState{
		{Status: structurer.StateUploaded},
		{Status: structurer.StateFailed, Detail: "unreadable pdf"},
	}

	engine := NewEngine(svc, store, testConfig(), Options{OutputPrefix: "corpus/"})
	stats, err := engine.Run(context.Background(), keys)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.Documents, 1)
	assert.Contains(t, stats.Documents[0].Error, KindRemoteFailure)
	assert.Contains(t, stats.Documents[0].Error, "unreadable pdf")
}

func TestEngineCompletedOnSecondPoll(t *testing.T) {
	log := &opLog{}
	svc := newFakeService(log)
	store := newFakeStore(log)

	keys := sourceKeys(1)
	seedSources(store, keys)
	svc.statusPlan["doc-1.pdf"] = []structurer.JobState{
		{Status: structurer.StateProcessing},
		{Status: structurer.StateCompleted},
	}

	engine := NewEngine(svc, store, testConfig(), Options{OutputPrefix: "corpus/"})
	stats, err := engine.Run(context.Background(), keys)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 2, svc.statusCalls["doc-1.pdf"])
	assert.Equal(t, 1, svc.treeCalls["doc-1.pdf"], "merge input fetched exactly once")

	require.Len(t, stats.Documents, 1)
	assert.GreaterOrEqual(t, stats.Documents[0].DurationMS, int64(0))

	doc := readParentDocument(t, store, "sources/doc-1.pdf")
	assert.Equal(t, model.ExtractionRaw, doc.Provenance.ExtractionMethod)
	assert.Equal(t, "Raw text of doc-1.pdf", doc.FullText)
}

func TestEngineRawTextFallbackToPages(t *testing.T) {
	log := &opLog{}
	svc := newFakeService(log)
	store := newFakeStore(log)

	keys := sourceKeys(2)
	seedSources(store, keys)

	pages := []structurer.Page{
		{PageIndex: 1, Text: "second"},
		{PageIndex: 0, Text: "first"},
	}
	svc.rawTextErrs["doc-1.pdf"] = true
	svc.pages["doc-1.pdf"] = pages
	svc.emptyRaw["doc-2.pdf"] = true
	svc.pages["doc-2.pdf"] = pages

	engine := NewEngine(svc, store, testConfig(), Options{OutputPrefix: "corpus/"})
	stats, err := engine.Run(context.Background(), keys)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Completed)

	expected := AssemblePagedText(pages)

	// error on the raw read falls back
	doc1 := readParentDocument(t, store, "sources/doc-1.pdf")
	assert.Equal(t, model.ExtractionPaged, doc1.Provenance.ExtractionMethod)
	assert.Equal(t, expected, doc1.FullText)

	// empty raw read falls back too
	doc2 := readParentDocument(t, store, "sources/doc-2.pdf")
	assert.Equal(t, model.ExtractionPaged, doc2.Provenance.ExtractionMethod)
	assert.Equal(t, expected, doc2.FullText)
}

func TestEngineIsIdempotentAcrossRuns(t *testing.T) {
	log := &opLog{}
	svc := newFakeService(log)
	store := newFakeStore(log)

	keys := sourceKeys(3)
	seedSources(store, keys)

	engine := NewEngine(svc, store, testConfig(), Options{OutputPrefix: "corpus/"})

	first, err := engine.Run(context.Background(), keys)
	require.NoError(t, err)
	firstDocs := store.keysWithPrefix("corpus/doc_")

	second, err := engine.Run(context.Background(), keys)
	require.NoError(t, err)
	secondDocs := store.keysWithPrefix("corpus/doc_")

	// same inputs, same ids: the second run overwrites rather than duplicates
	assert.Equal(t, firstDocs, secondDocs)
	assert.Equal(t, first.Completed, second.Completed)
}

func readParentDocument(t *testing.T, store *fakeStore, sourceKey string) *model.ParentDocument {
	t.Helper()

	key := "corpus/" + model.DocIDForSource(sourceKey) + ".json"
	raw, err := store.GetObject(context.Background(), key)
	require.NoError(t, err, "parent document %s not persisted", key)

	var doc model.ParentDocument
	require.NoError(t, json.Unmarshal(raw, &doc))
	return &doc
}
