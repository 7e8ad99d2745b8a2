package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/local/docreader/internal/ai"
	"github.com/local/docreader/internal/extract"
	"github.com/local/docreader/internal/imagerender"
	"github.com/local/docreader/internal/pages"
	"github.com/local/docreader/internal/session"
	"github.com/local/docreader/internal/store"
)

// --- fakes ---

type fakeDocs struct {
	docs map[string]store.Document
}

func (f *fakeDocs) Save(ctx context.Context, d store.Document) error {
	f.docs[d.ID] = d
	return nil
}

func (f *fakeDocs) Get(ctx context.Context, id string) (store.Document, bool, error) {
	d, ok := f.docs[id]
	return d, ok, nil
}

func (f *fakeDocs) SetStatus(ctx context.Context, id, status, message string) error {
	d := f.docs[id]
	d.Status = status
	d.Message = message
	f.docs[id] = d
	return nil
}

type fakeSessions struct {
	sessions map[string]session.State
	nextID   int
}

func (f *fakeSessions) Create(ctx context.Context) (session.State, error) {
	f.nextID++
	st := session.State{ID: fmt.Sprintf("sess-%d", f.nextID)}
	f.sessions[st.ID] = st
	return st, nil
}

func (f *fakeSessions) Get(ctx context.Context, id string) (session.State, bool, error) {
	st, ok := f.sessions[id]
	return st, ok, nil
}

func (f *fakeSessions) Save(ctx context.Context, st session.State) error {
	f.sessions[st.ID] = st
	return nil
}

func (f *fakeSessions) AppendHistory(ctx context.Context, st *session.State, question, answer string, answerPage int) error {
	st.History = append(st.History, ai.HistoryTurn{Question: question, Answer: answer})
	st.CurrentPage = answerPage
	st.QueryCount++
	f.sessions[st.ID] = *st
	return nil
}

type fakeLimiter struct {
	refuse bool
}

func (f fakeLimiter) Check(st session.State) (bool, string) {
	if f.refuse {
		return false, "Please wait a moment before sending another question."
	}
	return true, ""
}

// memBackend keeps objects in memory. Fetch hands out a path that does not
// exist on disk; the fake extractor and rasterizer never open it.
type memBackend struct {
	objects map[string][]byte
}

func newMemBackend() *memBackend {
	return &memBackend{objects: map[string][]byte{}}
}

func (m *memBackend) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	ref := "mem://" + name
	m.objects[ref] = data
	return ref, nil
}

func (m *memBackend) Get(ctx context.Context, ref string) ([]byte, error) {
	data, ok := m.objects[ref]
	if !ok {
		return nil, fmt.Errorf("no such object: %s", ref)
	}
	return data, nil
}

func (m *memBackend) Fetch(ctx context.Context, ref string) (string, func(), error) {
	if _, ok := m.objects[ref]; !ok {
		return "", func() {}, fmt.Errorf("no such object: %s", ref)
	}
	return strings.TrimPrefix(ref, "mem://"), func() {}, nil
}

type fakeEmbedder struct {
	fail bool
}

// Embeddings are one-hot on min(len(text) mod 4, 3) so tests can steer hits.
func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.fail {
		return nil, errors.New("embedding api down")
	}
	v := make([]float32, 4)
	v[len(text)%4] = 1
	return v, nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type fakeAnswerer struct {
	text      string
	citedPage int
	err       error
	history   []ai.HistoryTurn
}

func (f *fakeAnswerer) Answer(ctx context.Context, question string, history []ai.HistoryTurn, sources []ai.Source) (ai.Answer, error) {
	f.history = history
	if f.err != nil {
		return ai.Answer{}, f.err
	}
	return ai.Answer{Text: f.text, CitedPage: f.citedPage, Sources: sources}, nil
}

type fakeExtractor struct {
	total int
}

func (f fakeExtractor) PageCount(pdfPath string) (int, error) { return f.total, nil }

func (f fakeExtractor) ExtractPages(pdfPath string) ([]extract.PageText, error) {
	out := make([]extract.PageText, f.total)
	for i := range out {
		out[i] = extract.PageText{Page: i, Text: fmt.Sprintf("content of page %d", i)}
	}
	return out, nil
}

type fakeRaster struct {
	fail  bool
	calls int
}

func (f *fakeRaster) RenderRange(pdfPath string, start, end int, opts imagerender.Options) ([]imagerender.Page, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("missing system codec")
	}
	out := make([]imagerender.Page, 0, end-start+1)
	for p := start; p <= end; p++ {
		out = append(out, imagerender.Page{Number: p, JPEG: []byte{0xff, 0xd8, byte(p)}, Width: 100, Height: 140})
	}
	return out, nil
}

// --- harness ---

type fixture struct {
	svc      *Service
	docs     *fakeDocs
	sessions *fakeSessions
	answerer *fakeAnswerer
	raster   *fakeRaster
	limiter  *fakeLimiter
}

func newFixture(t *testing.T, totalPages int) *fixture {
	t.Helper()
	fx := &fixture{
		docs:     &fakeDocs{docs: map[string]store.Document{}},
		sessions: &fakeSessions{sessions: map[string]session.State{}},
		answerer: &fakeAnswerer{text: "the answer", citedPage: 0},
		raster:   &fakeRaster{},
		limiter:  &fakeLimiter{},
	}
	fx.svc = New(
		Options{
			Window:        pages.Window{Before: 2, After: 2},
			Render:        imagerender.Options{DPI: 150},
			TopK:          2,
			TextThreshold: 10,
		},
		Dependencies{
			Docs:      fx.docs,
			Sessions:  fx.sessions,
			Limiter:   fx.limiter,
			Storage:   newMemBackend(),
			Embedder:  fakeEmbedder{},
			Answerer:  fx.answerer,
			Extractor: fakeExtractor{total: totalPages},
			Raster:    fx.raster,
			Checker:   func(pdfPath string, threshold int) (bool, error) { return true, nil },
		},
	)
	return fx
}

func mustUpload(t *testing.T, fx *fixture) UploadResult {
	t.Helper()
	res, err := fx.svc.Upload(context.Background(), "doc.pdf", []byte("%PDF-fake"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	return res
}

// --- tests ---

func TestUpload_IndexesAndOpensSession(t *testing.T) {
	fx := newFixture(t, 5)
	res := mustUpload(t, fx)

	if res.TotalPages != 5 {
		t.Errorf("total pages = %d, want 5", res.TotalPages)
	}
	if res.SessionID == "" || res.DocumentID == "" {
		t.Errorf("missing ids in result: %+v", res)
	}
	doc, ok, _ := fx.docs.Get(context.Background(), res.DocumentID)
	if !ok || doc.Status != store.StatusReady {
		t.Errorf("document not ready: %+v", doc)
	}
	st, ok, _ := fx.sessions.Get(context.Background(), res.SessionID)
	if !ok || st.DocumentID != res.DocumentID {
		t.Errorf("session not bound to document: %+v", st)
	}
}

func TestAsk_AnswerImageFirstThenAscending(t *testing.T) {
	fx := newFixture(t, 50)
	up := mustUpload(t, fx)
	fx.answerer.citedPage = 10

	res, err := fx.svc.Ask(context.Background(), up.SessionID, "where is the warranty?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Start != 8 || res.End != 12 || res.AnswerOffset != 2 {
		t.Fatalf("range = (%d,%d) offset %d, want (8,12) offset 2", res.Start, res.End, res.AnswerOffset)
	}
	if res.CitedPage != 10 {
		t.Errorf("cited page = %d, want 10", res.CitedPage)
	}
	var got []int
	for _, img := range res.Images {
		got = append(got, img.PageNumber)
	}
	want := []int{10, 8, 9, 11, 12}
	if len(got) != len(want) {
		t.Fatalf("rendered pages = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rendered pages = %v, want %v", got, want)
		}
	}
	if !res.Images[0].IsAnswer {
		t.Error("first image not marked as answer page")
	}
	for _, img := range res.Images[1:] {
		if img.IsAnswer {
			t.Errorf("page %d wrongly marked as answer", img.PageNumber)
		}
	}
}

func TestAsk_FirstPageWindow(t *testing.T) {
	fx := newFixture(t, 50)
	up := mustUpload(t, fx)
	fx.answerer.citedPage = 0

	res, err := fx.svc.Ask(context.Background(), up.SessionID, "what is on the cover?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Start != 0 || res.End != 2 || res.AnswerOffset != 0 {
		t.Fatalf("range = (%d,%d) offset %d, want (0,2) offset 0", res.Start, res.End, res.AnswerOffset)
	}
	if got := []int{res.Images[0].PageNumber, res.Images[1].PageNumber, res.Images[2].PageNumber}; got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Errorf("rendered pages = %v, want [0 1 2]", got)
	}
}

func TestAsk_ShortDocumentWindow(t *testing.T) {
	fx := newFixture(t, 3)
	up := mustUpload(t, fx)
	fx.answerer.citedPage = 1

	res, err := fx.svc.Ask(context.Background(), up.SessionID, "middle page?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Start != 0 || res.End != 2 || res.AnswerOffset != 1 {
		t.Fatalf("range = (%d,%d) offset %d, want (0,2) offset 1", res.Start, res.End, res.AnswerOffset)
	}
	if got := []int{res.Images[0].PageNumber, res.Images[1].PageNumber, res.Images[2].PageNumber}; got[0] != 1 || got[1] != 0 || got[2] != 2 {
		t.Errorf("rendered pages = %v, want [1 0 2]", got)
	}
}

func TestAsk_MalformedCitationClamped(t *testing.T) {
	fx := newFixture(t, 20)
	up := mustUpload(t, fx)
	fx.answerer.citedPage = -5

	res, err := fx.svc.Ask(context.Background(), up.SessionID, "negative citation")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.CitedPage != 0 || res.Start != 0 || res.End != 2 || res.AnswerOffset != 0 {
		t.Errorf("clamp failed: %+v", res)
	}
}

func TestAsk_RenderFailureFallsBackToDownload(t *testing.T) {
	fx := newFixture(t, 50)
	up := mustUpload(t, fx)
	fx.answerer.citedPage = 10
	fx.raster.fail = true

	res, err := fx.svc.Ask(context.Background(), up.SessionID, "q")
	if err != nil {
		t.Fatalf("Ask must not fail on render errors, got %v", err)
	}
	if res.Answer != "the answer" {
		t.Errorf("answer lost on fallback: %q", res.Answer)
	}
	if len(res.Images) != 0 {
		t.Errorf("expected no images, got %d", len(res.Images))
	}
	if !strings.Contains(res.RenderError, "missing system codec") {
		t.Errorf("render error must include the cause, got %q", res.RenderError)
	}
	if res.DownloadURL != "/download/"+up.DocumentID {
		t.Errorf("download url = %q", res.DownloadURL)
	}
}

func TestAsk_RateLimitedIsRefusalNotError(t *testing.T) {
	fx := newFixture(t, 10)
	up := mustUpload(t, fx)
	fx.limiter.refuse = true

	res, err := fx.svc.Ask(context.Background(), up.SessionID, "q")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !res.RateLimited || res.Notice == "" {
		t.Errorf("expected rate-limited refusal, got %+v", res)
	}
	if fx.raster.calls != 0 {
		t.Error("rendering must not run for refused queries")
	}
}

func TestAsk_HistoryGrowsAcrossQueries(t *testing.T) {
	fx := newFixture(t, 10)
	up := mustUpload(t, fx)
	fx.answerer.citedPage = 4

	if _, err := fx.svc.Ask(context.Background(), up.SessionID, "first"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if _, err := fx.svc.Ask(context.Background(), up.SessionID, "second"); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	// The second call must have seen the first exchange.
	if len(fx.answerer.history) != 1 || fx.answerer.history[0].Question != "first" {
		t.Errorf("history passed to answerer = %+v", fx.answerer.history)
	}
	st, _, _ := fx.sessions.Get(context.Background(), up.SessionID)
	if len(st.History) != 2 || st.QueryCount != 2 {
		t.Errorf("session after two queries = %+v", st)
	}
	if st.CurrentPage != 4 {
		t.Errorf("current page = %d, want 4", st.CurrentPage)
	}
}

func TestAsk_UnknownSession(t *testing.T) {
	fx := newFixture(t, 10)
	if _, err := fx.svc.Ask(context.Background(), "nope", "q"); err == nil {
		t.Error("expected error for unknown session")
	}
}
