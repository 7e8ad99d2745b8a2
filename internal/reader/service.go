package reader

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/docreader/internal/ai"
	"github.com/local/docreader/internal/extract"
	"github.com/local/docreader/internal/imagerender"
	"github.com/local/docreader/internal/index"
	"github.com/local/docreader/internal/metrics"
	"github.com/local/docreader/internal/pages"
	"github.com/local/docreader/internal/session"
	"github.com/local/docreader/internal/storage"
	"github.com/local/docreader/internal/store"
)

// DocumentStore persists document metadata.
type DocumentStore interface {
	Save(ctx context.Context, d store.Document) error
	Get(ctx context.Context, id string) (store.Document, bool, error)
	SetStatus(ctx context.Context, id, status, message string) error
}

// SessionStore persists per-session state.
type SessionStore interface {
	Create(ctx context.Context) (session.State, error)
	Get(ctx context.Context, id string) (session.State, bool, error)
	Save(ctx context.Context, st session.State) error
	AppendHistory(ctx context.Context, st *session.State, question, answer string, answerPage int) error
}

// Limiter gates questions per session.
type Limiter interface {
	Check(st session.State) (bool, string)
}

// Extractor pulls per-page text out of a stored document.
type Extractor interface {
	ExtractPages(pdfPath string) ([]extract.PageText, error)
	PageCount(pdfPath string) (int, error)
}

// TextChecker verifies the document has enough extractable text to index.
type TextChecker func(pdfPath string, threshold int) (bool, error)

// Options configure the query pipeline.
type Options struct {
	Window        pages.Window
	DefaultPage   int
	Render        imagerender.Options
	TopK          int
	TextThreshold int
}

// Dependencies are the pipeline collaborators.
type Dependencies struct {
	Docs      DocumentStore
	Sessions  SessionStore
	Limiter   Limiter
	Storage   storage.Backend
	Embedder  ai.Embedder
	Answerer  ai.Answerer
	Extractor Extractor
	Raster    imagerender.Rasterizer
	Checker   TextChecker
}

// Service runs the synchronous per-query pipeline: resolve the answer-context
// window, rasterize it, fall back to a download link when rendering fails.
type Service struct {
	opts Options
	deps Dependencies

	mu      sync.RWMutex
	indexes map[string]*index.Index
}

func New(opts Options, deps Dependencies) *Service {
	if opts.TopK <= 0 {
		opts.TopK = 2
	}
	if opts.Render.DPI <= 0 {
		opts.Render.DPI = 150
	}
	return &Service{opts: opts, deps: deps, indexes: make(map[string]*index.Index)}
}

// UploadResult reports an accepted document and the session bound to it.
type UploadResult struct {
	SessionID   string `json:"session_id"`
	DocumentID  string `json:"document_id"`
	TotalPages  int    `json:"total_pages"`
	DefaultPage int    `json:"default_page"`
}

// Upload validates, stores and indexes a PDF, then opens a session on it.
func (s *Service) Upload(ctx context.Context, name string, data []byte) (UploadResult, error) {
	docID := uuid.NewString()
	if name == "" {
		name = "upload.pdf"
	}

	ref, err := s.deps.Storage.Put(ctx, fmt.Sprintf("%s_%s", docID, name), bytes.NewReader(data))
	if err != nil {
		metrics.IncDocument("rejected")
		return UploadResult{}, fmt.Errorf("store upload: %w", err)
	}

	doc := store.Document{
		ID:       docID,
		Name:     name,
		Ref:      ref,
		Status:   store.StatusIndexing,
		Message:  "indexing",
		Uploaded: time.Now(),
	}
	if err := s.deps.Docs.Save(ctx, doc); err != nil {
		return UploadResult{}, fmt.Errorf("save document: %w", err)
	}

	localPath, cleanup, err := s.deps.Storage.Fetch(ctx, ref)
	if err != nil {
		return UploadResult{}, s.reject(ctx, docID, fmt.Errorf("fetch stored document: %w", err))
	}
	defer cleanup()

	total, err := s.deps.Extractor.PageCount(localPath)
	if err != nil {
		return UploadResult{}, s.reject(ctx, docID, fmt.Errorf("page count: %w", err))
	}
	if total < 1 {
		return UploadResult{}, s.reject(ctx, docID, fmt.Errorf("document has no pages"))
	}
	if n, err := countPagesPDFCPU(localPath); err == nil && n != total {
		// go-fitz drives rendering, so its count wins; the mismatch is worth a trace
		log.Warn().Int("fitz", total).Int("pdfcpu", n).Str("doc_id", docID).Msg("page count mismatch")
	}

	if s.deps.Checker != nil {
		ok, err := s.deps.Checker(localPath, s.opts.TextThreshold)
		if err != nil {
			return UploadResult{}, s.reject(ctx, docID, fmt.Errorf("text check: %w", err))
		}
		if !ok {
			return UploadResult{}, s.reject(ctx, docID, fmt.Errorf("document has no extractable text (scanned image?)"))
		}
	}

	pageTexts, err := s.deps.Extractor.ExtractPages(localPath)
	if err != nil {
		return UploadResult{}, s.reject(ctx, docID, fmt.Errorf("extract text: %w", err))
	}

	var chunks []index.Chunk
	var texts []string
	for _, pt := range pageTexts {
		if strings.TrimSpace(pt.Text) == "" {
			continue
		}
		chunks = append(chunks, index.Chunk{Page: pt.Page, Content: pt.Text})
		texts = append(texts, pt.Text)
	}
	if len(chunks) == 0 {
		return UploadResult{}, s.reject(ctx, docID, fmt.Errorf("no indexable pages"))
	}

	embeddings, err := s.deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return UploadResult{}, s.reject(ctx, docID, fmt.Errorf("embed pages: %w", err))
	}
	ix, err := index.Build(chunks, embeddings)
	if err != nil {
		return UploadResult{}, s.reject(ctx, docID, fmt.Errorf("build index: %w", err))
	}

	s.mu.Lock()
	s.indexes[docID] = ix
	s.mu.Unlock()

	doc.TotalPages = total
	doc.Status = store.StatusReady
	doc.Message = fmt.Sprintf("indexed %d of %d pages", len(chunks), total)
	if err := s.deps.Docs.Save(ctx, doc); err != nil {
		return UploadResult{}, fmt.Errorf("save document: %w", err)
	}

	st, err := s.deps.Sessions.Create(ctx)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create session: %w", err)
	}
	st.DocumentID = docID
	st.CurrentPage = pages.Clamp(s.opts.DefaultPage, total)
	if err := s.deps.Sessions.Save(ctx, st); err != nil {
		return UploadResult{}, fmt.Errorf("save session: %w", err)
	}

	metrics.IncDocument("indexed")
	log.Info().Str("doc_id", docID).Str("session_id", st.ID).Int("pages", total).Int("indexed", len(chunks)).Msg("document indexed")
	return UploadResult{SessionID: st.ID, DocumentID: docID, TotalPages: total, DefaultPage: st.CurrentPage}, nil
}

func (s *Service) reject(ctx context.Context, docID string, cause error) error {
	metrics.IncDocument("rejected")
	_ = s.deps.Docs.SetStatus(ctx, docID, store.StatusRejected, cause.Error())
	return cause
}

// RenderedPage is one page image in presentation order.
type RenderedPage struct {
	PageNumber int    `json:"page_number"`
	IsAnswer   bool   `json:"is_answer"`
	ImageB64   string `json:"image_b64"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// AskResult is the outcome of one question. Exactly one of Images or
// (RenderError, DownloadURL) is meaningful; the answer text is present in
// both cases.
type AskResult struct {
	SessionID    string         `json:"session_id"`
	Answer       string         `json:"answer"`
	CitedPage    int            `json:"cited_page"`
	Start        int            `json:"start"`
	End          int            `json:"end"`
	AnswerOffset int            `json:"answer_offset"`
	TotalPages   int            `json:"total_pages"`
	Images       []RenderedPage `json:"images,omitempty"`
	Sources      []ai.Source    `json:"sources,omitempty"`
	RateLimited  bool           `json:"rate_limited,omitempty"`
	Notice       string         `json:"notice,omitempty"`
	RenderError  string         `json:"render_error,omitempty"`
	DownloadURL  string         `json:"download_url,omitempty"`
}

// Ask answers one question about the session's document. The pipeline is
// synchronous: the cited page is fully resolved before any image is produced.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (AskResult, error) {
	st, found, err := s.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		return AskResult{}, fmt.Errorf("load session: %w", err)
	}
	if !found {
		return AskResult{}, fmt.Errorf("unknown session: %s", sessionID)
	}
	if st.DocumentID == "" {
		return AskResult{}, fmt.Errorf("session has no document")
	}

	if ok, msg := s.deps.Limiter.Check(st); !ok {
		metrics.IncQuery("rate_limited")
		return AskResult{SessionID: sessionID, RateLimited: true, Notice: msg}, nil
	}

	doc, found, err := s.deps.Docs.Get(ctx, st.DocumentID)
	if err != nil {
		return AskResult{}, fmt.Errorf("load document: %w", err)
	}
	if !found || doc.Status != store.StatusReady {
		return AskResult{}, fmt.Errorf("document %s not ready", st.DocumentID)
	}

	s.mu.RLock()
	ix := s.indexes[doc.ID]
	s.mu.RUnlock()
	if ix == nil {
		return AskResult{}, fmt.Errorf("document %s has no index", doc.ID)
	}

	qvec, err := s.deps.Embedder.Embed(ctx, question)
	if err != nil {
		metrics.IncQuery("failed")
		return AskResult{}, fmt.Errorf("embed question: %w", err)
	}
	hits, err := ix.Search(qvec, s.opts.TopK)
	if err != nil {
		metrics.IncQuery("failed")
		return AskResult{}, fmt.Errorf("search index: %w", err)
	}
	sources := make([]ai.Source, 0, len(hits))
	for _, h := range hits {
		sources = append(sources, ai.Source{Page: h.Chunk.Page, Excerpt: h.Chunk.Content})
	}

	answer, err := s.deps.Answerer.Answer(ctx, question, st.History, sources)
	if err != nil {
		metrics.IncQuery("failed")
		return AskResult{}, fmt.Errorf("answer question: %w", err)
	}

	// The citation is heuristic; Resolve clamps it so the answer page is
	// always inside the rendered range.
	rng, offset, err := pages.Resolve(answer.CitedPage, doc.TotalPages, s.opts.Window)
	if err != nil {
		metrics.IncQuery("failed")
		return AskResult{}, fmt.Errorf("resolve window: %w", err)
	}
	answerPage := rng.Start + offset

	res := AskResult{
		SessionID:    sessionID,
		Answer:       answer.Text,
		CitedPage:    answerPage,
		Start:        rng.Start,
		End:          rng.End,
		AnswerOffset: offset,
		TotalPages:   doc.TotalPages,
		Sources:      answer.Sources,
	}

	if err := s.deps.Sessions.AppendHistory(ctx, &st, question, answer.Text, answerPage); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to persist history")
	}

	images, rerr := s.renderWindow(ctx, doc, rng, answerPage)
	if rerr != nil {
		// One attempt only; degrade to the download fallback.
		metrics.IncQuery("answered")
		log.Warn().Err(rerr).Str("doc_id", doc.ID).Int("start", rng.Start).Int("end", rng.End).Msg("rendering failed, offering download")
		res.RenderError = fmt.Sprintf("could not render pages %d-%d: %v", rng.Start+1, rng.End+1, rerr)
		res.DownloadURL = "/download/" + doc.ID
		return res, nil
	}

	res.Images = images
	metrics.IncQuery("answered")
	return res, nil
}

// renderWindow rasterizes the range and reorders it: answer page first, the
// rest ascending, no duplicates.
func (s *Service) renderWindow(ctx context.Context, doc store.Document, rng pages.Range, answerPage int) ([]RenderedPage, error) {
	localPath, cleanup, err := s.deps.Storage.Fetch(ctx, doc.Ref)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	start := time.Now()
	rendered, err := s.deps.Raster.RenderRange(localPath, rng.Start, rng.End, s.opts.Render)
	metrics.ObserveRender(rng.Len(), time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}

	byPage := make(map[int]imagerender.Page, len(rendered))
	for _, p := range rendered {
		byPage[p.Number] = p
	}

	order := rng.DisplayOrder(answerPage - rng.Start)
	out := make([]RenderedPage, 0, len(order))
	for _, n := range order {
		p, ok := byPage[n]
		if !ok {
			return nil, fmt.Errorf("rasterizer returned no image for page %d", n)
		}
		out = append(out, RenderedPage{
			PageNumber: n,
			IsAnswer:   n == answerPage,
			ImageB64:   imagerender.EncodeToBase64(p.JPEG),
			Width:      p.Width,
			Height:     p.Height,
		})
	}
	return out, nil
}

// Download returns the original document bytes for the fallback affordance.
func (s *Service) Download(ctx context.Context, docID string) (store.Document, []byte, error) {
	doc, found, err := s.deps.Docs.Get(ctx, docID)
	if err != nil {
		return store.Document{}, nil, err
	}
	if !found {
		return store.Document{}, nil, fmt.Errorf("unknown document: %s", docID)
	}
	data, err := s.deps.Storage.Get(ctx, doc.Ref)
	if err != nil {
		return store.Document{}, nil, fmt.Errorf("read stored document: %w", err)
	}
	return doc, data, nil
}

// Progress reports the indexing status of a document.
func (s *Service) Progress(ctx context.Context, docID string) (store.Document, bool, error) {
	return s.deps.Docs.Get(ctx, docID)
}
