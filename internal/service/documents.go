package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
	"github.com/SFZPL/lead-automation-system-sub000/internal/querycache"
	"github.com/SFZPL/lead-automation-system-sub000/internal/search"
)

// NDAExtensions are the contract formats the analyzer accepts
var NDAExtensions = []string{".pdf", ".docx", ".doc", ".txt"}

// NDAAPI is the backend surface for NDA analysis
type NDAAPI interface {
	UploadNDA(ctx context.Context, filename string, content io.Reader) (domain.NDADocument, error)
	NDADocuments(ctx context.Context) ([]domain.NDADocument, error)
	NDADocument(ctx context.Context, id string) (domain.NDADocument, error)
	AnalyzeNDA(ctx context.Context, id string) (domain.NDADocument, error)
	DeleteNDA(ctx context.Context, id string) error
}

// NDAService manages uploaded contracts and their analysis
type NDAService struct {
	api    NDAAPI
	cache  *querycache.Cache
	logger *slog.Logger
}

// NewNDAService creates an NDAService
func NewNDAService(api NDAAPI, cache *querycache.Cache, logger *slog.Logger) *NDAService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NDAService{api: api, cache: cache, logger: logger}
}

// Upload sends a contract file for analysis
func (s *NDAService) Upload(ctx context.Context, path string) (domain.NDADocument, error) {
	ext := strings.ToLower(filepath.Ext(path))
	allowed := false
	for _, e := range NDAExtensions {
		if ext == e {
			allowed = true
			break
		}
	}
	if !allowed {
		return domain.NDADocument{}, domain.Invalid("file", "Only PDF, Word and text files are supported")
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.NDADocument{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := s.api.UploadNDA(ctx, filepath.Base(path), f)
	if err != nil {
		return domain.NDADocument{}, err
	}
	s.logger.Info("nda uploaded", "id", doc.ID, "filename", doc.Filename)
	s.cache.InvalidatePrefix(PrefixNDA)
	return doc, nil
}

// List returns uploaded contracts
func (s *NDAService) List(ctx context.Context) ([]domain.NDADocument, error) {
	return querycache.Fetch(ctx, s.cache, key(PrefixNDA), querycache.Options{}, s.api.NDADocuments)
}

// Refresh refetches the contract list
func (s *NDAService) Refresh(ctx context.Context) ([]domain.NDADocument, error) {
	return querycache.Refresh(ctx, s.cache, key(PrefixNDA), querycache.Options{}, s.api.NDADocuments)
}

// Get returns one contract with its analysis
func (s *NDAService) Get(ctx context.Context, id string) (domain.NDADocument, error) {
	return querycache.Fetch(ctx, s.cache, key(PrefixNDA+"/"+id), querycache.Options{}, func(ctx context.Context) (domain.NDADocument, error) {
		return s.api.NDADocument(ctx, id)
	})
}

// Analyze runs the AI analysis on a contract
func (s *NDAService) Analyze(ctx context.Context, id string) (domain.NDADocument, error) {
	if strings.TrimSpace(id) == "" {
		return domain.NDADocument{}, domain.Invalid("document", "Select a document first")
	}
	doc, err := s.api.AnalyzeNDA(ctx, id)
	if err != nil {
		return domain.NDADocument{}, err
	}
	s.cache.InvalidatePrefix(PrefixNDA)
	return doc, nil
}

// Delete removes a contract
func (s *NDAService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.Invalid("document", "Select a document first")
	}
	if err := s.api.DeleteNDA(ctx, id); err != nil {
		return err
	}
	s.logger.Info("nda deleted", "id", id)
	s.cache.InvalidatePrefix(PrefixNDA)
	return nil
}

// Find resolves a filename to a document
func (s *NDAService) Find(ctx context.Context, name string) (domain.NDADocument, error) {
	docs, err := s.List(ctx)
	if err != nil {
		return domain.NDADocument{}, err
	}
	labels := make([]string, len(docs))
	for i, d := range docs {
		labels[i] = d.Filename
	}
	i := search.Resolve(name, labels)
	if i < 0 {
		return domain.NDADocument{}, fmt.Errorf("%q: %w", name, domain.ErrNotFound)
	}
	return docs[i], nil
}

// KnowledgeAPI is the backend surface for the AI knowledge base
type KnowledgeAPI interface {
	UploadKnowledgeDocument(ctx context.Context, filename string, content io.Reader) (domain.KnowledgeDocument, error)
	KnowledgeDocuments(ctx context.Context) ([]domain.KnowledgeDocument, error)
	DeleteKnowledgeDocument(ctx context.Context, id string) error
}

// KnowledgeService manages the PDFs the AI drafts from
type KnowledgeService struct {
	api    KnowledgeAPI
	cache  *querycache.Cache
	logger *slog.Logger
}

// NewKnowledgeService creates a KnowledgeService
func NewKnowledgeService(api KnowledgeAPI, cache *querycache.Cache, logger *slog.Logger) *KnowledgeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnowledgeService{api: api, cache: cache, logger: logger}
}

// Upload validates a PDF locally and adds it to the knowledge base. Non-PDF
// files are rejected before any network call.
func (s *KnowledgeService) Upload(ctx context.Context, path string) (domain.KnowledgeDocument, error) {
	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		return domain.KnowledgeDocument{}, domain.Invalid("file", "Only PDF files are supported")
	}

	pages, err := inspectPDF(path)
	if err != nil {
		s.logger.Warn("rejected knowledge-base upload", "path", path, "error", err)
		return domain.KnowledgeDocument{}, domain.Invalid("file", "The file is not a readable PDF")
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.KnowledgeDocument{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := s.api.UploadKnowledgeDocument(ctx, filepath.Base(path), f)
	if err != nil {
		return domain.KnowledgeDocument{}, err
	}
	if doc.Pages == 0 {
		doc.Pages = pages
	}
	s.logger.Info("knowledge document uploaded", "id", doc.ID, "pages", doc.Pages)
	s.cache.InvalidatePrefix(PrefixKnowledge)
	return doc, nil
}

// inspectPDF validates the file in relaxed mode and returns its page count
func inspectPDF(path string) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, conf); err != nil {
		return 0, err
	}
	return api.PageCountFile(path)
}

// List returns the knowledge-base documents
func (s *KnowledgeService) List(ctx context.Context) ([]domain.KnowledgeDocument, error) {
	return querycache.Fetch(ctx, s.cache, key(PrefixKnowledge), querycache.Options{}, s.api.KnowledgeDocuments)
}

// Refresh refetches the document list
func (s *KnowledgeService) Refresh(ctx context.Context) ([]domain.KnowledgeDocument, error) {
	return querycache.Refresh(ctx, s.cache, key(PrefixKnowledge), querycache.Options{}, s.api.KnowledgeDocuments)
}

// Delete removes a document; the next List excludes it
func (s *KnowledgeService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.Invalid("document", "Select a document first")
	}
	if err := s.api.DeleteKnowledgeDocument(ctx, id); err != nil {
		return err
	}
	s.logger.Info("knowledge document deleted", "id", id)
	s.cache.InvalidatePrefix(PrefixKnowledge)
	return nil
}

// Find resolves a filename to a document
func (s *KnowledgeService) Find(ctx context.Context, name string) (domain.KnowledgeDocument, error) {
	docs, err := s.List(ctx)
	if err != nil {
		return domain.KnowledgeDocument{}, err
	}
	labels := make([]string, len(docs))
	for i, d := range docs {
		labels[i] = d.Filename
	}
	i := search.Resolve(name, labels)
	if i < 0 {
		return domain.KnowledgeDocument{}, fmt.Errorf("%q: %w", name, domain.ErrNotFound)
	}
	return docs[i], nil
}
