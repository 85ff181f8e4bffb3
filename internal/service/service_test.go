package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SFZPL/lead-automation-system-sub000/internal/adapter"
	"github.com/SFZPL/lead-automation-system-sub000/internal/backend"
	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
	"github.com/SFZPL/lead-automation-system-sub000/internal/oauth"
	"github.com/SFZPL/lead-automation-system-sub000/internal/querycache"
	"github.com/SFZPL/lead-automation-system-sub000/internal/store"
)

// fakeBackend is an in-memory lead-automation backend
type fakeBackend struct {
	mu       sync.Mutex
	requests atomic.Int32
	kbDocs   []map[string]any
	reports  []map[string]any
	counts   map[string]int
}

func (f *fakeBackend) router() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.requests.Add(1)
			next.ServeHTTP(w, r)
		})
	})
	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok-1", "token_type": "bearer"})
	})
	r.Get("/api/leads/counts", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.counts == nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Odoo unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, f.counts)
	})
	r.Get("/knowledge-base/documents", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"documents": f.kbDocs})
	})
	r.Delete("/knowledge-base/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := chi.URLParam(r, "id")
		kept := f.kbDocs[:0]
		for _, d := range f.kbDocs {
			if d["id"] != id {
				kept = append(kept, d)
			}
		}
		f.kbDocs = kept
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/reports/saved", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.reports == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "No saved reports"})
			return
		}
		writeJSON(w, http.StatusOK, f.reports)
	})
	r.Post("/reports/generate", func(w http.ResponseWriter, r *http.Request) {
		var req domain.ReportRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		rep := map[string]any{"id": "r1", "name": req.Name}
		f.reports = append(f.reports, rep)
		writeJSON(w, http.StatusOK, rep)
	})
	r.Post("/lead-assignments/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type fixture struct {
	fake   *fakeBackend
	client *backend.Client
	cache  *querycache.Cache
	store  *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := &fakeBackend{}
	srv := httptest.NewServer(fake.router())
	t.Cleanup(srv.Close)

	st := store.NewMemory()
	logger := adapter.NullLogger()
	return &fixture{
		fake:   fake,
		client: backend.NewClient(srv.URL, st, backend.Options{}, logger),
		cache:  querycache.New(st, logger),
		store:  st,
	}
}

// === Knowledge base ===

func TestKnowledgeUpload_RejectsNonPDF(t *testing.T) {
	f := newFixture(t)
	svc := NewKnowledgeService(f.client, f.cache, adapter.NullLogger())

	path := filepath.Join(t.TempDir(), "notes.docx")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	_, err := svc.Upload(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "Only PDF files are supported", err.Error())
	assert.Equal(t, int32(0), f.fake.requests.Load())
}

func TestKnowledgeUpload_RejectsUnreadablePDF(t *testing.T) {
	f := newFixture(t)
	svc := NewKnowledgeService(f.client, f.cache, adapter.NullLogger())

	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a pdf"), 0644))

	_, err := svc.Upload(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, int32(0), f.fake.requests.Load())
}

func TestKnowledgeDelete_NextListExcludesDocument(t *testing.T) {
	f := newFixture(t)
	f.fake.kbDocs = []map[string]any{
		{"id": "1", "filename": "deck.pdf", "pages": 10},
		{"id": "2", "filename": "pricing.pdf", "pages": 2},
	}
	svc := NewKnowledgeService(f.client, f.cache, adapter.NullLogger())
	ctx := context.Background()

	docs, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	doc, err := svc.Find(ctx, "pricing")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, doc.ID))

	docs, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "deck.pdf", docs[0].Filename)

	_, err = svc.Find(ctx, "pricing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNDAUpload_RejectsUnsupportedExtension(t *testing.T) {
	f := newFixture(t)
	svc := NewNDAService(f.client, f.cache, adapter.NullLogger())

	_, err := svc.Upload(context.Background(), "contract.xlsx")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, int32(0), f.fake.requests.Load())
}

// === Reports ===

func TestSavedReports_EmptyStateNotError(t *testing.T) {
	f := newFixture(t)
	svc := NewReportService(f.client, f.cache, adapter.NullLogger())

	reports, err := svc.Saved(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, reports)
	assert.Empty(t, reports)
}

func TestSavedReports_GenerateInvalidatesAndPersists(t *testing.T) {
	f := newFixture(t)
	f.fake.reports = []map[string]any{}
	svc := NewReportService(f.client, f.cache, adapter.NullLogger())
	ctx := context.Background()

	reports, err := svc.Saved(ctx)
	require.NoError(t, err)
	assert.Empty(t, reports)

	_, err = svc.Generate(ctx, domain.ReportRequest{Name: "Q3 pipeline", DateFrom: "2024-07-01", DateTo: "2024-09-30"})
	require.NoError(t, err)

	reports, err = svc.Saved(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "Q3 pipeline", reports[0].Name)

	entry, ok := f.store.LoadEntry(PrefixSavedReports)
	require.True(t, ok)
	assert.Contains(t, string(entry.Payload), "Q3 pipeline")
}

func TestGenerateReport_Validation(t *testing.T) {
	f := newFixture(t)
	svc := NewReportService(f.client, f.cache, adapter.NullLogger())
	ctx := context.Background()

	_, err := svc.Generate(ctx, domain.ReportRequest{Name: " "})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Generate(ctx, domain.ReportRequest{Name: "x", DateFrom: "2024-09-30", DateTo: "2024-07-01"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Generate(ctx, domain.ReportRequest{Name: "x", DateFrom: "July"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, int32(0), f.fake.requests.Load())
}

// === Assignments ===

func TestAssign_RequiresLeadAndUser(t *testing.T) {
	f := newFixture(t)
	svc := NewAssignmentService(f.client, f.cache, time.Minute, adapter.NullLogger())
	ctx := context.Background()

	err := svc.Assign(ctx, "", "sara@example.com", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "Please select a lead", err.Error())

	err = svc.Assign(ctx, "42", "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, int32(0), f.fake.requests.Load())

	require.NoError(t, svc.Assign(ctx, "42", "sara@example.com", "hot lead"))
}

// === Session ===

func TestSession_LoginAndLogout(t *testing.T) {
	f := newFixture(t)
	svc := NewSessionService(f.client, f.store, f.cache, adapter.NullLogger())
	ctx := context.Background()

	assert.ErrorIs(t, svc.Login(ctx, "", "pw"), domain.ErrValidation)

	require.NoError(t, svc.Login(ctx, "rep@example.com", "pw"))
	assert.True(t, svc.LoggedIn())

	require.NoError(t, f.store.SaveOAuthState("pending"))
	require.NoError(t, svc.Logout())
	assert.False(t, svc.LoggedIn())
	_, ok := f.store.OAuthState()
	assert.False(t, ok)
}

func TestSession_ExpiresSoon(t *testing.T) {
	st := store.NewMemory()
	svc := NewSessionService(nil, st, nil, adapter.NullLogger())
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	sign := func(exp time.Time) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})
		s, err := tok.SignedString([]byte("secret"))
		require.NoError(t, err)
		return s
	}

	require.NoError(t, st.SaveToken(sign(now.Add(2*time.Minute))))
	assert.True(t, svc.ExpiresSoon(5*time.Minute))

	require.NoError(t, st.SaveToken(sign(now.Add(2*time.Hour))))
	assert.False(t, svc.ExpiresSoon(5*time.Minute))

	require.NoError(t, st.SaveToken("opaque-token"))
	assert.False(t, svc.ExpiresSoon(5*time.Minute))
}

// === Dashboard ===

func TestDashboard_SectionsFailIndependently(t *testing.T) {
	f := newFixture(t)
	f.fake.kbDocs = []map[string]any{{"id": "1", "filename": "deck.pdf"}}
	logger := adapter.NullLogger()

	connector := oauth.NewConnector(f.client, nil, f.store, oauth.Config{}, logger)
	d := NewDashboardService(
		NewLeadService(f.client, f.cache, time.Minute),
		NewOutlookService(connector, f.cache, time.Minute, logger),
		NewFollowupService(f.client, f.cache, time.Minute, logger),
		NewNDAService(f.client, f.cache, logger),
		NewKnowledgeService(f.client, f.cache, logger),
		NewAssignmentService(f.client, f.cache, time.Minute, logger),
		NewReportService(f.client, f.cache, logger),
		logger,
	)

	dash, err := d.Load(context.Background(), domain.FollowupFilter{})
	require.NoError(t, err)
	assert.Len(t, dash.Knowledge, 1)
	assert.Empty(t, dash.Reports)
	assert.NotContains(t, dash.Errors, "knowledge")
	assert.NotContains(t, dash.Errors, "reports")
	require.Contains(t, dash.Errors, "counts")
	assert.Equal(t, http.StatusInternalServerError, backend.StatusOf(dash.Errors["counts"]))
	assert.Contains(t, dash.Errors, "nda")

	f.fake.mu.Lock()
	f.fake.counts = map[string]int{"total": 12, "enriched": 4}
	f.fake.mu.Unlock()

	// The failed fetch left no entry, so a reload reaches the backend
	dash, err = d.Reload(context.Background(), domain.FollowupFilter{})
	require.NoError(t, err)
	assert.Equal(t, 12, dash.Counts.Total)
	assert.NotContains(t, dash.Errors, "counts")
}
