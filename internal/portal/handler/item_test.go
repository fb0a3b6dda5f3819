package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusfound/campusfound/internal/portal/handler"
	"github.com/campusfound/campusfound/internal/portal/model"
	"github.com/campusfound/campusfound/internal/portal/repository"
	"github.com/campusfound/campusfound/internal/portal/service"
)

// ── In-memory stores ───────────────────────────────────────────────────────

type stubItemStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Item
}

func newStubItemStore() *stubItemStore {
	return &stubItemStore{rows: make(map[uuid.UUID]*model.Item)}
}

func (s *stubItemStore) Create(_ context.Context, item *model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = uuid.New()
	item.CreatedAt = time.Now().UTC()
	cp := *item
	s.rows[item.ID] = &cp
	return nil
}

func (s *stubItemStore) GetByID(_ context.Context, id uuid.UUID) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *stubItemStore) List(_ context.Context, f model.ListFilter) ([]*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Item
	for _, item := range s.rows {
		if f.Type != "" && item.Type != f.Type {
			continue
		}
		if f.Status != "" && item.Status != f.Status {
			continue
		}
		if f.ApprovedOnly && !item.IsApproved {
			continue
		}
		cp := *item
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *stubItemStore) ListCandidates(_ context.Context, t model.ItemType) ([]*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Item
	for _, item := range s.rows {
		if item.Type != t || item.Status != model.ItemStatusUnclaimed || !item.IsApproved {
			continue
		}
		cp := *item
		out = append(out, &cp)
	}
	return out, nil
}

func (s *stubItemStore) SetApproval(_ context.Context, id uuid.UUID, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.rows[id]
	if !ok {
		return repository.ErrItemNotFound
	}
	item.IsApproved = approved
	if approved && item.Status == model.ItemStatusPending {
		item.Status = model.ItemStatusUnclaimed
	}
	return nil
}

func (s *stubItemStore) SetPhoto(_ context.Context, id uuid.UUID, photoKey string, labels []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.rows[id]
	if !ok {
		return repository.ErrItemNotFound
	}
	item.PhotoKey = photoKey
	item.ImageLabels = labels
	return nil
}

func (s *stubItemStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return repository.ErrItemNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *stubItemStore) seed(item *model.Item) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.rows[item.ID] = item
	return item.ID
}

type stubChallengeStore struct {
	items *stubItemStore
	mu    sync.Mutex
	rows  map[string]*model.ClaimChallenge
}

func newStubChallengeStore(items *stubItemStore) *stubChallengeStore {
	return &stubChallengeStore{items: items, rows: make(map[string]*model.ClaimChallenge)}
}

func challengeKey(itemID uuid.UUID, claimantID string) string {
	return itemID.String() + "|" + claimantID
}

func (s *stubChallengeStore) Put(_ context.Context, ch *model.ClaimChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ch
	s.rows[challengeKey(ch.ItemID, ch.ClaimantID)] = &cp
	return nil
}

func (s *stubChallengeStore) Get(_ context.Context, itemID uuid.UUID, claimantID string) (*model.ClaimChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.rows[challengeKey(itemID, claimantID)]
	if !ok {
		return nil, repository.ErrChallengeNotFound
	}
	cp := *ch
	return &cp, nil
}

func (s *stubChallengeStore) Delete(_ context.Context, itemID uuid.UUID, claimantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, challengeKey(itemID, claimantID))
	return nil
}

func (s *stubChallengeStore) ClaimAndConsume(_ context.Context, itemID uuid.UUID, claimantID string, now time.Time) error {
	s.items.mu.Lock()
	item, ok := s.items.rows[itemID]
	if !ok {
		s.items.mu.Unlock()
		return repository.ErrItemNotFound
	}
	if item.Status != model.ItemStatusUnclaimed {
		s.items.mu.Unlock()
		return repository.ErrItemNotClaimable
	}
	item.Status = model.ItemStatusClaimed
	item.ClaimantID = &claimantID
	claimedAt := now
	item.ClaimedAt = &claimedAt
	s.items.mu.Unlock()

	return s.Delete(context.Background(), itemID, claimantID)
}

// ── Stub collaborators ─────────────────────────────────────────────────────

type sentMail struct {
	to   string
	body string
}

type stubMailer struct {
	mu   sync.Mutex
	fail bool
	sent []sentMail
}

func (m *stubMailer) Send(_ context.Context, to, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp: connection refused")
	}
	m.sent = append(m.sent, sentMail{to: to, body: body})
	return nil
}

type stubPhotoStore struct{}

func (stubPhotoStore) Upload(_ context.Context, _ string, r io.Reader, _ int64, _ string) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

func (stubPhotoStore) URL(_ context.Context, key string) (string, error) {
	return "https://photos.test/" + key, nil
}

type stubLabeler struct {
	labels []string
}

func (l *stubLabeler) LabelImage(_ context.Context, _ string) ([]string, error) {
	return l.labels, nil
}

// ── Router setup ───────────────────────────────────────────────────────────

const adminSecret = "moderator-secret"

// fakeAuth stands in for the identity middleware and injects a fixed user.
func fakeAuth(id, email, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", id)
		c.Set("user_email", email)
		c.Set("user_role", role)
		c.Next()
	}
}

type testEnv struct {
	router     *gin.Engine
	items      *stubItemStore
	challenges *stubChallengeStore
	mailer     *stubMailer
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	items := newStubItemStore()
	challenges := newStubChallengeStore(items)
	mailer := &stubMailer{}

	itemSvc := service.NewItemService(items, stubPhotoStore{},
		&stubLabeler{labels: []string{"phone", "electronics"}}, mailer, zap.NewNop())
	claimSvc := service.NewClaimService(items, challenges, mailer, zap.NewNop())

	hash, err := bcrypt.GenerateFromPassword([]byte(adminSecret), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	r := gin.New()
	v1 := r.Group("/api/v1")
	userAuth := fakeAuth("student-1", "student-1@campus.test", "")
	handler.NewItemHandler(itemSvc, zap.NewNop()).Register(v1, userAuth, handler.AdminAuth(string(hash)))
	noLimit := func(c *gin.Context) { c.Next() }
	handler.NewClaimHandler(claimSvc, zap.NewNop()).Register(v1, userAuth, noLimit)

	return &testEnv{router: r, items: items, challenges: challenges, mailer: mailer}
}

func doJSON(env *testEnv, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func seedUnclaimed(env *testEnv, t model.ItemType, title string, labels []string) uuid.UUID {
	return env.items.seed(&model.Item{
		Type:          t,
		Status:        model.ItemStatusUnclaimed,
		Title:         title,
		ImageLabels:   labels,
		ReporterID:    "reporter-" + title,
		ReporterEmail: "reporter@campus.test",
		IsApproved:    true,
	})
}

// ── Item routes ────────────────────────────────────────────────────────────

func TestReportItem_201(t *testing.T) {
	env := setupRouter(t)

	w := doJSON(env, http.MethodPost, "/api/v1/items",
		`{"type":"lost","title":"Black iPhone 13","location":"Main Library"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp model.Item
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != model.ItemStatusPending {
		t.Errorf("Status: got %q, want pending", resp.Status)
	}
	if resp.ReporterID != "student-1" {
		t.Errorf("ReporterID must come from the token, got %q", resp.ReporterID)
	}
}

func TestReportItem_400_badType(t *testing.T) {
	env := setupRouter(t)

	w := doJSON(env, http.MethodPost, "/api/v1/items",
		`{"type":"stolen","title":"Bike"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListItems_onlyApproved(t *testing.T) {
	env := setupRouter(t)

	seedUnclaimed(env, model.ItemTypeFound, "Approved", nil)
	env.items.seed(&model.Item{
		Type:   model.ItemTypeFound,
		Status: model.ItemStatusPending,
		Title:  "Awaiting moderation",
	})

	w := doJSON(env, http.MethodGet, "/api/v1/items", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Items []model.Item `json:"items"`
		Count int          `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || len(resp.Items) != 1 {
		t.Fatalf("count: got %d, want 1", resp.Count)
	}
	if resp.Items[0].Title != "Approved" {
		t.Errorf("listed %q, want the approved item", resp.Items[0].Title)
	}
}

func TestGetItem_404(t *testing.T) {
	env := setupRouter(t)
	w := doJSON(env, http.MethodGet, "/api/v1/items/"+uuid.NewString(), "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetItem_400_badID(t *testing.T) {
	env := setupRouter(t)
	w := doJSON(env, http.MethodGet, "/api/v1/items/not-a-uuid", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestMatches_200(t *testing.T) {
	env := setupRouter(t)

	seedUnclaimed(env, model.ItemTypeFound, "Found phone", []string{"phone", "black"})
	lost := seedUnclaimed(env, model.ItemTypeLost, "Lost phone", []string{"phone", "black"})

	w := doJSON(env, http.MethodGet, "/api/v1/items/"+lost.String()+"/matches", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Matches []struct {
			Item  model.Item `json:"item"`
			Score float64    `json:"score"`
		} `json:"matches"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Matches) != 1 {
		t.Fatalf("matches: got %d, want 1", len(resp.Matches))
	}
	if resp.Matches[0].Score != 100 {
		t.Errorf("score: got %v, want 100", resp.Matches[0].Score)
	}
}

func TestUploadPhoto_200_labelsReturned(t *testing.T) {
	env := setupRouter(t)
	id := seedUnclaimed(env, model.ItemTypeFound, "Found phone", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/"+id.String()+"/photo",
		strings.NewReader("jpeg-bytes"))
	req.Header.Set("Content-Type", "image/jpeg")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		ImageLabels []string `json:"image_labels"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.ImageLabels) != 2 {
		t.Errorf("labels: got %v", resp.ImageLabels)
	}
}

func TestUploadPhoto_400_emptyBody(t *testing.T) {
	env := setupRouter(t)
	id := seedUnclaimed(env, model.ItemTypeFound, "Found phone", nil)

	w := doJSON(env, http.MethodPost, "/api/v1/items/"+id.String()+"/photo", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

// ── Moderation routes ──────────────────────────────────────────────────────

func TestModerationQueue_403_withoutSecret(t *testing.T) {
	env := setupRouter(t)
	w := doJSON(env, http.MethodGet, "/api/v1/admin/items", "", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestModerationQueue_200_withSecret(t *testing.T) {
	env := setupRouter(t)
	env.items.seed(&model.Item{
		Type:   model.ItemTypeFound,
		Status: model.ItemStatusPending,
		Title:  "Awaiting moderation",
	})

	w := doJSON(env, http.MethodGet, "/api/v1/admin/items", "",
		map[string]string{"X-Admin-Secret": adminSecret})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 {
		t.Errorf("count: got %d, want 1", resp.Count)
	}
}

func TestApprove_movesItemIntoListing(t *testing.T) {
	env := setupRouter(t)
	id := env.items.seed(&model.Item{
		Type:          model.ItemTypeFound,
		Status:        model.ItemStatusPending,
		Title:         "Blue backpack",
		ReporterID:    "finder",
		ReporterEmail: "finder@campus.test",
	})

	w := doJSON(env, http.MethodPost, "/api/v1/admin/items/"+id.String()+"/approve", "",
		map[string]string{"X-Admin-Secret": adminSecret})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	item, _ := env.items.GetByID(context.Background(), id)
	if item.Status != model.ItemStatusUnclaimed || !item.IsApproved {
		t.Errorf("item after approve: status=%q approved=%v", item.Status, item.IsApproved)
	}
}

func TestReject_removesItem(t *testing.T) {
	env := setupRouter(t)
	id := env.items.seed(&model.Item{
		Type:   model.ItemTypeFound,
		Status: model.ItemStatusPending,
		Title:  "Spam",
	})

	w := doJSON(env, http.MethodPost, "/api/v1/admin/items/"+id.String()+"/reject", "",
		map[string]string{"X-Admin-Secret": adminSecret})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if _, err := env.items.GetByID(context.Background(), id); !errors.Is(err, repository.ErrItemNotFound) {
		t.Errorf("expected item gone, got %v", err)
	}
}

func TestAdminRoutes_adminRoleToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	items := newStubItemStore()
	itemSvc := service.NewItemService(items, stubPhotoStore{}, &stubLabeler{}, &stubMailer{}, zap.NewNop())

	r := gin.New()
	v1 := r.Group("/api/v1")
	// Token carries the admin role; no operator secret configured.
	handler.NewItemHandler(itemSvc, zap.NewNop()).
		Register(v1, fakeAuth("staff-1", "staff-1@campus.test", "admin"), handler.AdminAuth(""))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/items", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin role, got %d", w.Code)
	}
}
