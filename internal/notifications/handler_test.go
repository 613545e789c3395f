package notifications_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stayhq/stayhq/internal/notifications"
	"go.uber.org/zap"
)

// stubStore holds notifications in memory, scoped by host like the real
// repository.
type stubStore struct {
	items []*notifications.Notification

	gotOpts notifications.ListOptions
}

func (s *stubStore) List(_ context.Context, hostID uuid.UUID, opts notifications.ListOptions) ([]*notifications.Notification, error) {
	s.gotOpts = opts
	var out []*notifications.Notification
	for _, n := range s.items {
		if n.HostID != hostID {
			continue
		}
		if opts.UnreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *stubStore) MarkRead(_ context.Context, id, hostID uuid.UUID) (bool, error) {
	for _, n := range s.items {
		if n.ID == id && n.HostID == hostID {
			n.IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (s *stubStore) UnreadCount(_ context.Context, hostID uuid.UUID) (int, error) {
	count := 0
	for _, n := range s.items {
		if n.HostID == hostID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func newTestRouter(t *testing.T, store *stubStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := notifications.NewHandler(store, zap.NewNop())

	router := gin.New()
	h.Register(router.Group("/api/v1/hosts/:host_id"))
	return router
}

func TestListNotifications_scopedToHost(t *testing.T) {
	me := uuid.New()
	other := uuid.New()
	store := &stubStore{items: []*notifications.Notification{
		{ID: uuid.New(), HostID: me, Type: notifications.TypeNewBooking, Title: "mine"},
		{ID: uuid.New(), HostID: other, Type: notifications.TypeNewBooking, Title: "not mine"},
	}}
	router := newTestRouter(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/hosts/"+me.String()+"/notifications", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	var resp struct {
		Notifications []*notifications.Notification `json:"notifications"`
		Count         int                           `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 {
		t.Fatalf("count: got %d, want 1", resp.Count)
	}
	if resp.Notifications[0].Title != "mine" {
		t.Errorf("got %q, want the caller's own notification", resp.Notifications[0].Title)
	}
}

func TestListNotifications_filters(t *testing.T) {
	host := uuid.New()
	store := &stubStore{}
	router := newTestRouter(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/hosts/"+host.String()+"/notifications?unread_only=true&type=urgent&priority=high&limit=10", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	want := notifications.ListOptions{UnreadOnly: true, Type: "urgent", Priority: "high", Limit: 10}
	if store.gotOpts != want {
		t.Errorf("options passed to store: got %+v, want %+v", store.gotOpts, want)
	}
}

func TestListNotifications_emptyIsArray(t *testing.T) {
	router := newTestRouter(t, &stubStore{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/hosts/"+uuid.NewString()+"/notifications", nil)
	router.ServeHTTP(w, req)

	var resp map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if string(resp["notifications"]) == "null" {
		t.Error("notifications should be [], not null")
	}
}

func TestMarkRead_ownNotification(t *testing.T) {
	host := uuid.New()
	n := &notifications.Notification{ID: uuid.New(), HostID: host}
	store := &stubStore{items: []*notifications.Notification{n}}
	router := newTestRouter(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut,
		"/api/v1/hosts/"+host.String()+"/notifications/"+n.ID.String()+"/read", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
	if !n.IsRead {
		t.Error("notification should be marked read")
	}
}

func TestMarkRead_otherHosts404(t *testing.T) {
	owner := uuid.New()
	attacker := uuid.New()
	n := &notifications.Notification{ID: uuid.New(), HostID: owner}
	store := &stubStore{items: []*notifications.Notification{n}}
	router := newTestRouter(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut,
		"/api/v1/hosts/"+attacker.String()+"/notifications/"+n.ID.String()+"/read", nil)
	router.ServeHTTP(w, req)

	// Not-owned must be indistinguishable from not-found.
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", w.Code)
	}
	if n.IsRead {
		t.Error("other host's notification must not be mutated")
	}
}

func TestMarkRead_missing404(t *testing.T) {
	router := newTestRouter(t, &stubStore{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut,
		"/api/v1/hosts/"+uuid.NewString()+"/notifications/"+uuid.NewString()+"/read", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", w.Code)
	}
}

func TestUnreadCount(t *testing.T) {
	host := uuid.New()
	store := &stubStore{items: []*notifications.Notification{
		{ID: uuid.New(), HostID: host},
		{ID: uuid.New(), HostID: host, IsRead: true},
		{ID: uuid.New(), HostID: host},
		{ID: uuid.New(), HostID: uuid.New()},
	}}
	router := newTestRouter(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/hosts/"+host.String()+"/notifications/count", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	var resp struct {
		Unread int `json:"unread"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Unread != 2 {
		t.Errorf("unread: got %d, want 2", resp.Unread)
	}
}

func TestBadHostID(t *testing.T) {
	router := newTestRouter(t, &stubStore{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/hosts/nope/notifications", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
}
