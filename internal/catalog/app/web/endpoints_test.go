package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pimsync_api/internal/auth"
	"pimsync_api/internal/catalog/app/web/handlers"
	"pimsync_api/internal/catalog/business/services/importer"
	"pimsync_api/internal/pim/models"
	"pimsync_api/internal/syncerr"
	"pimsync_api/pkg/logger"
)

type fakeEngine struct {
	ids      []string
	force    bool
	termIDs  []int64
	setID    string
	importFn func() (*importer.BatchResult, error)
}

func (f *fakeEngine) ImportByIds(_ context.Context, ids []string, force bool) (*importer.BatchResult, error) {
	f.ids, f.force = ids, force
	if f.importFn != nil {
		return f.importFn()
	}
	return &importer.BatchResult{RunID: "run-1"}, nil
}

func (f *fakeEngine) ImportRequirementSet(_ context.Context, id string) (*models.RequirementSet, error) {
	f.setID = id
	return &models.RequirementSet{ID: id}, nil
}

func (f *fakeEngine) SyncCategoryLinks(_ context.Context, termIDs ...int64) ([]importer.CategoryLinkStatus, error) {
	f.termIDs = termIDs
	return []importer.CategoryLinkStatus{}, nil
}

type fakeTrigger struct{ force bool }

func (f *fakeTrigger) Trigger(_ context.Context, force bool) (*importer.SyncResult, error) {
	f.force = force
	return &importer.SyncResult{}, nil
}

func newTestRouter(t *testing.T, secret string, engine *fakeEngine, trigger *fakeTrigger) http.Handler {
	t.Helper()
	log := logger.NewNop()
	router, err := SetupRoutes(secret, log,
		handlers.NewImportHandler(engine, log),
		handlers.NewSyncHandler(trigger, log),
		handlers.NewHealthHandler(nil, log),
	)
	if err != nil {
		t.Fatalf("SetupRoutes: %v", err)
	}
	return router
}

func TestSetupRoutesRequiresEveryHandler(t *testing.T) {
	log := logger.NewNop()
	if _, err := SetupRoutes("", log, handlers.NewHealthHandler(nil, log)); err == nil {
		t.Fatalf("missing handlers: expected error")
	}
}

func TestImportRoutePassesIdsAndForce(t *testing.T) {
	engine := &fakeEngine{}
	router := newTestRouter(t, "", engine, &fakeTrigger{})

	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader(`{"ids":["p-1","p-2"],"force":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=%d got=%d body=%s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if len(engine.ids) != 2 || !engine.force {
		t.Fatalf("engine call: ids=%v force=%v", engine.ids, engine.force)
	}
	var result importer.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil || result.RunID != "run-1" {
		t.Fatalf("decode result: run=%q err=%v", result.RunID, err)
	}
}

func TestErrorKindsMapToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"busy", syncerr.Busy("import-busy", "another import is running"), http.StatusConflict},
		{"invalid", syncerr.Invalid("settings-missing", "missing", nil), http.StatusBadRequest},
		{"network", syncerr.Network("pim-unreachable", "dial", nil), http.StatusBadGateway},
		{"auth", syncerr.Auth("pim-auth", "bad key", nil), http.StatusBadGateway},
		{"store", syncerr.Store("db", "down", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{importFn: func() (*importer.BatchResult, error) { return nil, tt.err }}
			router := newTestRouter(t, "", engine, &fakeTrigger{})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/import", nil))
			if rec.Code != tt.want {
				t.Fatalf("status: want=%d got=%d", tt.want, rec.Code)
			}
			var body map[string]string
			_ = json.Unmarshal(rec.Body.Bytes(), &body)
			if body["code"] != syncerr.CodeOf(tt.err) {
				t.Fatalf("code: want=%q got=%q", syncerr.CodeOf(tt.err), body["code"])
			}
		})
	}
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	router := newTestRouter(t, "", &fakeEngine{}, &fakeTrigger{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: want=%d got=%d", http.StatusBadRequest, rec.Code)
	}
}

func TestWrongMethodIsRejected(t *testing.T) {
	router := newTestRouter(t, "", &fakeEngine{}, &fakeTrigger{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/import", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status: want=%d got=%d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestRequirementSetAndCategoryRoutes(t *testing.T) {
	engine := &fakeEngine{}
	router := newTestRouter(t, "", engine, &fakeTrigger{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/import/requirement-set", strings.NewReader(`{"id":"rs-9"}`)))
	if rec.Code != http.StatusOK || engine.setID != "rs-9" {
		t.Fatalf("requirement set: status=%d id=%q", rec.Code, engine.setID)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync/categories", strings.NewReader(`{"term_ids":[4,7]}`)))
	if rec.Code != http.StatusOK || len(engine.termIDs) != 2 || engine.termIDs[1] != 7 {
		t.Fatalf("category sync: status=%d terms=%v", rec.Code, engine.termIDs)
	}
}

func TestAdminRoutesRequireTokenWhenSecretSet(t *testing.T) {
	const secret = "s3cret"
	trigger := &fakeTrigger{}
	router := newTestRouter(t, secret, &fakeEngine{}, trigger)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: want=%d got=%d", http.StatusUnauthorized, rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz stays open: want=%d got=%d", http.StatusOK, rec.Code)
	}

	token, err := auth.IssueToken(secret, "ops", auth.RoleAdmin, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{"force":true}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !trigger.force {
		t.Fatalf("admin token: status=%d force=%v", rec.Code, trigger.force)
	}
}
