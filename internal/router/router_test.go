package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountHandler "github.com/jwalitptl/dentallab-api/internal/handler/account"
	catalogHandler "github.com/jwalitptl/dentallab-api/internal/handler/catalog"
	"github.com/jwalitptl/dentallab-api/internal/handler/health"
	jobHandler "github.com/jwalitptl/dentallab-api/internal/handler/job"
	notificationHandler "github.com/jwalitptl/dentallab-api/internal/handler/notification"
	partnershipHandler "github.com/jwalitptl/dentallab-api/internal/handler/partnership"
	"github.com/jwalitptl/dentallab-api/internal/handler/prometheus"
	"github.com/jwalitptl/dentallab-api/internal/middleware"
	"github.com/jwalitptl/dentallab-api/internal/push"
	"github.com/jwalitptl/dentallab-api/internal/router"
	accountService "github.com/jwalitptl/dentallab-api/internal/service/account"
	catalogService "github.com/jwalitptl/dentallab-api/internal/service/catalog"
	jobService "github.com/jwalitptl/dentallab-api/internal/service/job"
	notificationService "github.com/jwalitptl/dentallab-api/internal/service/notification"
	partnershipService "github.com/jwalitptl/dentallab-api/internal/service/partnership"
	"github.com/jwalitptl/dentallab-api/internal/service/pricing"
	"github.com/jwalitptl/dentallab-api/internal/testutil"
	"github.com/jwalitptl/dentallab-api/pkg/auth"
	"github.com/jwalitptl/dentallab-api/pkg/logger"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code int    `json:"code"`
		Kind string `json:"kind"`
	} `json:"error"`
}

type testAPI struct {
	t        *testing.T
	engine   *gin.Engine
	verifier *auth.Verifier
	fx       *testutil.Fixtures
	pusher   *testutil.RecordingPusher
}

func newTestAPI(t *testing.T) *testAPI {
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	repos := fx.Repos
	verifier := auth.NewVerifier("test-secret", "dentallab")
	pusher := &testutil.RecordingPusher{}

	notifier := notificationService.NewService(repos.Notifications, pusher, nil, nil)
	accountSvc := accountService.NewService(repos.Labs, repos.Clinics, nil, 0)
	catalogSvc := catalogService.NewService(repos.Tx, repos.Catalog, repos.PriceTables, repos.Links, nil, nil)
	partnershipSvc := partnershipService.NewService(partnershipService.Dependencies{
		Tx:          repos.Tx,
		Labs:        repos.Labs,
		Clinics:     repos.Clinics,
		Links:       repos.Links,
		Invites:     repos.Invites,
		PriceTables: repos.PriceTables,
		Jobs:        repos.Jobs,
		Notifier:    notifier,
		BaseURL:     "https://portal.example",
	})
	jobSvc := jobService.NewService(jobService.Dependencies{
		Tx:          repos.Tx,
		Jobs:        repos.Jobs,
		Attachments: repos.Attachments,
		Messages:    repos.Messages,
		Labs:        repos.Labs,
		Clinics:     repos.Clinics,
		Links:       repos.Links,
		Pricer:      pricing.NewResolver(repos.Catalog, repos.Links, repos.PriceTables),
		Notifier:    notifier,
		Blobs:       testutil.NewMemoryBlobStore(),
	})

	hub := push.NewHub(logger.Nop(), nil)
	t.Cleanup(hub.Close)

	r := router.NewRouter(middleware.NewAuthMiddleware(verifier, accountSvc), router.Handlers{
		Account:      accountHandler.NewHandler(accountSvc),
		Partnership:  partnershipHandler.NewHandler(partnershipSvc),
		Catalog:      catalogHandler.NewHandler(catalogSvc),
		Job:          jobHandler.NewHandler(jobSvc, 1<<20),
		Notification: notificationHandler.NewHandler(notifier, hub),
		Health:       health.NewHandler(db),
		Metrics:      prometheus.New(nil),
	}, router.RouterConfig{
		CORSConfig: middleware.NewCORSConfig(nil),
		Security:   middleware.NewSecurityConfig(false),
		SizeLimit:  middleware.DefaultSizeLimitConfig(),
	})
	r.Setup()

	return &testAPI{t: t, engine: r.Engine(), verifier: verifier, fx: fx, pusher: pusher}
}

func (a *testAPI) token(subject, role string) string {
	a.t.Helper()
	token, err := a.verifier.Issue(subject, subject+"@example.com", role, time.Hour)
	require.NoError(a.t, err)
	return token
}

func (a *testAPI) do(method, path, token string, body interface{}) (int, apiResponse) {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestHealthIsPublic(t *testing.T) {
	api := newTestAPI(t)

	code, _ := api.do(http.MethodGet, "/api/v1/health/live", "", nil)
	assert.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil)
	w := httptest.NewRecorder()
	api.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database"`)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	code, resp := api.do(http.MethodGet, "/api/v1/jobs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "Unauthorized", resp.Error.Kind)

	code, _ = api.do(http.MethodGet, "/api/v1/jobs", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	// A valid token without a registered account cannot reach domain routes.
	code, _ = api.do(http.MethodGet, "/api/v1/jobs", api.token("nobody", ""), nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLabRegistrationAwaitsApproval(t *testing.T) {
	api := newTestAPI(t)
	labToken := api.token("lab-owner", "")

	code, resp := api.do(http.MethodPost, "/api/v1/accounts/labs", labToken, map[string]string{"name": "Prime Lab"})
	require.Equal(t, http.StatusCreated, code)
	var lab struct {
		ID     string `json:"id"`
		Active bool   `json:"active"`
	}
	decode(t, resp.Data, &lab)
	assert.False(t, lab.Active)

	code, resp = api.do(http.MethodGet, "/api/v1/accounts/me", labToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Forbidden", resp.Error.Kind)

	code, _ = api.do(http.MethodPost, "/api/v1/admin/labs/"+lab.ID+"/activate", labToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = api.do(http.MethodPost, "/api/v1/admin/labs/"+lab.ID+"/activate", api.token("root", auth.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, code)

	code, resp = api.do(http.MethodGet, "/api/v1/accounts/me", labToken, nil)
	require.Equal(t, http.StatusOK, code)
	var me struct {
		Kind string `json:"kind"`
	}
	decode(t, resp.Data, &me)
	assert.Equal(t, "lab", me.Kind)
}

func TestInviteJobAndNotificationFlow(t *testing.T) {
	api := newTestAPI(t)

	lab := api.fx.Lab("Prime Lab")
	clinic := api.fx.Clinic("Smile Clinic")
	labToken := api.token(lab.OwnerSubject, "")
	clinicToken := api.token(*clinic.OwnerSubject, "")

	code, resp := api.do(http.MethodPost, "/api/v1/invites", labToken, nil)
	require.Equal(t, http.StatusCreated, code)
	var invite struct {
		Token string `json:"token"`
		Link  string `json:"link"`
	}
	decode(t, resp.Data, &invite)
	assert.Equal(t, "https://portal.example/invite/"+invite.Token, invite.Link)

	code, _ = api.do(http.MethodPost, "/api/v1/invites/"+invite.Token+"/redeem", clinicToken, nil)
	require.Equal(t, http.StatusCreated, code)

	code, resp = api.do(http.MethodPost, "/api/v1/invites/"+invite.Token+"/redeem", clinicToken, nil)
	assert.Equal(t, http.StatusGone, code)
	assert.Equal(t, "InvalidInvite", resp.Error.Kind)

	code, resp = api.do(http.MethodPost, "/api/v1/jobs", clinicToken, map[string]interface{}{
		"lab_id":        lab.ID,
		"clinic_id":     clinic.ID,
		"patient_name":  "Maria Silva",
		"promised_date": time.Now().AddDate(0, 0, 5).UTC().Format(time.RFC3339),
		"manual_price":  120,
	})
	require.Equal(t, http.StatusCreated, code)
	var job struct {
		ID         string  `json:"id"`
		Status     string  `json:"status"`
		FinalPrice float64 `json:"final_price"`
	}
	decode(t, resp.Data, &job)
	assert.Equal(t, "Pending", job.Status)
	assert.Equal(t, 120.0, job.FinalPrice)

	// Only the lab moves a job through production.
	code, _ = api.do(http.MethodPut, "/api/v1/jobs/"+job.ID+"/status", clinicToken, map[string]string{"status": "InProduction"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, resp = api.do(http.MethodPut, "/api/v1/jobs/"+job.ID+"/status", labToken, map[string]string{"status": "Completed"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "InvalidTransition", resp.Error.Kind)

	code, resp = api.do(http.MethodPut, "/api/v1/jobs/"+job.ID+"/status", labToken, map[string]string{"status": "EmProva"})
	require.Equal(t, http.StatusOK, code)
	decode(t, resp.Data, &job)
	assert.Equal(t, "InProduction", job.Status)

	code, resp = api.do(http.MethodGet, "/api/v1/notifications/unread-count", clinicToken, nil)
	require.Equal(t, http.StatusOK, code)
	var unread struct {
		Unread int `json:"unread"`
	}
	decode(t, resp.Data, &unread)
	assert.Equal(t, 1, unread.Unread)

	code, _ = api.do(http.MethodPut, "/api/v1/notifications/read-all", clinicToken, nil)
	require.Equal(t, http.StatusOK, code)
	_, resp = api.do(http.MethodGet, "/api/v1/notifications/unread-count", clinicToken, nil)
	decode(t, resp.Data, &unread)
	assert.Zero(t, unread.Unread)

	code, resp = api.do(http.MethodGet, "/api/v1/notifications?page=1&page_size=1", labToken, nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		Data       []json.RawMessage `json:"data"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	decode(t, resp.Data, &page)
	assert.Len(t, page.Data, 1)
	// New partner linked and new job received.
	assert.Equal(t, 2, page.Pagination.Total)

	assert.NotEmpty(t, api.pusher.Sent())
}

func TestJobListFilters(t *testing.T) {
	api := newTestAPI(t)

	lab := api.fx.Lab("Prime Lab")
	clinic := api.fx.Clinic("Smile Clinic")
	api.fx.Link(lab.ID, clinic.ID, nil)
	api.fx.Job(lab.ID, clinic.ID, "Pending", time.Now().AddDate(0, 0, -3))
	api.fx.Job(lab.ID, clinic.ID, "Completed", time.Now().AddDate(0, 0, -3))
	labToken := api.token(lab.OwnerSubject, "")

	code, resp := api.do(http.MethodGet, "/api/v1/jobs?late=true", labToken, nil)
	require.Equal(t, http.StatusOK, code)
	var jobs []struct {
		Late bool `json:"late"`
	}
	decode(t, resp.Data, &jobs)
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].Late)

	code, resp = api.do(http.MethodGet, "/api/v1/jobs?status=Finalizado", labToken, nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, resp.Data, &jobs)
	assert.Len(t, jobs, 1)

	code, _ = api.do(http.MethodGet, "/api/v1/jobs?status=Shipped", labToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = api.do(http.MethodGet, "/api/v1/jobs/summary", labToken, nil)
	require.Equal(t, http.StatusOK, code)
	var summary struct {
		LateCount int `json:"late_count"`
	}
	decode(t, resp.Data, &summary)
	assert.Equal(t, 1, summary.LateCount)

	// The other lab's clinic sees nothing of this lab's work.
	other := api.fx.Clinic("Elsewhere")
	code, resp = api.do(http.MethodGet, "/api/v1/jobs", api.token(*other.OwnerSubject, ""), nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, resp.Data, &jobs)
	assert.Empty(t, jobs)
}

func TestCatalogRoutes(t *testing.T) {
	api := newTestAPI(t)

	lab := api.fx.Lab("Prime Lab")
	labToken := api.token(lab.OwnerSubject, "")

	code, resp := api.do(http.MethodPost, "/api/v1/services", labToken, map[string]interface{}{
		"name": "Zirconia crown", "base_price": 100, "lead_time_days": 5,
	})
	require.Equal(t, http.StatusCreated, code)

	code, resp = api.do(http.MethodPost, "/api/v1/price-tables", labToken, map[string]string{"name": "Partners"})
	require.Equal(t, http.StatusCreated, code)
	var table struct {
		ID string `json:"id"`
	}
	decode(t, resp.Data, &table)

	code, resp = api.do(http.MethodPost, "/api/v1/price-tables/"+table.ID+"/import", labToken, map[string]float64{"discount_percent": 15})
	require.Equal(t, http.StatusOK, code)
	var result struct {
		Imported int `json:"imported"`
	}
	decode(t, resp.Data, &result)
	assert.Equal(t, 1, result.Imported)

	code, resp = api.do(http.MethodGet, "/api/v1/price-tables/"+table.ID, labToken, nil)
	require.Equal(t, http.StatusOK, code)
	var detail struct {
		Items []struct {
			Price float64 `json:"price"`
		} `json:"items"`
	}
	decode(t, resp.Data, &detail)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, 85.0, detail.Items[0].Price)

	code, _ = api.do(http.MethodGet, "/api/v1/price-tables/not-a-uuid", labToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
