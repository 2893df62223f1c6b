package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-wizard/internal/attachment"
	"task-wizard/internal/geocode"
	"task-wizard/internal/mappicker"
	"task-wizard/internal/refdata"
	"task-wizard/internal/review"
	"task-wizard/internal/session"
	"task-wizard/internal/taskform"
	"task-wizard/internal/wizard"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testEnv struct {
	t       *testing.T
	router  *gin.Engine
	store   *attachment.Store
	manager *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := attachment.NewStore(1 << 20)
	manager := session.NewManager(session.WithReleaser(store))
	resolver := geocode.Static{
		Places: map[string]taskform.Coordinate{
			"Central World": {Lat: 13.7466, Lng: 100.5393},
		},
		Names: map[string]geocode.Address{
			"13.7563, 100.5018": {Name: "Sao Chingcha", Details: "Sao Chingcha, Phra Nakhon, Bangkok"},
			"13.7466, 100.5393": {Name: "CentralWorld", Details: "CentralWorld, Pathum Wan, Bangkok"},
		},
	}
	srv := New(Deps{
		Catalog:     refdata.Default(),
		Sessions:    manager,
		Attachments: store,
		Resolver:    resolver,
		Registry:    prometheus.NewRegistry(),
	})
	return &testEnv{t: t, router: srv.Router(), store: store, manager: manager}
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(path string, data []byte) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "parcel.png")
	require.NoError(e.t, err)
	_, err = fw.Write(data)
	require.NoError(e.t, err)
	require.NoError(e.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (e *testEnv) create() WizardResponse {
	rec := e.do(http.MethodPost, "/api/wizards", nil)
	require.Equal(e.t, http.StatusCreated, rec.Code)
	return decode[WizardResponse](e.t, rec)
}

// =============================================================================
// Reference data and ops
// =============================================================================

func TestRefData(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(http.MethodGet, "/api/refdata", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[map[string][]refdata.Option](t, rec)
	assert.Len(t, all, len(refdata.Kinds))

	rec = e.do(http.MethodGet, "/api/refdata/contact", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	contacts := decode[[]refdata.Option](t, rec)
	require.NotEmpty(t, contacts)
	assert.NotEmpty(t, contacts[0].Phone)

	rec = e.do(http.MethodGet, "/api/refdata/vehicles", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newTestEnv(t)
	e.create()

	rec := e.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, rec)["sessions"])

	rec = e.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `taskwizard_http_requests_total{method="POST",route="/api/wizards",status="201"} 1`)
}

// =============================================================================
// Wizard flow
// =============================================================================

func TestHappyPath(t *testing.T) {
	e := newTestEnv(t)
	w := e.create()
	base := "/api/wizards/" + w.ID
	assert.Equal(t, wizard.StepTaskType, w.Step)
	require.Len(t, w.Cards, 1)

	rec := e.do(http.MethodPatch, base, map[string]any{"taskMode": "pick-and-drop", "taskName": "Delivery A"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, want := range []wizard.Step{wizard.StepPickup, wizard.StepDropOff, wizard.StepConfirmation} {
		rec = e.do(http.MethodPost, base+"/next", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, want, decode[WizardResponse](t, rec).Step)
	}

	rec = e.do(http.MethodGet, base+"/review", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	r := decode[review.Review](t, rec)
	assert.Equal(t, 1, r.Total)
	require.Len(t, r.Units, 1)
	assert.Equal(t, "Delivery A - 01", r.Units[0].Heading)

	rec = e.do(http.MethodGet, base+"/review.html", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<span>Total Task:</span> <strong>1</strong>")

	rec = e.do(http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[WizardResponse](t, rec).Submitted)

	rec = e.do(http.MethodPost, base+"/next", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	after := decode[WizardResponse](t, rec)
	assert.False(t, after.Submitted)
	assert.Equal(t, wizard.StepTaskType, after.Step)
	assert.Empty(t, after.Data.TaskName)

	rec = e.do(http.MethodGet, "/metrics", nil)
	assert.Contains(t, rec.Body.String(), "taskwizard_wizard_submitted_total 1")
}

func TestSubmit_WithoutNameIsRejected(t *testing.T) {
	e := newTestEnv(t)
	w := e.create()

	rec := e.do(http.MethodPost, "/api/wizards/"+w.ID+"/jump", map[string]any{"step": 4})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodPost, "/api/wizards/"+w.ID+"/submit", nil)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[map[string]any](t, rec)
	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "taskName")
}

func TestSubmit_BeforeConfirmationIsConflict(t *testing.T) {
	e := newTestEnv(t)
	w := e.create()
	base := "/api/wizards/" + w.ID

	rec := e.do(http.MethodPatch, base, map[string]any{"taskName": "Delivery A"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode[map[string]any](t, rec)["error"], "confirmation step")

	rec = e.do(http.MethodGet, base, nil)
	got := decode[WizardResponse](t, rec)
	assert.False(t, got.Submitted)
	assert.Equal(t, wizard.StepTaskType, got.Step)

	rec = e.do(http.MethodGet, "/metrics", nil)
	assert.NotContains(t, rec.Body.String(), "taskwizard_wizard_submitted_total 1")
}

func TestErrors(t *testing.T) {
	e := newTestEnv(t)
	w := e.create()
	base := "/api/wizards/" + w.ID

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/wizards/nope", nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, base+"/jump", map[string]int{"step": 7}).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodPost, base+"/dropoffs/nope/expand", nil).Code)
	assert.Equal(t, http.StatusBadRequest,
		e.do(http.MethodPut, base+"/pickup/location", map[string]any{"lat": 13.7}).Code,
		"half coordinate")
	assert.Equal(t, http.StatusUnprocessableEntity, e.do(http.MethodPatch, base, map[string]any{"taskMode": "teleport"}).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, base+"/picker/pickup", nil).Code)
}

func TestJumpKeepsData(t *testing.T) {
	e := newTestEnv(t)
	w := e.create()
	base := "/api/wizards/" + w.ID
	require.Equal(t, http.StatusOK, e.do(http.MethodPatch, base, map[string]any{"taskName": "Delivery A"}).Code)
	before := decode[WizardResponse](t, e.do(http.MethodGet, base, nil)).Data

	rec := e.do(http.MethodPost, base+"/jump", map[string]int{"step": 4})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[WizardResponse](t, rec)
	assert.Equal(t, wizard.StepConfirmation, got.Step)
	assert.Equal(t, before, got.Data)
}

func TestCancel(t *testing.T) {
	e := newTestEnv(t)
	w := e.create()

	assert.Equal(t, http.StatusNoContent, e.do(http.MethodDelete, "/api/wizards/"+w.ID, nil).Code)
	assert.Equal(t, 0, e.manager.Count())
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, "/api/wizards/"+w.ID, nil).Code)
}

// =============================================================================
// Drop-offs and contacts
// =============================================================================

func TestDropOffs(t *testing.T) {
	e := newTestEnv(t)
	w := e.create()
	base := "/api/wizards/" + w.ID
	first := w.Data.DropOffs[0].ID

	rec := e.do(http.MethodPost, base+"/dropoffs", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	added := decode[struct {
		DropOff taskform.DropOff `json:"dropOff"`
		Wizard  WizardResponse   `json:"wizard"`
	}](t, rec)
	assert.Len(t, added.Wizard.Data.DropOffs, 2)
	assert.Equal(t, first, added.Wizard.Data.DropOffs[0].ID)
	assert.Equal(t, added.DropOff.ID, added.Wizard.Expanded)

	rec = e.do(http.MethodPut, base+"/dropoffs/"+first+"/parcel", map[string]string{"parcelType": "fragile", "remark": "glass"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[WizardResponse](t, rec)
	assert.Equal(t, "fragile", got.Data.DropOffs[0].Parcel.ParcelType)
	assert.Equal(t, "glass", got.Cards[0].Remark)

	loc := taskform.NewLocation().WithSelectionMode(taskform.EnterManually).WithManualLocation("Back door")
	rec = e.do(http.MethodPut, base+"/dropoffs/"+first+"/location", loc)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Back door", decode[WizardResponse](t, rec).Cards[0].Location)

	rec = e.do(http.MethodPost, base+"/dropoffs/"+first+"/expand", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first, decode[WizardResponse](t, rec).Expanded)

	rec = e.do(http.MethodPost, base+"/collapse", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[WizardResponse](t, rec).Expanded)
}

func TestSelectContact_AutoFills(t *testing.T) {
	e := newTestEnv(t)
	w := e.create()
	base := "/api/wizards/" + w.ID
	drop := w.Data.DropOffs[0].ID

	rec := e.do(http.MethodPost, base+"/contacts/select", map[string]string{"target": "pickup", "contactId": "somchai"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[WizardResponse](t, rec)
	assert.Equal(t, "081-234-5678", got.Data.PickupContact.ContactNo)
	assert.Equal(t, "somchai@company.com", got.Data.PickupContact.Email)

	contact := taskform.NewContact().WithContactNo("02-000-0000")
	require.Equal(t, http.StatusOK, e.do(http.MethodPut, base+"/dropoffs/"+drop+"/contact", contact).Code)
	rec = e.do(http.MethodPost, base+"/contacts/select", map[string]string{"target": drop, "contactId": "stranger"})
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[WizardResponse](t, rec)
	assert.Equal(t, "stranger", got.Data.DropOffs[0].Contact.SelectedName)
	assert.Equal(t, "02-000-0000", got.Data.DropOffs[0].Contact.ContactNo)
}

// =============================================================================
// Images
// =============================================================================

func TestImageLifecycle(t *testing.T) {
	e := newTestEnv(t)
	w := e.create()
	base := "/api/wizards/" + w.ID
	drop := w.Data.DropOffs[0].ID
	path := base + "/dropoffs/" + drop + "/image"

	rec := e.upload(path, pngBytes)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[WizardResponse](t, rec).Data.DropOffs[0].Parcel.ImagePreview
	require.NotEmpty(t, first)

	rec = e.do(http.MethodGet, "/api/previews/"+first, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, rec.Body.Bytes())

	rec = e.upload(path, pngBytes)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[WizardResponse](t, rec).Data.DropOffs[0].Parcel.ImagePreview
	assert.NotEqual(t, first, second)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/previews/"+first, nil).Code)
	assert.Equal(t, 1, e.store.Live())

	rec = e.upload(path, []byte("not an image at all"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, e.store.Files())

	rec = e.upload(base+"/dropoffs/nope/image", pngBytes)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1, e.store.Files(), "orphaned upload is discarded")

	rec = e.do(http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[WizardResponse](t, rec).Data.DropOffs[0].Parcel.ImageFile)
	assert.Equal(t, 0, e.store.Live())
	assert.Equal(t, 0, e.store.Files())
}

func TestReset_ReleasesPreviews(t *testing.T) {
	e := newTestEnv(t)
	w := e.create()
	base := "/api/wizards/" + w.ID
	require.Equal(t, http.StatusOK, e.upload(base+"/dropoffs/"+w.Data.DropOffs[0].ID+"/image", pngBytes).Code)
	require.Equal(t, 1, e.store.Live())

	require.Equal(t, http.StatusOK, e.do(http.MethodPost, base+"/reset", nil).Code)

	assert.Equal(t, 0, e.store.Live())
	assert.Equal(t, 0, e.store.Files())
}

// =============================================================================
// Map picker
// =============================================================================

func TestPicker_ClickAndConfirm(t *testing.T) {
	e := newTestEnv(t)
	w := e.create()
	base := "/api/wizards/" + w.ID

	rec := e.do(http.MethodGet, base+"/preview/pickup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pv := decode[mappicker.Preview](t, rec)
	assert.False(t, pv.HasPin)
	assert.Equal(t, mappicker.PickupPrompt, pv.Prompt)

	require.Equal(t, http.StatusOK, e.do(http.MethodPost, base+"/picker/pickup/open", nil).Code)

	rec = e.do(http.MethodPost, base+"/picker/pickup/click?wait=1", map[string]float64{"lat": 13.7563, "lng": 100.5018})
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[mappicker.State](t, rec)
	assert.Equal(t, "Sao Chingcha", state.Name)

	rec = e.do(http.MethodPost, base+"/picker/pickup/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	loc := decode[WizardResponse](t, rec).Data.PickupLocation
	point, ok := loc.Point()
	require.True(t, ok)
	assert.Equal(t, taskform.Coordinate{Lat: 13.7563, Lng: 100.5018}, point)
	assert.Equal(t, "Sao Chingcha", loc.AddressName)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, base+"/picker/pickup", nil).Code)

	rec = e.do(http.MethodGet, base+"/preview/pickup", nil)
	pv = decode[mappicker.Preview](t, rec)
	assert.True(t, pv.HasPin)
	assert.Equal(t, "Sao Chingcha, Phra Nakhon, Bangkok", pv.Details)

	// reopening starts from the committed point without drift
	rec = e.do(http.MethodPost, base+"/picker/pickup/open", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, point, decode[mappicker.State](t, rec).Point)
}

func TestPicker_SearchLocateAndCancel(t *testing.T) {
	e := newTestEnv(t)
	w := e.create()
	drop := w.Data.DropOffs[0].ID
	base := "/api/wizards/" + w.ID + "/picker/" + drop

	require.Equal(t, http.StatusOK, e.do(http.MethodPost, base+"/open", nil).Code)

	rec := e.do(http.MethodPost, base+"/search?wait=1", map[string]string{"query": "Nowhere Town"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, taskform.Coordinate{Lat: 13.7563, Lng: 100.5018}, decode[mappicker.State](t, rec).Point)

	rec = e.do(http.MethodPost, base+"/search?wait=1", map[string]string{"query": "central world"})
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[mappicker.State](t, rec)
	assert.Equal(t, taskform.Coordinate{Lat: 13.7466, Lng: 100.5393}, state.Point)
	assert.Equal(t, "CentralWorld", state.Name)

	rec = e.do(http.MethodPost, base+"/locate", map[string]bool{"denied": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, taskform.Coordinate{Lat: 13.7466, Lng: 100.5393}, decode[mappicker.State](t, rec).Point)

	rec = e.do(http.MethodPost, base+"/resize", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNoContent, e.do(http.MethodPost, base+"/cancel", nil).Code)
	rec = e.do(http.MethodGet, "/api/wizards/"+w.ID, nil)
	assert.False(t, decode[WizardResponse](t, rec).Data.DropOffs[0].Location.HasPoint())
}

func TestPicker_UnknownTarget(t *testing.T) {
	e := newTestEnv(t)
	w := e.create()

	rec := e.do(http.MethodPost, "/api/wizards/"+w.ID+"/picker/nope/open", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
