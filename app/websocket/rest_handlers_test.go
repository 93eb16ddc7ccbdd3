package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"PosPrint/app/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeJobs struct {
	retried []uint
}

func (f *fakeJobs) RetryJob(jobID uint) error {
	f.retried = append(f.retried, jobID)
	return nil
}

func (f *fakeJobs) ProcessPendingJobs() (int, error) { return 0, nil }

type fakeAdmin struct{}

func (f *fakeAdmin) SetDefault(printerID uint) error { return nil }

type fakeTester struct {
	tested []string
}

func (f *fakeTester) PrintSelfTest(printer *models.PrinterConfig) error {
	f.tested = append(f.tested, printer.Name)
	return nil
}

func setupHandlers(t *testing.T) (*RESTHandlers, *gorm.DB, *fakeJobs) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PrinterConfig{}, &models.PrintJob{}))

	jobs := &fakeJobs{}
	return NewRESTHandlers(db, jobs, &fakeTester{}, &fakeAdmin{}), db, jobs
}

func TestHandleJobsListsQueue(t *testing.T) {
	h, db, _ := setupHandlers(t)
	require.NoError(t, db.Create(&models.PrintJob{
		BillID: "B-1", Kind: models.JobKindBill, Role: models.RoleCounter,
		Status: models.JobStatusPending, Payload: []byte{1, 2},
	}).Error)

	rec := httptest.NewRecorder()
	h.HandleJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "B-1", resp[0].BillID)
	assert.Equal(t, "pending", resp[0].Status)
	// Raw device bytes never leave the agent
	assert.NotContains(t, rec.Body.String(), "payload")
}

func TestHandleJobsFiltersByStatus(t *testing.T) {
	h, db, _ := setupHandlers(t)
	db.Create(&models.PrintJob{BillID: "B-1", Status: models.JobStatusPending})
	db.Create(&models.PrintJob{BillID: "B-2", Status: models.JobStatusFailed})

	rec := httptest.NewRecorder()
	h.HandleJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?status=failed", nil))

	var resp []JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "B-2", resp[0].BillID)
}

func TestHandleJobRetry(t *testing.T) {
	h, db, jobs := setupHandlers(t)
	job := models.PrintJob{BillID: "B-1", Status: models.JobStatusFailed}
	require.NoError(t, db.Create(&job).Error)

	rec := httptest.NewRecorder()
	h.HandleJobByID(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/1/retry", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uint{1}, jobs.retried)
}

func TestHandleJobByIDRejectsBadID(t *testing.T) {
	h, _, _ := setupHandlers(t)

	rec := httptest.NewRecorder()
	h.HandleJobByID(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePrinterSelfTest(t *testing.T) {
	h, db, _ := setupHandlers(t)
	require.NoError(t, db.Create(&models.PrinterConfig{Name: "Counter", Transport: models.TransportFile}).Error)

	rec := httptest.NewRecorder()
	h.HandlePrinterByID(rec, httptest.NewRequest(http.MethodPost, "/api/printers/1/test", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.HandlePrinterByID(rec, httptest.NewRequest(http.MethodPost, "/api/printers/42/test", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetPrinters(t *testing.T) {
	h, db, _ := setupHandlers(t)
	require.NoError(t, db.Create(&models.PrinterConfig{
		Name: "Counter", Transport: models.TransportUSB, Address: "04b8:0e15",
		Role: models.RoleCounter, PaperWidth: models.PaperWide, IsActive: true,
	}).Error)

	rec := httptest.NewRecorder()
	h.HandleGetPrinters(rec, httptest.NewRequest(http.MethodGet, "/api/printers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []PrinterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "04b8:0e15", resp[0].Address)
	assert.Equal(t, "counter", resp[0].Role)
}
