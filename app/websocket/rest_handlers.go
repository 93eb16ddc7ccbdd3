package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"PosPrint/app/models"

	"gorm.io/gorm"
)

// JobController is the slice of the dispatcher the REST surface needs.
// Declared here to avoid importing the services package directly.
type JobController interface {
	RetryJob(jobID uint) error
	ProcessPendingJobs() (int, error)
}

// PrinterTester prints the diagnostic page on a specific printer
type PrinterTester interface {
	PrintSelfTest(printer *models.PrinterConfig) error
}

// PrinterAdmin mutates the printer registry while keeping its invariants,
// such as a single default printer per role
type PrinterAdmin interface {
	SetDefault(printerID uint) error
}

// RESTHandlers provides HTTP endpoints for order terminals to inspect the
// print queue and the printer registry
type RESTHandlers struct {
	db       *gorm.DB
	jobs     JobController
	tester   PrinterTester
	printers PrinterAdmin
}

// NewRESTHandlers creates a new REST handlers instance
func NewRESTHandlers(db *gorm.DB, jobs JobController, tester PrinterTester, printers PrinterAdmin) *RESTHandlers {
	return &RESTHandlers{db: db, jobs: jobs, tester: tester, printers: printers}
}

// Register attaches all endpoints to the mux
func (h *RESTHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/jobs", h.HandleJobs)
	mux.HandleFunc("/api/jobs/", h.HandleJobByID)
	mux.HandleFunc("/api/printers", h.HandleGetPrinters)
	mux.HandleFunc("/api/printers/", h.HandlePrinterByID)
}

// JobResponse is the queue entry shape returned to terminals. The raw
// ESC/POS payload is omitted.
type JobResponse struct {
	ID        uint   `json:"id"`
	BillID    string `json:"bill_id"`
	Kind      string `json:"kind"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	Origin    string `json:"origin"`
	LastError string `json:"last_error,omitempty"`
	CreatedAt string `json:"created_at"`
}

// HandleJobs returns recent print jobs, newest first
func (h *RESTHandlers) HandleJobs(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var jobs []models.PrintJob
	query := h.db.Order("created_at DESC").Limit(100)
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Find(&jobs).Error; err != nil {
		log.Printf("REST: failed to load jobs: %v", err)
		http.Error(w, "Failed to load jobs", http.StatusInternalServerError)
		return
	}

	resp := make([]JobResponse, 0, len(jobs))
	for i := range jobs {
		resp = append(resp, toJobResponse(&jobs[i]))
	}
	writeJSON(w, resp)
}

// HandleJobByID serves GET /api/jobs/{id} and POST /api/jobs/{id}/retry
func (h *RESTHandlers) HandleJobByID(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	idPart, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseUint(idPart, 10, 32)
	if err != nil {
		http.Error(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	if r.Method == http.MethodPost && action == "retry" {
		if err := h.jobs.RetryJob(uint(id)); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		// Drain immediately so the retry is not stuck until the next tick
		go h.jobs.ProcessPendingJobs()
		writeJSON(w, map[string]string{"status": "retrying"})
		return
	}

	if r.Method != http.MethodGet || action != "" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var job models.PrintJob
	if err := h.db.First(&job, uint(id)).Error; err != nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, toJobResponse(&job))
}

// PrinterResponse is the registry entry shape returned to terminals
type PrinterResponse struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	Transport  string `json:"transport"`
	Address    string `json:"address"`
	Port       int    `json:"port,omitempty"`
	Role       string `json:"role"`
	PaperWidth string `json:"paper_width"`
	IsDefault  bool   `json:"is_default"`
	IsActive   bool   `json:"is_active"`
}

// HandleGetPrinters returns the configured printer registry
func (h *RESTHandlers) HandleGetPrinters(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var printers []models.PrinterConfig
	if err := h.db.Order("role, name").Find(&printers).Error; err != nil {
		log.Printf("REST: failed to load printers: %v", err)
		http.Error(w, "Failed to load printers", http.StatusInternalServerError)
		return
	}

	resp := make([]PrinterResponse, 0, len(printers))
	for i := range printers {
		p := &printers[i]
		resp = append(resp, PrinterResponse{
			ID:         p.ID,
			Name:       p.Name,
			Transport:  p.Transport,
			Address:    p.Address,
			Port:       p.Port,
			Role:       string(p.Role),
			PaperWidth: string(p.PaperWidth),
			IsDefault:  p.IsDefault,
			IsActive:   p.IsActive,
		})
	}
	writeJSON(w, resp)
}

// HandlePrinterByID serves POST /api/printers/{id}/test and
// POST /api/printers/{id}/default
func (h *RESTHandlers) HandlePrinterByID(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/printers/")
	idPart, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseUint(idPart, 10, 32)
	if err != nil {
		http.Error(w, "Invalid printer id", http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "test":
		if h.tester == nil {
			http.Error(w, "Self test unavailable", http.StatusServiceUnavailable)
			return
		}
		var printer models.PrinterConfig
		if err := h.db.First(&printer, uint(id)).Error; err != nil {
			http.Error(w, "Printer not found", http.StatusNotFound)
			return
		}
		if err := h.tester.PrintSelfTest(&printer); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]string{"status": "printed"})

	case "default":
		if h.printers == nil {
			http.Error(w, "Registry unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := h.printers.SetDefault(uint(id)); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]string{"status": "default set"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func toJobResponse(job *models.PrintJob) JobResponse {
	return JobResponse{
		ID:        job.ID,
		BillID:    job.BillID,
		Kind:      string(job.Kind),
		Role:      string(job.Role),
		Status:    string(job.Status),
		Origin:    job.Origin,
		LastError: job.LastError,
		CreatedAt: job.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
