package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"PosPrint/app/models"

	"gorm.io/gorm"
)

// dedupWindow is how long a queued job suppresses identical print requests.
// Within this window a second request for the same bill and document kind is
// treated as a duplicate button press and reported as already handled.
const dedupWindow = 30 * time.Second

// ErrNoPrintMethod means every delivery tier was exhausted
var ErrNoPrintMethod = errors.New("no print method available")

// DialogFunc is a last-resort delivery hook, typically a host UI print
// dialog. It receives the rendered document so the host can reformat it.
type DialogFunc func(doc *PrintableDocument, payload []byte) error

// JobNotifier receives job lifecycle transitions for broadcast
type JobNotifier interface {
	NotifyJob(job *models.PrintJob, event string)
}

// PrintDispatcher delivers encoded documents, falling back from direct
// transport to a durable queue to a host dialog
type PrintDispatcher struct {
	db       *gorm.DB
	printers *PrinterService
	dialog   DialogFunc
	notifier JobNotifier
	now      func() time.Time // override in tests
}

// NewPrintDispatcher creates a dispatcher over the given transport layer
func NewPrintDispatcher(db *gorm.DB, printers *PrinterService) *PrintDispatcher {
	return &PrintDispatcher{
		db:       db,
		printers: printers,
		now:      time.Now,
	}
}

// SetDialogFallback registers the host print dialog hook
func (d *PrintDispatcher) SetDialogFallback(fn DialogFunc) {
	d.dialog = fn
}

// SetNotifier registers a job status listener
func (d *PrintDispatcher) SetNotifier(n JobNotifier) {
	d.notifier = n
}

// DispatchResult reports how a document was delivered
type DispatchResult struct {
	Delivered bool   `json:"delivered"` // reached a printer directly
	Queued    bool   `json:"queued"`    // stored as a pending job
	Duplicate bool   `json:"duplicate"` // suppressed by the dedup window
	Method    string `json:"method"`    // direct | queue | dialog
	JobID     uint   `json:"jobId,omitempty"`
}

// Dispatch delivers payload for the given bill and document. Tiers:
// direct transport, durable queued job, host dialog. Only when all three
// are unavailable does it fail.
func (d *PrintDispatcher) Dispatch(billID string, doc *PrintableDocument, payload []byte, role models.PrinterRole, origin string) (*DispatchResult, error) {
	printer, err := d.printers.PrinterForRole(role)
	if err == nil {
		if terr := d.printers.Transfer(printer, payload); terr == nil {
			return &DispatchResult{Delivered: true, Method: "direct"}, nil
		} else {
			logTransferFailure(printer, terr)
		}
	}

	if d.db != nil {
		result, qerr := d.enqueue(billID, doc.Kind, role, payload, origin)
		if qerr == nil {
			return result, nil
		}
	}

	if d.dialog != nil {
		if derr := d.dialog(doc, payload); derr == nil {
			return &DispatchResult{Delivered: true, Method: "dialog"}, nil
		}
	}

	return nil, ErrNoPrintMethod
}

// enqueue stores the document as a pending job unless an identical job is
// already waiting inside the dedup window
func (d *PrintDispatcher) enqueue(billID string, kind DocumentKind, role models.PrinterRole, payload []byte, origin string) (*DispatchResult, error) {
	cutoff := d.now().Add(-dedupWindow)

	var existing models.PrintJob
	err := d.db.Where("bill_id = ? AND kind = ? AND status = ? AND created_at > ?",
		billID, string(kind), models.JobStatusPending, cutoff).
		First(&existing).Error
	if err == nil {
		// Same document is already waiting; report it as handled
		return &DispatchResult{Queued: true, Duplicate: true, Method: "queue", JobID: existing.ID}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check pending jobs: %w", err)
	}

	job := models.PrintJob{
		BillID:  billID,
		Kind:    models.JobKind(kind),
		Role:    role,
		Status:  models.JobStatusPending,
		Payload: payload,
		Origin:  origin,
	}
	if err := d.db.Create(&job).Error; err != nil {
		return nil, fmt.Errorf("failed to queue print job: %w", err)
	}
	d.notify(&job, "job_queued")
	return &DispatchResult{Queued: true, Method: "queue", JobID: job.ID}, nil
}

// ProcessPendingJobs drains queued jobs to whatever printer now serves each
// job's role. Jobs that fail keep their error and go back to pending so the
// next pass retries them, unless the failure is terminal for this pass.
func (d *PrintDispatcher) ProcessPendingJobs() (int, error) {
	if d.db == nil {
		return 0, nil
	}

	var jobs []models.PrintJob
	if err := d.db.Where("status = ?", models.JobStatusPending).
		Order("created_at ASC").
		Find(&jobs).Error; err != nil {
		return 0, fmt.Errorf("failed to load pending jobs: %w", err)
	}

	printed := 0
	for i := range jobs {
		job := &jobs[i]

		printer, err := d.printers.PrinterForRole(job.Role)
		if err != nil {
			continue // no printer for this role yet, leave the job pending
		}

		d.setStatus(job, models.JobStatusProcessing, "")
		if err := d.printers.Transfer(printer, job.Payload); err != nil {
			d.setStatus(job, models.JobStatusFailed, err.Error())
			d.notify(job, "job_failed")
			continue
		}

		d.setStatus(job, models.JobStatusCompleted, "")
		d.notify(job, "job_completed")
		printed++
	}

	return printed, nil
}

// RetryJob puts a failed job back in the pending queue
func (d *PrintDispatcher) RetryJob(jobID uint) error {
	var job models.PrintJob
	if err := d.db.First(&job, jobID).Error; err != nil {
		return fmt.Errorf("print job %d not found: %w", jobID, err)
	}
	if job.Status != models.JobStatusFailed {
		return fmt.Errorf("print job %d is %s, only failed jobs can be retried", jobID, job.Status)
	}
	d.setStatus(&job, models.JobStatusPending, "")
	return nil
}

func (d *PrintDispatcher) setStatus(job *models.PrintJob, status models.JobStatus, lastError string) {
	job.Status = status
	job.LastError = lastError
	d.db.Model(job).Updates(map[string]interface{}{
		"status":     status,
		"last_error": lastError,
	})
}

func (d *PrintDispatcher) notify(job *models.PrintJob, event string) {
	if d.notifier != nil {
		d.notifier.NotifyJob(job, event)
	}
}

func logTransferFailure(printer *models.PrinterConfig, err error) {
	var terr *TransferError
	if errors.As(err, &terr) {
		log.Printf("print transfer to %s failed (%s): %v. %s",
			printer.Name, terr.Kind, err, terr.Hint())
		return
	}
	log.Printf("print transfer to %s failed: %v", printer.Name, err)
}
