package services_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/civic-fix/api-go/models"
	"github.com/civic-fix/api-go/repositories"
	"github.com/civic-fix/api-go/services"
)

// fakeObjects stores nothing; the returned URL embeds the body so tests can
// check ordering. A body of "fail" errors, "hang" blocks until ctx is done.
type fakeObjects struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeObjects) Put(ctx context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	switch string(data) {
	case "fail":
		return "", errors.New("bucket unavailable")
	case "hang":
		<-ctx.Done()
		return "", ctx.Err()
	}
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()
	return "https://cdn.test/" + string(data), nil
}

func (f *fakeObjects) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.keys...)
}

type sentSMS struct {
	Phone   string
	Message string
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []sentSMS
	err   error
	panic bool
}

func (f *fakeSender) Send(_ context.Context, phone, message string) (services.SendResult, error) {
	f.mu.Lock()
	f.sent = append(f.sent, sentSMS{Phone: phone, Message: message})
	f.mu.Unlock()
	if f.panic {
		panic("gateway exploded")
	}
	if f.err != nil {
		return services.SendResult{}, f.err
	}
	return services.SendResult{Success: true, MessageID: "m-1"}, nil
}

func (f *fakeSender) Sent() []sentSMS {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentSMS{}, f.sent...)
}

func upload(name, content string) services.RawUpload {
	return services.RawUpload{
		Filename:    name,
		Size:        int64(len(content)),
		ContentType: "image/jpeg",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

type harness struct {
	wf         *services.Workflow
	store      *repositories.MemoryStore
	objects    *fakeObjects
	sender     *fakeSender
	dispatcher *services.Dispatcher
}

const testAsset = "SL-001"

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithSender(t, &fakeSender{})
}

func newHarnessWithSender(t *testing.T, sender *fakeSender) *harness {
	t.Helper()

	store := repositories.NewMemoryStore()
	if err := store.CreateAsset(context.Background(), &models.Asset{
		Code:   testAsset,
		Name:   "Streetlight 1",
		Status: models.AssetDamaged,
	}); err != nil {
		t.Fatalf("seed asset: %v", err)
	}

	objects := &fakeObjects{}
	dispatcher := services.NewDispatcher(sender, time.Second, nil)
	t.Cleanup(dispatcher.Wait)

	opts := services.IngestOptions{MaxFiles: 5, MaxBytesPerFile: 1024}
	wf := services.NewWorkflow(
		store.Stores(),
		services.NewTicketAllocator(nil),
		services.NewImagePipeline(objects, 4, time.Second, nil),
		dispatcher,
		services.WorkflowOptions{ReportUploads: opts, CompletionUploads: opts},
	)
	return &harness{wf: wf, store: store, objects: objects, sender: sender, dispatcher: dispatcher}
}

func validReport() services.SubmitReportInput {
	return services.SubmitReportInput{
		ReportType:    models.ReportTypeRepair,
		AssetCode:     testAsset,
		Description:   "Lamp is flickering",
		ReportedBy:    "Somchai",
		ReporterPhone: "0812345678",
	}
}

func (h *harness) submit(t *testing.T) *models.Report {
	t.Helper()
	res, err := h.wf.SubmitReport(context.Background(), validReport(), nil)
	if err != nil {
		t.Fatalf("SubmitReport: %v", err)
	}
	return res.Report
}

// approved returns a report and the repair its approval spawned.
func (h *harness) approved(t *testing.T) (*models.Report, *models.Repair) {
	t.Helper()
	report := h.submit(t)
	res, err := h.wf.ReviewReport(context.Background(), report.ID, services.ReviewInput{
		Status:     models.ReportApproved,
		AssignedTo: "tech-7",
	}, "staff-1")
	if err != nil {
		t.Fatalf("ReviewReport: %v", err)
	}
	if res.Repair == nil {
		t.Fatal("approval did not spawn a repair")
	}
	return res.Report, res.Repair
}

func (h *harness) started(t *testing.T) (*models.Report, *models.Repair) {
	t.Helper()
	report, repair := h.approved(t)
	repair, err := h.wf.StartRepair(context.Background(), repair.ID, "tech-7")
	if err != nil {
		t.Fatalf("StartRepair: %v", err)
	}
	return report, repair
}
