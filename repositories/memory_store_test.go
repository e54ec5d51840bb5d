package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/civic-fix/api-go/models"
	"github.com/civic-fix/api-go/services"
)

func newReport(ticket string) *models.Report {
	return &models.Report{
		TicketID:    ticket,
		ReportType:  models.ReportTypeRepair,
		Description: "broken",
		Status:      models.ReportPending,
		ReportedAt:  time.Now(),
	}
}

func TestCreateReportDuplicateTicket(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.CreateReport(ctx, newReport("RP00000001")); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateReport(ctx, newReport("RP00000001")); !errors.Is(err, services.ErrDuplicateTicket) {
		t.Fatalf("err = %v, want ErrDuplicateTicket", err)
	}
}

func TestSpawnRepairOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	report := newReport("RP00000002")
	if err := s.CreateReport(ctx, report); err != nil {
		t.Fatal(err)
	}

	approved := models.ReportApproved
	patch := services.ReportPatch{Status: &approved, UpdatedAt: time.Now()}
	from := []models.ReportStatus{models.ReportPending, models.ReportApproved}

	first := &models.Repair{ReportID: &report.ID, Status: models.RepairPending}
	ok, err := s.SpawnRepair(ctx, report.ID, from, patch, first)
	if err != nil || !ok {
		t.Fatalf("first spawn ok=%v err=%v", ok, err)
	}
	second := &models.Repair{ReportID: &report.ID, Status: models.RepairPending}
	ok, err = s.SpawnRepair(ctx, report.ID, from, patch, second)
	if err != nil || ok {
		t.Fatalf("second spawn ok=%v err=%v, want false", ok, err)
	}

	got, _ := s.GetReport(ctx, report.ID)
	if !got.RepairSpawned || got.RepairID == nil || *got.RepairID != first.ID || got.Status != models.ReportApproved {
		t.Errorf("report = %+v", got)
	}
	if n, _ := s.CountRepairsByReport(ctx, report.ID); n != 1 {
		t.Errorf("repairs = %d", n)
	}
}

func TestSpawnRepairRespectsStatus(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	report := newReport("RP00000003")
	report.Status = models.ReportRejected
	if err := s.CreateReport(ctx, report); err != nil {
		t.Fatal(err)
	}

	ok, err := s.SpawnRepair(ctx, report.ID, []models.ReportStatus{models.ReportPending}, services.ReportPatch{}, &models.Repair{})
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v, want false", ok, err)
	}
	if n, _ := s.CountRepairsByReport(ctx, report.ID); n != 0 {
		t.Errorf("repairs = %d, want 0", n)
	}
}

func TestTransitionRepairCompareAndSet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	repair := &models.Repair{Title: "t", AssignedTo: "a", Status: models.RepairPending}
	if err := s.CreateRepair(ctx, repair); err != nil {
		t.Fatal(err)
	}

	from := []models.RepairStatus{models.RepairInProgress}
	ok, _ := s.TransitionRepair(ctx, repair.ID, from, services.RepairPatch{Status: models.RepairCompleted})
	if ok {
		t.Fatal("transition applied from wrong status")
	}
	ok, _ = s.TransitionRepair(ctx, repair.ID, []models.RepairStatus{models.RepairPending}, services.RepairPatch{Status: models.RepairInProgress})
	if !ok {
		t.Fatal("transition from PENDING rejected")
	}
	got, _ := s.GetRepair(ctx, repair.ID)
	if got.Status != models.RepairInProgress {
		t.Errorf("status = %s", got.Status)
	}
}

func TestDeleteReportReferenced(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	report := newReport("RP00000004")
	if err := s.CreateReport(ctx, report); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateRepair(ctx, &models.Repair{ReportID: &report.ID}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteReport(ctx, report.ID); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestReturnedValuesAreCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	report := newReport("RP00000005")
	report.Images = []string{"a"}
	if err := s.CreateReport(ctx, report); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetReport(ctx, report.ID)
	got.Images[0] = "mutated"
	got.Status = models.ReportRejected

	again, _ := s.GetReport(ctx, report.ID)
	if again.Images[0] != "a" || again.Status != models.ReportPending {
		t.Errorf("store mutated through returned value: %+v", again)
	}
}

func TestListReportsFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	code := "SL-1"
	a := newReport("RP00000006")
	a.AssetCode = &code
	b := newReport("RP00000007")
	b.Status = models.ReportApproved
	for _, r := range []*models.Report{a, b} {
		if err := s.CreateReport(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter services.ReportFilter
		want   int
	}{
		{"all", services.ReportFilter{}, 2},
		{"asset", services.ReportFilter{AssetCode: code}, 1},
		{"status", services.ReportFilter{Status: models.ReportApproved}, 1},
		{"ticket", services.ReportFilter{TicketID: "RP00000006"}, 1},
		{"no match", services.ReportFilter{TicketID: "RQ1"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListReports(ctx, tt.filter)
			if err != nil || len(got) != tt.want {
				t.Errorf("got %d reports (err %v), want %d", len(got), err, tt.want)
			}
		})
	}
}
