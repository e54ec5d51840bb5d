package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/civic-fix/api-go/models"
	"github.com/shopspring/decimal"
)

const maxTicketAttempts = 3

type SubmitReportInput struct {
	ReportType    models.ReportType
	ProblemType   string
	Priority      models.Priority
	AssetCode     string
	Title         string
	Description   string
	ReportedBy    string
	ReporterPhone string
	Location      string
	Latitude      *float64
	Longitude     *float64
	ReferrerURL   string
}

// ReviewInput is a partial update; nil fields are left unchanged.
type ReviewInput struct {
	Status          models.ReportStatus
	Priority        *models.Priority
	Note            *string
	RejectionReason *string

	// Used only when the review spawns a repair. AssignedTo defaults to
	// the reviewer.
	AssignedTo    string
	EstimatedCost decimal.NullDecimal
	DueDate       *time.Time
}

// ReportMachine owns report validation, persistence and the approval axis.
type ReportMachine struct {
	reports ReportStore
	assets  AssetStore
	tickets *TicketAllocator
	now     func() time.Time
}

func NewReportMachine(reports ReportStore, assets AssetStore, tickets *TicketAllocator, now func() time.Time) *ReportMachine {
	if now == nil {
		now = time.Now
	}
	return &ReportMachine{reports: reports, assets: assets, tickets: tickets, now: now}
}

// Validate normalizes in and checks it. It runs before any upload or write.
func (m *ReportMachine) Validate(ctx context.Context, in *SubmitReportInput) error {
	in.ReportType = models.ReportType(strings.ToLower(strings.TrimSpace(string(in.ReportType))))
	if in.ReportType == "" {
		in.ReportType = models.ReportTypeRepair
	}
	if in.ReportType != models.ReportTypeRepair && in.ReportType != models.ReportTypeRequest {
		return invalid("reportType", "must be repair or request")
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.AssetCode = strings.TrimSpace(in.AssetCode)
	in.ReporterPhone = strings.TrimSpace(in.ReporterPhone)

	if in.ReportType == models.ReportTypeRequest && in.Title == "" {
		return invalid("title", "title is required")
	}
	if in.Description == "" {
		return invalid("description", "description is required")
	}

	in.Priority = models.Priority(strings.ToLower(strings.TrimSpace(string(in.Priority))))
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !models.IsValidPriority(in.Priority) {
		return invalid("priority", "must be one of low, medium, high, urgent")
	}

	if in.ReporterPhone != "" && !validPhone(in.ReporterPhone) {
		return invalid("reporterPhone", "invalid phone number")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return invalid("coordinates", "latitude and longitude must be given together")
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90 || *in.Longitude < -180 || *in.Longitude > 180) {
		return invalid("coordinates", "out of range")
	}

	if in.AssetCode != "" {
		if _, err := m.assets.GetAsset(ctx, in.AssetCode); err != nil {
			if errors.Is(err, ErrNotFound) {
				return invalid("assetCode", fmt.Sprintf("asset %s not found", in.AssetCode))
			}
			return dependency("database", err)
		}
	}
	return nil
}

// Create allocates a ticket and persists the report as PENDING. in must have
// passed Validate.
func (m *ReportMachine) Create(ctx context.Context, in SubmitReportInput, images []string) (*models.Report, error) {
	now := m.now()
	report := &models.Report{
		ReportType:    in.ReportType,
		ProblemType:   in.ProblemType,
		Priority:      in.Priority,
		Title:         in.Title,
		Description:   in.Description,
		ReportedBy:    in.ReportedBy,
		ReporterPhone: in.ReporterPhone,
		Location:      in.Location,
		Latitude:      in.Latitude,
		Longitude:     in.Longitude,
		ReferrerURL:   in.ReferrerURL,
		Images:        append([]string{}, images...),
		Status:        models.ReportPending,
		ReportedAt:    now,
		UpdatedAt:     now,
	}
	if in.AssetCode != "" {
		code := in.AssetCode
		report.AssetCode = &code
	}

	for attempt := 1; ; attempt++ {
		ticketID, err := m.tickets.Allocate(ctx, in.ReportType)
		if err != nil {
			return nil, err
		}
		report.TicketID = ticketID
		report.ID = 0

		err = m.reports.CreateReport(ctx, report)
		if err == nil {
			return report, nil
		}
		if !errors.Is(err, ErrDuplicateTicket) || attempt == maxTicketAttempts {
			return nil, dependency("database", err)
		}
	}
}

func (m *ReportMachine) Get(ctx context.Context, id uint) (*models.Report, error) {
	report, err := m.reports.GetReport(ctx, id)
	return report, dependency("database", err)
}

func (m *ReportMachine) GetByTicket(ctx context.Context, ticketID string) (*models.Report, error) {
	report, err := m.reports.GetReportByTicket(ctx, strings.ToUpper(strings.TrimSpace(ticketID)))
	return report, dependency("database", err)
}

func (m *ReportMachine) List(ctx context.Context, filter ReportFilter) ([]models.Report, error) {
	if filter.Status != "" && !models.IsValidReportStatus(filter.Status) {
		return nil, invalid("status", "unknown report status")
	}
	reports, err := m.reports.ListReports(ctx, filter)
	return reports, dependency("database", err)
}

// reviewFrom lists the statuses a review to target may start from.
// REJECTED is terminal and an APPROVED report can only be re-approved.
func reviewFrom(target models.ReportStatus) []models.ReportStatus {
	switch target {
	case models.ReportApproved:
		return []models.ReportStatus{models.ReportPending, models.ReportApproved}
	case models.ReportRejected, models.ReportPending:
		return []models.ReportStatus{models.ReportPending}
	}
	return nil
}

func allowed(from []models.ReportStatus, s models.ReportStatus) bool {
	for _, f := range from {
		if f == s {
			return true
		}
	}
	return false
}

// planReview checks in against the report's current state and builds the
// patch plus the status precondition it must be applied under.
func (m *ReportMachine) planReview(current *models.Report, in ReviewInput, actor string) (ReportPatch, []models.ReportStatus, error) {
	target := models.ReportStatus(strings.ToUpper(strings.TrimSpace(string(in.Status))))
	if !models.IsValidReportStatus(target) {
		return ReportPatch{}, nil, invalid("status", "must be PENDING, APPROVED or REJECTED")
	}
	if in.Priority != nil {
		p := models.Priority(strings.ToLower(string(*in.Priority)))
		if !models.IsValidPriority(p) {
			return ReportPatch{}, nil, invalid("priority", "must be one of low, medium, high, urgent")
		}
		in.Priority = &p
	}

	from := reviewFrom(target)
	if !allowed(from, current.Status) {
		return ReportPatch{}, nil, &TransitionError{Entity: "report", From: string(current.Status), To: string(target)}
	}

	now := m.now()
	patch := ReportPatch{
		Status:          &target,
		Priority:        in.Priority,
		Note:            in.Note,
		RejectionReason: in.RejectionReason,
		ReviewedAt:      &now,
		UpdatedAt:       now,
	}
	if actor != "" {
		patch.ReviewedBy = &actor
	}
	return patch, from, nil
}

// Review applies a review that does not spawn a repair.
func (m *ReportMachine) Review(ctx context.Context, id uint, in ReviewInput, actor string) (*models.Report, error) {
	current, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch, from, err := m.planReview(current, in, actor)
	if err != nil {
		return nil, err
	}
	return m.applyPatch(ctx, id, from, patch)
}

func (m *ReportMachine) applyPatch(ctx context.Context, id uint, from []models.ReportStatus, patch ReportPatch) (*models.Report, error) {
	ok, err := m.reports.UpdateReport(ctx, id, from, patch)
	if err != nil {
		return nil, dependency("database", err)
	}
	updated, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &TransitionError{Entity: "report", From: string(updated.Status), To: string(*patch.Status)}
	}
	return updated, nil
}

func (m *ReportMachine) Delete(ctx context.Context, id uint) error {
	return dependency("database", m.reports.DeleteReport(ctx, id))
}

func validPhone(phone string) bool {
	digits := 0
	for _, r := range phone {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 6 && digits <= 15
}
