package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/civic-fix/api-go/models"
	"github.com/civic-fix/api-go/services"
	"github.com/lib/pq"
)

// MemoryStore keeps every entity in process memory behind one mutex. It
// backs the "memory" database driver and the tests. Returned values are
// copies.
type MemoryStore struct {
	mu sync.Mutex

	reports  map[uint]*models.Report
	repairs  map[uint]*models.Repair
	assets   map[string]*models.Asset
	activity []models.ActivityLog

	nextReport   uint
	nextRepair   uint
	nextAsset    uint
	nextActivity uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[uint]*models.Report),
		repairs: make(map[uint]*models.Repair),
		assets:  make(map[string]*models.Asset),
	}
}

// Stores exposes s through every store interface.
func (s *MemoryStore) Stores() services.Stores {
	return services.Stores{Reports: s, Repairs: s, Assets: s, Activity: s}
}

func copyStrings(in pq.StringArray) pq.StringArray {
	if in == nil {
		return nil
	}
	return append(pq.StringArray{}, in...)
}

func cloneReport(r *models.Report) *models.Report {
	c := *r
	c.Images = copyStrings(r.Images)
	return &c
}

func cloneRepair(r *models.Repair) *models.Repair {
	c := *r
	c.Images = copyStrings(r.Images)
	c.CompletionImages = copyStrings(r.CompletionImages)
	return &c
}

func statusIn[S comparable](s S, from []S) bool {
	for _, f := range from {
		if f == s {
			return true
		}
	}
	return false
}

func (s *MemoryStore) CreateReport(_ context.Context, report *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.reports {
		if existing.TicketID == report.TicketID {
			return services.ErrDuplicateTicket
		}
	}
	s.nextReport++
	report.ID = s.nextReport
	s.reports[report.ID] = cloneReport(report)
	return nil
}

func (s *MemoryStore) GetReport(_ context.Context, id uint) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return cloneReport(report), nil
}

func (s *MemoryStore) GetReportByTicket(_ context.Context, ticketID string) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, report := range s.reports {
		if report.TicketID == ticketID {
			return cloneReport(report), nil
		}
	}
	return nil, services.ErrNotFound
}

func (s *MemoryStore) ListReports(_ context.Context, filter services.ReportFilter) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports := []models.Report{}
	for _, r := range s.reports {
		if filter.ID != nil && r.ID != *filter.ID {
			continue
		}
		if filter.TicketID != "" && r.TicketID != filter.TicketID {
			continue
		}
		if filter.AssetCode != "" && (r.AssetCode == nil || *r.AssetCode != filter.AssetCode) {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		reports = append(reports, *cloneReport(r))
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].ID > reports[j].ID })
	return reports, nil
}

func applyReportPatch(r *models.Report, patch services.ReportPatch) {
	r.UpdatedAt = patch.UpdatedAt
	if patch.Status != nil {
		r.Status = *patch.Status
	}
	if patch.Priority != nil {
		r.Priority = *patch.Priority
	}
	if patch.Note != nil {
		r.Note = *patch.Note
	}
	if patch.RejectionReason != nil {
		r.RejectionReason = *patch.RejectionReason
	}
	if patch.ReviewedBy != nil {
		r.ReviewedBy = *patch.ReviewedBy
	}
	if patch.ReviewedAt != nil {
		at := *patch.ReviewedAt
		r.ReviewedAt = &at
	}
}

func (s *MemoryStore) UpdateReport(_ context.Context, id uint, from []models.ReportStatus, patch services.ReportPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[id]
	if !ok || !statusIn(report.Status, from) {
		return false, nil
	}
	applyReportPatch(report, patch)
	return true, nil
}

func (s *MemoryStore) SpawnRepair(_ context.Context, reportID uint, from []models.ReportStatus, patch services.ReportPatch, repair *models.Repair) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[reportID]
	if !ok || report.RepairSpawned || !statusIn(report.Status, from) {
		return false, nil
	}

	s.nextRepair++
	repair.ID = s.nextRepair
	s.repairs[repair.ID] = cloneRepair(repair)

	applyReportPatch(report, patch)
	report.RepairSpawned = true
	id := repair.ID
	report.RepairID = &id
	return true, nil
}

func (s *MemoryStore) RateReport(_ context.Context, id uint, score int, comment string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[id]
	if !ok || report.Rating != nil {
		return false, nil
	}
	report.Rating = &score
	report.RatingComment = comment
	report.RatedAt = &at
	report.UpdatedAt = at
	return true, nil
}

func (s *MemoryStore) DeleteReport(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[id]; !ok {
		return services.ErrNotFound
	}
	for _, repair := range s.repairs {
		if repair.ReportID != nil && *repair.ReportID == id {
			return services.ErrConflict
		}
	}
	delete(s.reports, id)
	return nil
}

func (s *MemoryStore) CreateRepair(_ context.Context, repair *models.Repair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if repair.ReportID != nil {
		for _, existing := range s.repairs {
			if existing.ReportID != nil && *existing.ReportID == *repair.ReportID {
				return services.ErrConflict
			}
		}
	}
	s.nextRepair++
	repair.ID = s.nextRepair
	s.repairs[repair.ID] = cloneRepair(repair)
	return nil
}

func (s *MemoryStore) GetRepair(_ context.Context, id uint) (*models.Repair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repair, ok := s.repairs[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return cloneRepair(repair), nil
}

func (s *MemoryStore) ListRepairs(_ context.Context, filter services.RepairFilter) ([]models.Repair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repairs := []models.Repair{}
	for _, r := range s.repairs {
		if filter.ReportID != nil && (r.ReportID == nil || *r.ReportID != *filter.ReportID) {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.AssignedTo != "" && r.AssignedTo != filter.AssignedTo {
			continue
		}
		repairs = append(repairs, *cloneRepair(r))
	}
	sort.Slice(repairs, func(i, j int) bool { return repairs[i].ID > repairs[j].ID })
	return repairs, nil
}

func (s *MemoryStore) CountRepairsByReport(_ context.Context, reportID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, r := range s.repairs {
		if r.ReportID != nil && *r.ReportID == reportID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) TransitionRepair(_ context.Context, id uint, from []models.RepairStatus, patch services.RepairPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repair, ok := s.repairs[id]
	if !ok || !statusIn(repair.Status, from) {
		return false, nil
	}

	repair.Status = patch.Status
	repair.UpdatedAt = patch.UpdatedAt
	if patch.AssignedTo != nil {
		repair.AssignedTo = *patch.AssignedTo
	}
	if patch.StartedAt != nil {
		at := *patch.StartedAt
		repair.StartedAt = &at
	}
	if patch.CompletedDate != nil {
		at := *patch.CompletedDate
		repair.CompletedDate = &at
	}
	if patch.ActualCost.Valid {
		repair.ActualCost = patch.ActualCost
	}
	if patch.Notes != nil {
		repair.Notes = *patch.Notes
	}
	if patch.CompletionImages != nil {
		repair.CompletionImages = append(pq.StringArray{}, patch.CompletionImages...)
	}
	if patch.CancelReason != nil {
		repair.CancelReason = *patch.CancelReason
	}
	return true, nil
}

func (s *MemoryStore) CreateAsset(_ context.Context, asset *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[asset.Code]; ok {
		return services.ErrConflict
	}
	s.nextAsset++
	asset.ID = s.nextAsset
	c := *asset
	s.assets[asset.Code] = &c
	return nil
}

func (s *MemoryStore) GetAsset(_ context.Context, code string) (*models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[code]
	if !ok {
		return nil, services.ErrNotFound
	}
	c := *asset
	return &c, nil
}

func (s *MemoryStore) ListAssets(_ context.Context) ([]models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assets := make([]models.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		assets = append(assets, *a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Code < assets[j].Code })
	return assets, nil
}

func (s *MemoryStore) SetAssetStatus(_ context.Context, code string, status models.AssetStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[code]
	if !ok {
		return services.ErrNotFound
	}
	asset.Status = status
	asset.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) AppendActivity(_ context.Context, entry *models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextActivity++
	entry.ID = s.nextActivity
	s.activity = append(s.activity, *entry)
	return nil
}

func (s *MemoryStore) ListActivity(_ context.Context, entity string, entityID uint) ([]models.ActivityLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := []models.ActivityLog{}
	for _, e := range s.activity {
		if e.Entity == entity && e.EntityID == entityID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
