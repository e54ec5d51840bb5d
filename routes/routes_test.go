package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/civic-fix/api-go/middleware"
	"github.com/civic-fix/api-go/models"
	"github.com/civic-fix/api-go/repositories"
	"github.com/civic-fix/api-go/services"
	"github.com/civic-fix/api-go/utils"
	"github.com/gin-gonic/gin"
)

const testSecret = "routes-test-secret"

type memObjects struct{}

func (memObjects) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if string(data) == "fail" {
		return "", errors.New("bucket unavailable")
	}
	return "https://cdn.test/" + key, nil
}

type stubSender struct{ err error }

func (s stubSender) Send(context.Context, string, string) (services.SendResult, error) {
	if s.err != nil {
		return services.SendResult{}, s.err
	}
	return services.SendResult{Success: true}, nil
}

type server struct {
	t          *testing.T
	router     *gin.Engine
	staff      string
	technician string
}

func newServer(t *testing.T, sender services.SMSSender) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repositories.NewMemoryStore()
	if err := store.CreateAsset(context.Background(), &models.Asset{Code: "SL-001", Name: "Streetlight", Status: models.AssetOperational}); err != nil {
		t.Fatal(err)
	}

	dispatcher := services.NewDispatcher(sender, time.Second, nil)
	t.Cleanup(dispatcher.Wait)
	opts := services.IngestOptions{MaxFiles: 3, MaxBytesPerFile: 1024}
	wf := services.NewWorkflow(
		store.Stores(),
		services.NewTicketAllocator(nil),
		services.NewImagePipeline(memObjects{}, 2, time.Second, nil),
		dispatcher,
		services.WorkflowOptions{ReportUploads: opts, CompletionUploads: opts},
	)

	r := gin.New()
	SetupRoutes(r, wf, Options{JWTSecret: testSecret})

	staff, err := middleware.IssueToken(testSecret, 1, []string{utils.RoleStaff})
	if err != nil {
		t.Fatal(err)
	}
	tech, err := middleware.IssueToken(testSecret, 7, []string{utils.RoleTechnician})
	if err != nil {
		t.Fatal(err)
	}
	return &server{t: t, router: r, staff: staff, technician: tech}
}

type response struct {
	Code int
	Body map[string]interface{}
}

func (s *server) do(method, path, token, contentType string, body io.Reader) response {
	s.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := response{Code: w.Code}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &out.Body); err != nil {
			s.t.Fatalf("%s %s: decode body %q: %v", method, path, w.Body.String(), err)
		}
	}
	return out
}

func (s *server) json(method, path, token string, payload interface{}) response {
	s.t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		s.t.Fatal(err)
	}
	return s.do(method, path, token, "application/json", bytes.NewReader(data))
}

type file struct{ name, content string }

func (s *server) multipart(path, token string, fields map[string]string, field string, files ...file) response {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			s.t.Fatal(err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, f.name))
		h.Set("Content-Type", "image/jpeg")
		part, err := mw.CreatePart(h)
		if err != nil {
			s.t.Fatal(err)
		}
		part.Write([]byte(f.content))
	}
	mw.Close()
	return s.do(http.MethodPost, path, token, mw.FormDataContentType(), &buf)
}

func data(r response) map[string]interface{} {
	d, _ := r.Body["data"].(map[string]interface{})
	return d
}

func citizenForm() map[string]string {
	return map[string]string{
		"reportType":    "repair",
		"assetCode":     "SL-001",
		"description":   "Lamp is out",
		"reporterName":  "Somchai",
		"reporterPhone": "0812345678",
		"coordinates":   "13.7563,100.5018",
	}
}

func TestPingAndMetrics(t *testing.T) {
	s := newServer(t, stubSender{})
	if r := s.do(http.MethodGet, "/ping", "", "", nil); r.Code != http.StatusOK {
		t.Errorf("/ping = %d", r.Code)
	}
	if r := s.do(http.MethodGet, "/metrics", "", "", nil); r.Code != http.StatusOK {
		t.Errorf("/metrics = %d", r.Code)
	}
}

func TestSubmitReportHTTP(t *testing.T) {
	s := newServer(t, stubSender{})

	r := s.multipart("/api/reports", "", citizenForm(), "images", file{"a.jpg", "a"}, file{"b.jpg", "fail"})
	if r.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %v", r.Code, r.Body)
	}
	d := data(r)
	if !regexp.MustCompile(`^RP\d{8}$`).MatchString(fmt.Sprint(d["ticketId"])) {
		t.Errorf("ticketId = %v", d["ticketId"])
	}
	if d["status"] != "PENDING" {
		t.Errorf("status = %v", d["status"])
	}
	if images, _ := d["images"].([]interface{}); len(images) != 1 {
		t.Errorf("images = %v", d["images"])
	}
	if d["latitude"] != 13.7563 {
		t.Errorf("latitude = %v", d["latitude"])
	}
	meta, _ := r.Body["meta"].(map[string]interface{})
	if errs, _ := meta["uploadErrors"].([]interface{}); len(errs) != 1 {
		t.Errorf("uploadErrors = %v", meta["uploadErrors"])
	}
}

func TestSubmitReportErrorsHTTP(t *testing.T) {
	s := newServer(t, stubSender{})

	missing := citizenForm()
	missing["description"] = ""
	r := s.multipart("/api/reports", "", missing, "images")
	if r.Code != http.StatusBadRequest || r.Body["field"] != "description" || r.Body["success"] != false {
		t.Errorf("empty description: %d %v", r.Code, r.Body)
	}

	big := strings.Repeat("x", 2048)
	r = s.multipart("/api/reports", "", citizenForm(), "images", file{"big.jpg", big})
	if r.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversize image: %d %v", r.Code, r.Body)
	}

	bad := citizenForm()
	bad["coordinates"] = "north"
	r = s.multipart("/api/reports", "", bad, "images")
	if r.Code != http.StatusBadRequest || r.Body["field"] != "coordinates" {
		t.Errorf("bad coordinates: %d %v", r.Code, r.Body)
	}
}

func TestSMSFailureDoesNotChangeStatus(t *testing.T) {
	s := newServer(t, stubSender{err: errors.New("gateway down")})
	r := s.multipart("/api/reports", "", citizenForm(), "images")
	if r.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", r.Code)
	}
	id := data(r)["id"]
	review := s.json(http.MethodPut, fmt.Sprintf("/api/reports/%v", id), s.staff, map[string]string{"status": "APPROVED", "assignedTo": "7"})
	if review.Code != http.StatusOK {
		t.Fatalf("review status = %d, want 200", review.Code)
	}
}

func TestStaffRoutesRequireRole(t *testing.T) {
	s := newServer(t, stubSender{})
	if r := s.do(http.MethodGet, "/api/reports", "", "", nil); r.Code != http.StatusUnauthorized {
		t.Errorf("no token: %d", r.Code)
	}
	if r := s.do(http.MethodGet, "/api/reports", s.technician, "", nil); r.Code != http.StatusForbidden {
		t.Errorf("technician on staff route: %d", r.Code)
	}
	if r := s.do(http.MethodGet, "/api/reports", s.staff, "", nil); r.Code != http.StatusOK {
		t.Errorf("staff: %d", r.Code)
	}
	if r := s.do(http.MethodGet, "/api/repairs", s.technician, "", nil); r.Code != http.StatusOK {
		t.Errorf("technician on repairs: %d", r.Code)
	}
}

func TestReportToRepairHTTP(t *testing.T) {
	s := newServer(t, stubSender{})

	submitted := s.multipart("/api/reports", "", citizenForm(), "images", file{"a.jpg", "a"})
	if submitted.Code != http.StatusCreated {
		t.Fatalf("submit = %d", submitted.Code)
	}
	report := data(submitted)
	reportPath := fmt.Sprintf("/api/reports/%v", report["id"])
	ticket := fmt.Sprint(report["ticketId"])

	if r := s.json(http.MethodPut, "/api/reports/999", s.staff, map[string]string{"status": "APPROVED"}); r.Code != http.StatusNotFound {
		t.Errorf("review missing = %d", r.Code)
	}

	approved := s.json(http.MethodPut, reportPath, s.staff, map[string]interface{}{
		"status":        "APPROVED",
		"assignedTo":    "7",
		"estimatedCost": "1500.00",
	})
	if approved.Code != http.StatusOK {
		t.Fatalf("approve = %d %v", approved.Code, approved.Body)
	}
	meta, _ := approved.Body["meta"].(map[string]interface{})
	if meta["repairId"] == nil {
		t.Fatalf("approval meta = %v", meta)
	}
	repairPath := fmt.Sprintf("/api/repairs/%v", meta["repairId"])

	again := s.json(http.MethodPut, reportPath, s.staff, map[string]string{"status": "APPROVED"})
	if again.Code != http.StatusOK || again.Body["meta"] != nil {
		t.Errorf("second approve = %d meta %v", again.Code, again.Body["meta"])
	}
	list := s.do(http.MethodGet, fmt.Sprintf("/api/repairs?reportId=%v", report["id"]), s.staff, "", nil)
	if repairs, _ := list.Body["data"].([]interface{}); len(repairs) != 1 {
		t.Fatalf("repairs for report = %v", list.Body["data"])
	}

	completeForm := map[string]string{"actualCost": "1320.75", "notes": "replaced lamp"}
	if r := s.multipart(repairPath+"/complete", s.technician, completeForm, "afterImages", file{"after.jpg", "after"}); r.Code != http.StatusConflict {
		t.Errorf("complete from PENDING = %d", r.Code)
	}

	started := s.json(http.MethodPut, repairPath+"/status", s.technician, map[string]string{"status": "IN_PROGRESS"})
	if started.Code != http.StatusOK || data(started)["status"] != "IN_PROGRESS" {
		t.Fatalf("start = %d %v", started.Code, started.Body)
	}
	if r := s.json(http.MethodPut, repairPath+"/status", s.technician, map[string]string{"status": "IN_PROGRESS"}); r.Code != http.StatusConflict {
		t.Errorf("start twice = %d", r.Code)
	}

	if r := s.multipart(repairPath+"/complete", s.technician, completeForm, "afterImages"); r.Code != http.StatusBadRequest {
		t.Errorf("complete without photos = %d", r.Code)
	}

	completed := s.multipart(repairPath+"/complete", s.technician, completeForm, "afterImages", file{"after.jpg", "after"})
	if completed.Code != http.StatusOK {
		t.Fatalf("complete = %d %v", completed.Code, completed.Body)
	}
	if d := data(completed); d["status"] != "COMPLETED" || d["completedDate"] == nil || d["actualCost"] != "1320.75" {
		t.Errorf("completed repair = %v", d)
	}
	if r := s.multipart(repairPath+"/complete", s.technician, completeForm, "afterImages", file{"after.jpg", "after"}); r.Code != http.StatusConflict {
		t.Errorf("complete twice = %d", r.Code)
	}

	tracked := s.do(http.MethodGet, "/api/track/"+ticket, "", "", nil)
	if d := data(tracked); tracked.Code != http.StatusOK || d["repairStatus"] != "COMPLETED" || d["canRate"] != true {
		t.Errorf("track = %d %v", tracked.Code, d)
	}
	if _, leaked := data(tracked)["reporterPhone"]; leaked {
		t.Error("tracking exposes the reporter phone")
	}

	if r := s.json(http.MethodPost, "/api/track/"+ticket+"/rating", "", map[string]interface{}{"score": 5}); r.Code != http.StatusOK {
		t.Errorf("rate = %d %v", r.Code, r.Body)
	}
	if r := s.json(http.MethodPost, "/api/track/"+ticket+"/rating", "", map[string]interface{}{"score": 4}); r.Code != http.StatusBadRequest {
		t.Errorf("rate twice = %d", r.Code)
	}

	if r := s.do(http.MethodDelete, reportPath, s.staff, "", nil); r.Code != http.StatusBadRequest {
		t.Errorf("delete referenced report = %d", r.Code)
	}
	activity := s.do(http.MethodGet, reportPath+"/activity", s.staff, "", nil)
	if entries, _ := activity.Body["data"].([]interface{}); activity.Code != http.StatusOK || len(entries) < 5 {
		t.Errorf("activity = %d %v", activity.Code, activity.Body["data"])
	}
}

func TestRepairAndReportEdgeCasesHTTP(t *testing.T) {
	s := newServer(t, stubSender{})

	r := s.json(http.MethodPost, "/api/repairs", s.staff, map[string]string{"title": "Fix bench"})
	if r.Code != http.StatusBadRequest || r.Body["error"] != "assigned technician required" {
		t.Errorf("create without assignee = %d %v", r.Code, r.Body)
	}
	created := s.json(http.MethodPost, "/api/repairs", s.staff, map[string]interface{}{"title": "Fix bench", "assignedTo": "7"})
	if created.Code != http.StatusCreated || data(created)["status"] != "PENDING" {
		t.Fatalf("create = %d %v", created.Code, created.Body)
	}
	if r := s.json(http.MethodPost, "/api/repairs", s.technician, map[string]interface{}{"title": "x", "assignedTo": "7"}); r.Code != http.StatusForbidden {
		t.Errorf("technician creating repair = %d", r.Code)
	}

	cancelled := s.json(http.MethodPut, fmt.Sprintf("/api/repairs/%v/status", data(created)["id"]), s.staff, map[string]string{"status": "CANCELLED", "reason": "duplicate"})
	if cancelled.Code != http.StatusOK || data(cancelled)["status"] != "CANCELLED" {
		t.Errorf("cancel = %d %v", cancelled.Code, cancelled.Body)
	}
	if r := s.json(http.MethodPut, "/api/repairs/1/status", s.staff, map[string]string{"status": "DONE"}); r.Code != http.StatusBadRequest {
		t.Errorf("unknown status = %d", r.Code)
	}
	if r := s.do(http.MethodGet, "/api/repairs/abc", s.staff, "", nil); r.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d", r.Code)
	}

	submitted := s.multipart("/api/reports", "", citizenForm(), "images")
	path := fmt.Sprintf("/api/reports/%v", data(submitted)["id"])
	if r := s.do(http.MethodGet, "/api/reports?id=999", s.staff, "", nil); r.Code != http.StatusNotFound {
		t.Errorf("list by missing id = %d", r.Code)
	}
	if r := s.do(http.MethodGet, "/api/reports?status=PENDING&page=1&pageSize=10", s.staff, "", nil); r.Code != http.StatusOK || r.Body["pagination"] == nil {
		t.Errorf("paged list = %d %v", r.Code, r.Body)
	}
	if r := s.do(http.MethodDelete, path, s.staff, "", nil); r.Code != http.StatusOK {
		t.Errorf("delete = %d", r.Code)
	}
	if r := s.do(http.MethodGet, path, s.staff, "", nil); r.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d", r.Code)
	}
}

func TestAssetsHTTP(t *testing.T) {
	s := newServer(t, stubSender{})

	if r := s.do(http.MethodGet, "/api/assets/SL-001", "", "", nil); r.Code != http.StatusOK || data(r)["name"] != "Streetlight" {
		t.Errorf("lookup = %d %v", r.Code, r.Body)
	}
	if r := s.do(http.MethodGet, "/api/assets/NOPE", "", "", nil); r.Code != http.StatusNotFound {
		t.Errorf("missing asset = %d", r.Code)
	}
	if r := s.json(http.MethodPost, "/api/assets", s.staff, map[string]string{"code": "BN-1", "name": "Bench"}); r.Code != http.StatusCreated {
		t.Errorf("create asset = %d %v", r.Code, r.Body)
	}
	if r := s.json(http.MethodPost, "/api/assets", s.staff, map[string]string{"code": "BN-1", "name": "Bench"}); r.Code != http.StatusBadRequest {
		t.Errorf("duplicate asset = %d", r.Code)
	}
	if r := s.do(http.MethodGet, "/api/assets", s.staff, "", nil); r.Code != http.StatusOK {
		t.Errorf("list assets = %d", r.Code)
	}
}
