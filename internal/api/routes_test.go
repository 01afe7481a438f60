package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pipetrack/internal/auth"
	"pipetrack/internal/config"
	"pipetrack/internal/database"
	"pipetrack/internal/pipeline"
	"pipetrack/internal/scoring"
	"pipetrack/internal/views"
)

type nopStore struct{}

func (nopStore) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return nil, err
	}
	return &minio.UploadInfo{Key: objectName}, nil
}

type testEnv struct {
	router      *gin.Engine
	db          *gorm.DB
	authService *auth.AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	cfg := &config.Config{}
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	cfg.Auth.LoginRateLimitPerHour = 10
	cfg.Auth.LoginLockThreshold = 5
	cfg.Auth.LoginLockTTL = 15 * time.Minute
	cfg.Pipeline.ReadyThreshold = 6

	authService, err := auth.NewAuthService(privPEM, pubPEM, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	if err != nil {
		t.Fatalf("init auth service: %v", err)
	}

	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := views.NewDispatcher(redisClient, cfg.Pipeline.ReadyThreshold)
	engine := pipeline.NewEngine(db, nopStore{}, dispatcher, nil, testLogger)
	scoringService := scoring.NewService(db)

	router := NewRouter(testLogger)
	RegisterRoutes(router, cfg, db, engine, dispatcher, scoringService, authService, redisClient, nil, testLogger)

	return &testEnv{router: router, db: db, authService: authService}
}

func (env *testEnv) token(t *testing.T, role auth.Role, empID string) string {
	t.Helper()
	pair, err := env.authService.GenerateTokenPair(1, role, empID, false)
	if err != nil {
		t.Fatalf("generate token pair: %v", err)
	}
	return pair.AccessToken
}

func (env *testEnv) seedCandidate(t *testing.T, empID string) {
	t.Helper()
	cand := database.Candidate{EmpID: empID, Name: "c-" + empID, Technology: "Java", ResourceType: "OM"}
	if err := env.db.Create(&cand).Error; err != nil {
		t.Fatalf("seed candidate: %v", err)
	}
}

func (env *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func scheduleMockForm(t *testing.T, empID, fileContentType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("empId", empID)
	_ = w.WriteField("date", "2025-07-10T10:00:00Z")
	_ = w.WriteField("interviewerId", "INT-7")
	if fileContentType != "" {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="files"; filename="notes.bin"`)
		header.Set("Content-Type", fileContentType)
		part, err := w.CreatePart(header)
		if err != nil {
			t.Fatalf("create form part: %v", err)
		}
		if _, err := part.Write([]byte("content")); err != nil {
			t.Fatalf("write form part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestRoleGating(t *testing.T) {
	env := newTestEnv(t)

	// No token.
	rec := env.do(t, http.MethodGet, "/v1/sales/candidates", "", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rec.Code)
	}

	// Wrong role.
	employeeToken := env.token(t, auth.RoleEmployee, "E100")
	rec = env.do(t, http.MethodGet, "/v1/sales/candidates", employeeToken, nil, "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("employee on sales route status = %d, want 403", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/v1/delivery/candidates", employeeToken, nil, "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("employee on delivery route status = %d, want 403", rec.Code)
	}

	// Matching role.
	salesToken := env.token(t, auth.RoleSales, "")
	rec = env.do(t, http.MethodGet, "/v1/sales/candidates", salesToken, nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("sales on sales route status = %d, want 200", rec.Code)
	}

	// Admin passes every staff gate.
	adminToken := env.token(t, auth.RoleAdmin, "")
	rec = env.do(t, http.MethodGet, "/v1/delivery/candidates", adminToken, nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("admin on delivery route status = %d, want 200", rec.Code)
	}
}

func TestScheduleMockEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedCandidate(t, "E100")
	deliveryToken := env.token(t, auth.RoleDelivery, "")

	body, contentType := scheduleMockForm(t, "E100", "application/pdf")
	rec := env.do(t, http.MethodPost, "/v1/delivery/schedule", deliveryToken, body, contentType)
	if rec.Code != http.StatusCreated {
		t.Fatalf("schedule status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	// Pending interview blocks a second schedule.
	body, contentType = scheduleMockForm(t, "E100", "")
	rec = env.do(t, http.MethodPost, "/v1/delivery/schedule", deliveryToken, body, contentType)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate schedule status = %d, want 409", rec.Code)
	}

	// Derived stage is visible to the employee.
	employeeToken := env.token(t, auth.RoleEmployee, "E100")
	rec = env.do(t, http.MethodGet, "/v1/employee/me", employeeToken, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d, want 200", rec.Code)
	}
	var me struct {
		Stage string `json:"stage"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Stage != string(pipeline.StageMockScheduled) {
		t.Errorf("stage = %q, want %q", me.Stage, pipeline.StageMockScheduled)
	}
}

func TestScheduleMockRejectsUnsupportedFile(t *testing.T) {
	env := newTestEnv(t)
	env.seedCandidate(t, "E100")
	deliveryToken := env.token(t, auth.RoleDelivery, "")

	body, contentType := scheduleMockForm(t, "E100", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	rec := env.do(t, http.MethodPost, "/v1/delivery/schedule", deliveryToken, body, contentType)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("docx schedule status = %d, want 415 (body %s)", rec.Code, rec.Body.String())
	}

	var count int64
	if err := env.db.Model(&database.MockInterview{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("mock interview count = %d, want 0", count)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	registerBody := `{
		"username": "asha.rao",
		"password": "s3cret-enough",
		"empId": "E100",
		"name": "Asha Rao",
		"technology": "Java",
		"resourceType": "OM"
	}`
	rec := env.do(t, http.MethodPost, "/v1/auth/register", "", strings.NewReader(registerBody), "application/json")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	// Duplicate registration conflicts.
	rec = env.do(t, http.MethodPost, "/v1/auth/register", "", strings.NewReader(registerBody), "application/json")
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", rec.Code)
	}

	loginBody := `{"username": "asha.rao", "password": "s3cret-enough"}`
	rec = env.do(t, http.MethodPost, "/v1/auth/login", "", strings.NewReader(loginBody), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var tokens struct {
		AccessToken string `json:"access_token"`
		Role        string `json:"role"`
		EmpID       string `json:"empId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &tokens); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if tokens.Role != string(auth.RoleEmployee) || tokens.EmpID != "E100" {
		t.Errorf("login claims = %s/%s, want EMPLOYEE/E100", tokens.Role, tokens.EmpID)
	}

	rec = env.do(t, http.MethodGet, "/v1/employee/me", tokens.AccessToken, nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("me with login token status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	badLogin := `{"username": "asha.rao", "password": "wrong-password"}`
	rec = env.do(t, http.MethodPost, "/v1/auth/login", "", strings.NewReader(badLogin), "application/json")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", rec.Code)
	}
}

func TestCreateClientRequiresTechnologies(t *testing.T) {
	env := newTestEnv(t)
	salesToken := env.token(t, auth.RoleSales, "")

	empty := `{"name": "Acme", "activePositions": 2, "technologies": []}`
	rec := env.do(t, http.MethodPost, "/v1/sales/clients", salesToken, strings.NewReader(empty), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty technologies status = %d, want 400", rec.Code)
	}

	unknown := `{"name": "Acme", "activePositions": 2, "technologies": ["COBOL"]}`
	rec = env.do(t, http.MethodPost, "/v1/sales/clients", salesToken, strings.NewReader(unknown), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown technology status = %d, want 400", rec.Code)
	}

	var count int64
	if err := env.db.Model(&database.Client{}).Count(&count).Error; err != nil {
		t.Fatalf("count clients: %v", err)
	}
	if count != 0 {
		t.Errorf("client count after rejected payloads = %d, want 0", count)
	}

	valid := `{"name": "Acme", "activePositions": 2, "technologies": ["Java", "Python"]}`
	rec = env.do(t, http.MethodPost, "/v1/sales/clients", salesToken, strings.NewReader(valid), "application/json")
	if rec.Code != http.StatusCreated {
		t.Fatalf("valid client status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestCreateJobDescriptionDeadlineAfterReceivedDate(t *testing.T) {
	env := newTestEnv(t)
	salesToken := env.token(t, auth.RoleSales, "")

	form := url.Values{}
	form.Set("title", "Backend Engineer")
	form.Set("client", "Acme")
	form.Set("technology", "Java")
	form.Set("resourceType", "OM")
	form.Set("receivedDate", "2025-07-10")
	form.Set("deadline", "2025-07-01")
	rec := env.do(t, http.MethodPost, "/v1/sales/job-descriptions", salesToken,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("deadline before receivedDate status = %d, want 400", rec.Code)
	}

	// Equal dates fail too; the deadline must be strictly later.
	form.Set("deadline", "2025-07-10")
	rec = env.do(t, http.MethodPost, "/v1/sales/job-descriptions", salesToken,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("deadline equal to receivedDate status = %d, want 400", rec.Code)
	}

	var count int64
	if err := env.db.Model(&database.JobDescription{}).Count(&count).Error; err != nil {
		t.Fatalf("count job descriptions: %v", err)
	}
	if count != 0 {
		t.Errorf("job description count after rejected payloads = %d, want 0", count)
	}

	form.Set("deadline", "2025-07-20")
	rec = env.do(t, http.MethodPost, "/v1/sales/job-descriptions", salesToken,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if rec.Code != http.StatusCreated {
		t.Fatalf("valid job description status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
}
