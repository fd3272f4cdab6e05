package adapthttp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	adapthttp "mealtrack/internal/adapter/http"
	"mealtrack/internal/adapter/memory"
	"mealtrack/internal/app"
	"mealtrack/internal/domain"
	"mealtrack/internal/metrics"
)

// ---------------------------------------------------------------------------
// Mocks (function-fields pattern)
// ---------------------------------------------------------------------------

type mockDetector struct {
	detectFn func(ctx context.Context, imagePath string) ([]domain.Detection, error)
}

func (m *mockDetector) Detect(ctx context.Context, imagePath string) ([]domain.Detection, error) {
	if m.detectFn != nil {
		return m.detectFn(ctx, imagePath)
	}
	return []domain.Detection{{Label: "Rice"}, {Label: "Unknown"}}, nil
}

// ---------------------------------------------------------------------------
// Test-server helper
// ---------------------------------------------------------------------------

type testEnv struct {
	ts        *httptest.Server
	db        *memory.DB
	uploadDir string
}

func buildServer(t *testing.T, det *mockDetector, devUser bool, configure ...func(*adapthttp.Options)) *testEnv {
	t.Helper()

	if det == nil {
		det = &mockDetector{}
	}
	ctx := context.Background()
	db := memory.New()
	if err := db.UpsertFoods(ctx, []domain.FoodRecord{
		{Name: "rice", EnglishName: "Rice", Calories: 300, Quantity: "1 bowl"},
		{Name: "soup", EnglishName: "Soup", Calories: 200, Quantity: "1 bowl"},
		{Name: "apple", EnglishName: "Apple", Calories: 52, Quantity: "1"},
	}); err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	authSvc := app.NewAuthService(db, db.NewSessionRepo())
	budget := app.NewBudgetService(db)
	ledger := app.NewMealLedger(db, nil, m)
	resolver := app.NewResolver(db, 4, nil, m)

	webDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(webDir, "index.html"), []byte("<html></html>"), 0o600); err != nil {
		t.Fatal(err)
	}
	uploadDir := filepath.Join(t.TempDir(), "uploads")

	opts := adapthttp.Options{
		WebDir:         webDir,
		UploadDir:      uploadDir,
		MaxUploadBytes: 1 << 20,
		Metrics:        m,
		Gatherer:       reg,
	}
	for _, fn := range configure {
		fn(&opts)
	}

	srv := adapthttp.New(adapthttp.Services{
		Auth:      authSvc,
		Profile:   app.NewProfileService(db),
		Budget:    budget,
		Scan:      app.NewScanService(det, resolver, nil),
		Ledger:    ledger,
		Remaining: app.NewRemainingService(ledger, budget, db),
		History:   app.NewHistoryService(ledger, budget),
		Catalog:   app.NewCatalogService(db, nil),
	}, opts)

	if devUser {
		u, err := db.Create(ctx, domain.NewUser{
			Username: "alice",
			Profile:  domain.BiometricProfile{HeightCm: 170, WeightKg: 60, Gender: domain.Female},
		})
		if err != nil {
			t.Fatal(err)
		}
		srv = srv.WithoutAuth(u)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, db: db, uploadDir: uploadDir}
}

func trustForwardAuth(o *adapthttp.Options) { o.TrustForwardAuth = true }

func newTestServer(t *testing.T, det *mockDetector) *testEnv {
	t.Helper()
	return buildServer(t, det, true)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return m
}

func doJSON(t *testing.T, method, url string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func uploadImage(t *testing.T, url, filename string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(content)
	_ = mw.Close()

	resp, err := http.Post(url+"/api/upload/image", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	env := newTestServer(t, nil)

	resp := doJSON(t, http.MethodGet, env.ts.URL+"/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["ok"] != true {
		t.Fatalf("expected ok=true, got %v", body["ok"])
	}
	if resp.Header.Get("Cache-Control") != "no-store" {
		t.Errorf("expected no-store, got %q", resp.Header.Get("Cache-Control"))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestServer(t, nil)
	_ = doJSON(t, http.MethodGet, env.ts.URL+"/api/health", nil)

	resp := doJSON(t, http.MethodGet, env.ts.URL+"/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "mealtrack_http_requests_total") {
		t.Errorf("metrics output missing request counter:\n%s", b)
	}
}

func TestConfigEndpoint(t *testing.T) {
	env := newTestServer(t, nil)
	body := decodeBody(t, doJSON(t, http.MethodGet, env.ts.URL+"/api/config", nil))
	if body["sso_enabled"] != false {
		t.Errorf("expected sso disabled, got %v", body["sso_enabled"])
	}
	if types, ok := body["meal_types"].([]any); !ok || len(types) != 4 {
		t.Errorf("expected 4 meal types, got %v", body["meal_types"])
	}
}

func TestSSODisabled(t *testing.T) {
	env := newTestServer(t, nil)
	resp := doJSON(t, http.MethodGet, env.ts.URL+"/api/auth/sso/login", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name       string
		payload    map[string]any
		wantStatus int
	}{
		{
			name:       "valid",
			payload:    map[string]any{"username": "bob", "password": "secret", "heightCm": 180, "weightKg": 80, "gender": "male"},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "taken",
			payload:    map[string]any{"username": "alice", "password": "secret", "heightCm": 180, "weightKg": 80, "gender": "female"},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "bad gender",
			payload:    map[string]any{"username": "carol", "password": "secret", "heightCm": 180, "weightKg": 80, "gender": "x"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field",
			payload:    map[string]any{"username": "dave", "password": "secret", "age": 30},
			wantStatus: http.StatusBadRequest,
		},
	}

	env := newTestServer(t, nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, env.ts.URL+"/api/users/register", tc.payload)
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("expected %d, got %d; body: %v", tc.wantStatus, resp.StatusCode, decodeBody(t, resp))
			}
		})
	}
}

func TestSessionFlow(t *testing.T) {
	env := buildServer(t, nil, false)
	base := env.ts.URL

	resp := doJSON(t, http.MethodGet, base+"/api/users/info", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, base+"/api/users/register", map[string]any{
		"username": "erin", "password": "secret", "heightCm": 160, "weightKg": 50, "gender": "female",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, base+"/api/users/login", map[string]any{"username": "erin", "password": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, base+"/api/users/login", map[string]any{"username": "erin", "password": "secret"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			session = c
		}
	}
	if session == nil || session.Value == "" {
		t.Fatal("login did not set a session cookie")
	}

	req, _ := http.NewRequest(http.MethodGet, base+"/api/users/info", nil)
	req.Header.Set("User-Agent", "test-agent")
	req.AddCookie(session)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("info: expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["username"] != "erin" {
		t.Errorf("expected erin, got %v", body["username"])
	}
	profile, _ := body["profile"].(map[string]any)
	if profile["targetCalories"] != float64(1613) {
		t.Errorf("expected target 1613, got %v", profile["targetCalories"])
	}

	// A session is bound to the user agent it was created with.
	req, _ = http.NewRequest(http.MethodGet, base+"/api/users/info", nil)
	req.Header.Set("User-Agent", "other-agent")
	req.AddCookie(session)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close() //nolint:errcheck
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign user agent, got %d", resp2.StatusCode)
	}
}

func TestForwardAuth(t *testing.T) {
	env := buildServer(t, nil, false, trustForwardAuth)

	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/api/users/info", nil)
	req.Header.Set("Remote-User", "proxyuser")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["username"] != "proxyuser" || body["profile"] != nil {
		t.Errorf("unexpected body %v", body)
	}
}

func TestForwardAuth_IgnoredUnlessTrusted(t *testing.T) {
	env := buildServer(t, nil, false)

	resp := doJSON(t, http.MethodPost, env.ts.URL+"/api/users/register", map[string]any{
		"username": "victim", "password": "secret", "heightCm": 160, "weightKg": 60, "gender": "female",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/api/users/info", nil)
	req.Header.Set("Remote-User", "victim")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an unverified Remote-User header, got %d", resp.StatusCode)
	}

	// Nor is an account provisioned for an unknown asserted name.
	req, _ = http.NewRequest(http.MethodGet, env.ts.URL+"/api/users/info", nil)
	req.Header.Set("Remote-User", "intruder")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close() //nolint:errcheck
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp2.StatusCode)
	}
	if u, err := env.db.GetByUsername(context.Background(), "intruder"); err != nil || u != nil {
		t.Fatalf("expected no provisioned user, got %v (err %v)", u, err)
	}
}

func TestFoodLookup(t *testing.T) {
	env := newTestServer(t, nil)

	resp := doJSON(t, http.MethodGet, env.ts.URL+"/api/foods/rice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["name"] != "rice" || body["englishName"] != "Rice" || body["calories"] != float64(300) {
		t.Errorf("unexpected record %v", body)
	}

	resp = doJSON(t, http.MethodGet, env.ts.URL+"/api/foods/pizza", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown food, got %d", resp.StatusCode)
	}
}

func TestProfileAndCalories(t *testing.T) {
	env := newTestServer(t, nil)

	body := decodeBody(t, doJSON(t, http.MethodGet, env.ts.URL+"/api/users/calories", nil))
	if body["targetCalories"] != float64(1821) {
		t.Fatalf("expected 1821, got %v", body["targetCalories"])
	}

	resp := doJSON(t, http.MethodPut, env.ts.URL+"/api/users/profile", map[string]any{"heightCm": 180, "weightKg": 90, "gender": "male"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	profile, _ := decodeBody(t, resp)["profile"].(map[string]any)
	if profile["bmiCategory"] != "overweight" {
		t.Errorf("expected overweight, got %v", profile["bmiCategory"])
	}

	body = decodeBody(t, doJSON(t, http.MethodGet, env.ts.URL+"/api/users/calories", nil))
	if body["targetCalories"] != float64(2138) {
		t.Fatalf("expected 2138 after update, got %v", body["targetCalories"])
	}

	resp = doJSON(t, http.MethodPut, env.ts.URL+"/api/users/profile", map[string]any{"heightCm": 0, "weightKg": 90, "gender": "male"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCaloriesWithoutProfile(t *testing.T) {
	env := buildServer(t, nil, false, trustForwardAuth)

	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/api/users/calories", nil)
	req.Header.Set("Remote-User", "noprofile")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestMealCommitAndCalendar(t *testing.T) {
	env := newTestServer(t, nil)
	base := env.ts.URL

	resp := doJSON(t, http.MethodGet, base+"/api/users/calendar?date=2024-05-01", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for empty day, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, base+"/api/users/meals", map[string]any{
		"date": "2024-05-01", "mealType": "lunch", "foodIds": []string{"rice", "soup", "ghost"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["insertedCount"] != float64(3) || body["totalCalories"] != float64(500) {
		t.Errorf("unexpected commit result %v", body)
	}

	resp = doJSON(t, http.MethodGet, base+"/api/users/calendar?date=2024-05-01", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body = decodeBody(t, resp)
	if body["totalCalories"] != float64(500) {
		t.Errorf("expected 500, got %v", body["totalCalories"])
	}
	if lines, _ := body["lines"].([]any); len(lines) != 3 {
		t.Errorf("expected 3 lines, got %v", body["lines"])
	}

	for _, bad := range []map[string]any{
		{"date": "2024-05-01", "mealType": "brunch", "foodIds": []string{"rice"}},
		{"date": "2024-05-01", "mealType": "lunch", "foodIds": []string{}},
		{"date": "May 1", "mealType": "lunch", "foodIds": []string{"rice"}},
	} {
		resp = doJSON(t, http.MethodPost, base+"/api/users/meals", bad)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("payload %v: expected 400, got %d", bad, resp.StatusCode)
		}
	}
}

func TestRemainingAndRecommend(t *testing.T) {
	env := newTestServer(t, nil)
	base := env.ts.URL

	// No date means today in the budget calendar.
	resp := doJSON(t, http.MethodPost, base+"/api/users/meals", map[string]any{
		"mealType": "dinner", "foodIds": []string{"rice", "soup"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	body := decodeBody(t, doJSON(t, http.MethodGet, base+"/api/users/remaining-calories", nil))
	if body["target"] != float64(1821) || body["eaten"] != float64(500) || body["remaining"] != float64(1321) {
		t.Fatalf("unexpected report %v", body)
	}

	body = decodeBody(t, doJSON(t, http.MethodGet, base+"/api/users/recommend", nil))
	items, _ := body["items"].([]any)
	if len(items) != 3 {
		t.Fatalf("expected 3 recommendations, got %v", body["items"])
	}
	first, _ := items[0].(map[string]any)
	if first["name"] != "rice" {
		t.Errorf("expected highest-calorie food first, got %v", first["name"])
	}
}

func TestRecommendOverBudget(t *testing.T) {
	env := newTestServer(t, nil)
	ids := make([]string, 7)
	for i := range ids {
		ids[i] = "rice"
	}
	resp := doJSON(t, http.MethodPost, env.ts.URL+"/api/users/meals", map[string]any{"mealType": "snack", "foodIds": ids})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	body := decodeBody(t, doJSON(t, http.MethodGet, env.ts.URL+"/api/users/remaining-calories", nil))
	if body["remaining"] != float64(1821-2100) {
		t.Fatalf("expected negative remaining, got %v", body["remaining"])
	}
	body = decodeBody(t, doJSON(t, http.MethodGet, env.ts.URL+"/api/users/recommend", nil))
	if items, ok := body["items"].([]any); !ok || len(items) != 0 {
		t.Fatalf("expected empty items, got %v", body["items"])
	}
}

func TestUploadImage(t *testing.T) {
	var seenPath string
	env := newTestServer(t, &mockDetector{
		detectFn: func(_ context.Context, path string) ([]domain.Detection, error) {
			seenPath = path
			return []domain.Detection{{Label: "Rice"}, {Label: "Pizza"}}, nil
		},
	})

	resp := uploadImage(t, env.ts.URL, "lunch.png", pngBytes)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, decodeBody(t, resp))
	}
	body := decodeBody(t, resp)
	foods, _ := body["foodInfo"].([]any)
	if len(foods) != 2 || foods[1] != nil {
		t.Fatalf("unexpected foodInfo %v", body["foodInfo"])
	}
	rice, _ := foods[0].(map[string]any)
	if rice["name"] != "rice" || rice["calories"] != float64(300) {
		t.Errorf("unexpected match %v", rice)
	}

	if filepath.Dir(seenPath) != env.uploadDir || filepath.Ext(seenPath) != ".png" {
		t.Errorf("unexpected stored path %q", seenPath)
	}
	stored, err := os.ReadFile(seenPath)
	if err != nil || !bytes.Equal(stored, pngBytes) {
		t.Errorf("stored upload does not match: %v", err)
	}
}

func TestUploadImage_Rejected(t *testing.T) {
	env := newTestServer(t, &mockDetector{
		detectFn: func(context.Context, string) ([]domain.Detection, error) {
			t.Error("detector must not run")
			return nil, nil
		},
	})

	resp := uploadImage(t, env.ts.URL, "notes.png", []byte("just some text, not an image"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUploadImage_RecognitionFailure(t *testing.T) {
	env := newTestServer(t, &mockDetector{
		detectFn: func(context.Context, string) ([]domain.Detection, error) {
			return nil, fmt.Errorf("%w: exit status 1", domain.ErrRecognition)
		},
	})

	resp := uploadImage(t, env.ts.URL, "x.png", pngBytes)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
}

func TestChartsDaily(t *testing.T) {
	env := newTestServer(t, nil)

	body := decodeBody(t, doJSON(t, http.MethodGet, env.ts.URL+"/api/charts/daily?days=7", nil))
	items, _ := body["items"].([]any)
	if len(items) != 7 {
		t.Fatalf("expected 7 items, got %d", len(items))
	}
	last, _ := items[6].(map[string]any)
	if last["day"] != body["today"] || last["target"] != float64(1821) {
		t.Errorf("unexpected last point %v (today %v)", last, body["today"])
	}
}

func TestSPAFallback(t *testing.T) {
	env := newTestServer(t, nil)
	resp := doJSON(t, http.MethodGet, env.ts.URL+"/some/client/route", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	if string(b) != "<html></html>" {
		t.Errorf("expected index.html, got %q", b)
	}
}
