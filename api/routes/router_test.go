package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oskim/tapflow-backend/internal/catalog"
	"github.com/oskim/tapflow-backend/internal/devices"
	"github.com/oskim/tapflow-backend/internal/ingest"
	"github.com/oskim/tapflow-backend/internal/orders"
	"github.com/oskim/tapflow-backend/internal/users"
	pkgauth "github.com/oskim/tapflow-backend/pkg/auth"
	"github.com/oskim/tapflow-backend/pkg/config"
	"github.com/oskim/tapflow-backend/pkg/db/models"
	"github.com/oskim/tapflow-backend/pkg/deviceauth"
	"github.com/oskim/tapflow-backend/pkg/enums"
	"github.com/oskim/tapflow-backend/pkg/logger"
	"github.com/oskim/tapflow-backend/pkg/redis"
)

const testDeviceSecret = "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0"

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubUsersService struct{}

func (stubUsersService) Login(ctx context.Context, input users.LoginInput) (*users.LoginResult, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubUsersService) Me(ctx context.Context, userID uuid.UUID) (*users.UserView, error) {
	return &users.UserView{UserID: userID}, nil
}

func (stubUsersService) ListUsers(ctx context.Context, actorRole enums.UserRole, limit int) ([]users.UserView, error) {
	return []users.UserView{}, nil
}

func (stubUsersService) GetUser(ctx context.Context, actorRole enums.UserRole, userID uuid.UUID) (*users.UserView, error) {
	panic("unimplemented")
}

func (stubUsersService) CreateUser(ctx context.Context, actorRole enums.UserRole, input users.CreateUserInput) (*users.UserView, error) {
	panic("unimplemented")
}

func (stubUsersService) UpdateUser(ctx context.Context, actorRole enums.UserRole, userID uuid.UUID, input users.UpdateUserInput) (*users.UserView, error) {
	panic("unimplemented")
}

type stubCatalogService struct{}

func (stubCatalogService) VenueMenu(ctx context.Context, venueID uuid.UUID, dispenserID string) (*catalog.VenueMenu, error) {
	return &catalog.VenueMenu{VenueID: venueID}, nil
}

func (stubCatalogService) ListVenues(ctx context.Context, actor catalog.Actor, limit int) ([]models.Venue, error) {
	return []models.Venue{}, nil
}

func (stubCatalogService) GetVenue(ctx context.Context, actor catalog.Actor, venueID uuid.UUID) (*models.Venue, error) {
	panic("unimplemented")
}

func (stubCatalogService) CreateVenue(ctx context.Context, actor catalog.Actor, input catalog.CreateVenueInput) (*models.Venue, error) {
	panic("unimplemented")
}

func (stubCatalogService) UpdateVenue(ctx context.Context, actor catalog.Actor, venueID uuid.UUID, input catalog.UpdateVenueInput) (*models.Venue, error) {
	panic("unimplemented")
}

func (stubCatalogService) ListBeers(ctx context.Context, limit int) ([]models.Beer, error) {
	return []models.Beer{}, nil
}

func (stubCatalogService) CreateBeer(ctx context.Context, actor catalog.Actor, input catalog.CreateBeerInput) (*models.Beer, error) {
	panic("unimplemented")
}

func (stubCatalogService) UpdateBeer(ctx context.Context, actor catalog.Actor, beerID uuid.UUID, input catalog.UpdateBeerInput) (*models.Beer, error) {
	panic("unimplemented")
}

func (stubCatalogService) AssignTap(ctx context.Context, actor catalog.Actor, input catalog.AssignTapInput) (*models.VenueDispenser, error) {
	panic("unimplemented")
}

func (stubCatalogService) OwnedVenueIDs(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

type stubOrdersService struct{}

func (stubOrdersService) Create(ctx context.Context, input orders.CreateInput) (*models.Order, error) {
	panic("unimplemented")
}

func (stubOrdersService) Pay(ctx context.Context, input orders.PayInput) (*models.Order, error) {
	return &models.Order{ID: input.OrderID, Status: enums.OrderStatusReady}, nil
}

func (stubOrdersService) StartDispense(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	panic("unimplemented")
}

func (stubOrdersService) ApplyDeviceEvent(ctx context.Context, tx *gorm.DB, input orders.DeviceEventInput) (*models.Order, error) {
	panic("unimplemented")
}

func (stubOrdersService) Refund(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error) {
	panic("unimplemented")
}

func (stubOrdersService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: orderID, Status: enums.OrderStatusPending}, nil
}

func (stubOrdersService) Status(ctx context.Context, orderID uuid.UUID) (*orders.StatusProjection, error) {
	return &orders.StatusProjection{OrderID: orderID, Status: enums.OrderStatusPending}, nil
}

func (stubOrdersService) List(ctx context.Context, filters orders.ListFilters) ([]models.Order, error) {
	return []models.Order{}, nil
}

type stubDevicesService struct{}

func (stubDevicesService) Provision(ctx context.Context, input devices.ProvisionInput) (*devices.ProvisionResult, bool, error) {
	panic("unimplemented")
}

func (stubDevicesService) List(ctx context.Context, limit int) ([]models.Dispenser, error) {
	return []models.Dispenser{}, nil
}

func (stubDevicesService) Get(ctx context.Context, dispenserID string) (*models.Dispenser, error) {
	panic("unimplemented")
}

func (stubDevicesService) Patch(ctx context.Context, dispenserID string, input devices.PatchInput) (*models.Dispenser, error) {
	panic("unimplemented")
}

func (stubDevicesService) ReadNVS(ctx context.Context, dispenserID string) (*devices.NVSView, error) {
	return &devices.NVSView{DispenserID: dispenserID}, nil
}

func (stubDevicesService) NVSVersion(ctx context.Context, dispenserID string) (int64, error) {
	return 1, nil
}

func (stubDevicesService) DeviceWriteNVS(ctx context.Context, dispenserID string, input devices.NVSWriteInput) (*devices.NVSView, error) {
	panic("unimplemented")
}

func (stubDevicesService) AdminWriteNVS(ctx context.Context, dispenserID string, input devices.NVSWriteInput) (*devices.NVSView, error) {
	panic("unimplemented")
}

func (stubDevicesService) Status(ctx context.Context, dispenserID string) (*devices.StatusView, error) {
	return &devices.StatusView{DispenserID: dispenserID}, nil
}

type stubDeviceStore struct{}

func (stubDeviceStore) DeviceSecret(ctx context.Context, dispenserID string) (string, bool, error) {
	if dispenserID == "TAP_001" {
		return testDeviceSecret, true, nil
	}
	return "", false, nil
}

func (stubDeviceStore) TouchLastSeen(ctx context.Context, dispenserID string, at time.Time) error {
	return nil
}

type stubIngestService struct{}

func (stubIngestService) HandleStatus(ctx context.Context, dispenserID string, report ingest.StatusReport) (*ingest.Result, error) {
	return &ingest.Result{OrderID: report.OrderID, Status: enums.OrderStatusCompleted}, nil
}

type stubDispatcher struct{}

func (stubDispatcher) PermitResponse(ctx context.Context, dispenserID string, permitted bool, maxML int, userName, message string) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
		Device: config.DeviceConfig{
			SignatureSkew:    5 * time.Minute,
			DefaultMaxPourML: 500,
		},
		AuthRateLimit: config.AuthRateLimitConfig{
			LoginWindow:     time.Minute,
			LoginEmailLimit: 5,
			LoginIPLimit:    20,
		},
		Idempotency: config.IdempotencyConfig{TTL: 24 * time.Hour},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		(*redis.Client)(nil),
		stubPinger{},
		stubUsersService{},
		stubCatalogService{},
		stubOrdersService{},
		stubDevicesService{},
		stubDeviceStore{},
		stubIngestService{},
		stubDispatcher{},
	)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "admin@example.com",
		Role:   role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func signDeviceRequest(req *http.Request, dispenserID string) {
	ts := time.Now().Unix()
	req.Header.Set(deviceauth.HeaderDispenserID, dispenserID)
	req.Header.Set(deviceauth.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(deviceauth.HeaderSignature, deviceauth.Sign(testDeviceSecret, dispenserID, ts))
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for liveness got %d", resp.Code)
	}
}

func TestAdminGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/venues", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestAdminGroupAdmitsKnownRoles(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	for _, role := range []enums.UserRole{enums.UserRoleSuperAdmin, enums.UserRoleVenueOwner} {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/venues", nil)
		req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, role))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for role %s got %d", role, resp.Code)
		}
	}
}

func TestAdminGroupRejectsTamperedToken(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/venues", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleSuperAdmin)+"x")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for tampered token got %d", resp.Code)
	}
}

func TestProvisioningRequiresJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dispensers", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/dispensers", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleSuperAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin listing got %d", resp.Code)
	}
}

func TestDeviceGroupRejectsMissingHeaders(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dispensers/TAP_001/status", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without device headers got %d", resp.Code)
	}
}

func TestDeviceGroupAcceptsSignedRequest(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dispensers/TAP_001/status", nil)
	signDeviceRequest(req, "TAP_001")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for signed device request got %d", resp.Code)
	}
}

func TestDeviceGroupRejectsPathMismatch(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dispensers/TAP_002/status", nil)
	signDeviceRequest(req, "TAP_001")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for mismatched path id got %d", resp.Code)
	}
}

func TestPayRequiresIdempotencyKey(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+uuid.NewString()+"/pay", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key got %d", resp.Code)
	}
}

func TestOrderDetailIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for public order detail got %d", resp.Code)
	}
}

func TestOrderStatusIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+uuid.NewString()+"/status", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for public status got %d", resp.Code)
	}
}

func TestVenueMenuIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/venues/"+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for public venue menu got %d", resp.Code)
	}
}
