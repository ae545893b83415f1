package leaderboard

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func testAuth(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	}
}

func TestLeaderboardHandlers(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO route_runs`).
		WithArgs(pgxmock.AnyArg(), "route-1", "user-1", 900.0, 3.1, "9:40", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"completed_at"}).AddRow(time.Now()))
	mock.ExpectExec(`UPDATE shared_routes SET run_count = run_count \+ 1`).
		WithArgs("route-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	mock.ExpectQuery(`SELECT id, participant_id, elapsed_sec`).
		WithArgs("route-1", 20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "participant_id", "elapsed_sec", "distance_miles", "pace", "completed_at"}).
			AddRow("r1", "user-1", 900.0, 3.1, "9:40", time.Now()))

	app := fiber.New()
	RegisterRoutes(app.Group("/leaderboard"), NewService(mock), testAuth("user-1"))

	body, _ := json.Marshal(Run{ElapsedSec: 900, DistanceMiles: 3.1, Pace: "9:40"})
	req := httptest.NewRequest(http.MethodPost, "/leaderboard/route-1/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("append status: %v %d", err, resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/leaderboard/route-1", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("top status: %v", err)
	}
	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || !entries[0].IsSelf {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestAppendRejectsInvalidRun(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/leaderboard"), NewService(nil), testAuth("user-1"))

	// elapsed_sec must be positive
	req := httptest.NewRequest(http.MethodPost, "/leaderboard/route-1/runs", bytes.NewReader([]byte(`{"elapsed_sec":0}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/leaderboard/route-1/runs", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request for malformed body")
	}
}

func TestAppendRequiresIdentity(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/leaderboard"), NewService(nil), testAuth(""))

	body, _ := json.Marshal(Run{ElapsedSec: 900})
	req := httptest.NewRequest(http.MethodPost, "/leaderboard/route-1/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", resp.StatusCode)
	}
}

func TestTopEmptyReturnsEmptyArray(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, participant_id, elapsed_sec`).
		WithArgs("route-1", 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "participant_id", "elapsed_sec", "distance_miles", "pace", "completed_at"}))

	app := fiber.New()
	RegisterRoutes(app.Group("/leaderboard"), NewService(mock), testAuth("user-1"))

	req := httptest.NewRequest(http.MethodGet, "/leaderboard/route-1?limit=5", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("top status: %v", err)
	}
	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Fatalf("expected empty array")
	}
}
