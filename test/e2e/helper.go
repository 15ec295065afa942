package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kataoka/daicho/internal/entities"
	"github.com/kataoka/daicho/internal/handlers"
	"github.com/kataoka/daicho/internal/infrastructure/config"
	"github.com/kataoka/daicho/internal/infrastructure/database"
	"github.com/kataoka/daicho/internal/repositories"
	"github.com/kataoka/daicho/internal/repositories/postgres"
	"github.com/kataoka/daicho/internal/services"
	"github.com/kataoka/daicho/internal/services/authorization"
	"github.com/kataoka/daicho/internal/services/lifecycle"
	"github.com/kataoka/daicho/pkg/cache/memorycache"
)

// personHeader mirrors the identity header the API expects from the
// upstream authenticating proxy.
const personHeader = "X-Person-ID"

// E2ETestServer hosts the full HTTP stack against the test database.
type E2ETestServer struct {
	HTTP     *httptest.Server
	DB       *sql.DB
	Links    repositories.LinkRepository
	Grants   repositories.GrantRepository
	Registry repositories.RegistryRepository
}

// SetupE2ETest wires the complete service stack against the test database
// and serves it over an in-process HTTP server. Tests are skipped when the
// database is not reachable.
func SetupE2ETest(t *testing.T) *E2ETestServer {
	t.Helper()

	config.InitConfig("test")
	cfg, err := config.Load()
	if err != nil {
		t.Skipf("test database not configured: %v", err)
	}

	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		t.Skipf("test database not available: %v", err)
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		t.Fatalf("failed to find project root: %v", err)
	}
	migrationsPath := filepath.Join(projectRoot, "internal/infrastructure/database/migrations/postgres")
	if err := pg.RunMigrations(migrationsPath); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	createBusinessTables(t, pg.DB)
	cleanupDatabase(t, pg.DB)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	typeRepo := postgres.NewPostgresEntityTypeRepository(pg.DB)
	registryRepo := postgres.NewPostgresRegistryRepository(pg.DB)
	linkRepo := postgres.NewPostgresLinkRepository(pg.DB)
	grantRepo := postgres.NewPostgresGrantRepository(pg.DB)

	typeCache, err := memorycache.New(&memorycache.Config{MaxEntries: 128, DefaultTTL: time.Minute})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	typeService := services.NewEntityTypeService(typeRepo, typeCache, time.Minute)
	linkService := services.NewLinkService(linkRepo, typeService)
	grantService := services.NewGrantService(grantRepo, typeService)
	resolver := authorization.NewResolver(linkRepo, grantRepo, logger)
	filterBuilder := authorization.NewFilterBuilder(linkRepo, grantRepo, registryRepo, resolver)
	orchestrator := lifecycle.NewOrchestrator(pg.DB, typeService, logger)

	router := handlers.NewRouter(&handlers.Handlers{
		Authorization: handlers.NewAuthorizationHandler(resolver, filterBuilder, logger, nil),
		Entities:      handlers.NewEntityHandler(orchestrator, resolver, logger, nil),
		EntityTypes:   handlers.NewEntityTypeHandler(typeService, logger),
		Links:         handlers.NewLinkHandler(linkService, resolver, logger),
		Grants:        handlers.NewGrantHandler(grantService, resolver, logger),
	})

	return &E2ETestServer{
		HTTP:     httptest.NewServer(router),
		DB:       pg.DB,
		Links:    linkRepo,
		Grants:   grantRepo,
		Registry: registryRepo,
	}
}

// Teardown cleans up the test environment.
func (e *E2ETestServer) Teardown(t *testing.T) {
	t.Helper()

	if e.HTTP != nil {
		e.HTTP.Close()
	}
	if e.DB != nil {
		cleanupDatabase(t, e.DB)
		e.DB.Close()
	}
}

// Do issues a request with the given identity and decodes the JSON
// response into out (when out is non-nil). It returns the status code.
func (e *E2ETestServer) Do(t *testing.T, method, path, personID string, body, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.HTTP.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if personID != "" {
		req.Header.Set(personHeader, personID)
	}

	resp, err := e.HTTP.Client().Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < http.StatusMultipleChoices {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response from %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// SeedMember registers a role and a person in the registry and links the
// person into the role. Roles and persons are infrastructure instances, so
// tests seed them directly instead of going through the entity API.
func (e *E2ETestServer) SeedMember(t *testing.T, roleID, personID string) {
	t.Helper()
	ctx := context.Background()

	records := []*entities.InstanceRecord{
		{Type: "role", ID: roleID, DisplayName: roleID},
		{Type: "person", ID: personID, DisplayName: personID},
	}
	for _, record := range records {
		if err := e.Registry.Create(ctx, record); err != nil {
			t.Fatalf("failed to register %s: %v", record.Ref(), err)
		}
	}

	err := e.Links.Set(ctx, &entities.InstanceLink{
		ParentType: "role",
		ParentID:   roleID,
		ChildType:  "person",
		ChildID:    personID,
		Kind:       entities.LinkMembership,
	})
	if err != nil {
		t.Fatalf("failed to link %s into %s: %v", personID, roleID, err)
	}
}

// SeedAdmin makes personID an operator: a member of the admins role with
// owner grants across every instance of the given types.
func (e *E2ETestServer) SeedAdmin(t *testing.T, personID string, typeCodes ...string) {
	t.Helper()
	ctx := context.Background()

	e.SeedMember(t, "admins", personID)

	for _, code := range typeCodes {
		_, err := e.Grants.Upsert(ctx, &entities.PermissionGrant{
			RoleID:      "admins",
			EntityType:  code,
			InstanceID:  entities.AllInstances,
			Level:       entities.LevelOwner,
			Inheritance: entities.InheritCascade,
		})
		if err != nil {
			t.Fatalf("failed to grant admins owner on %s: %v", code, err)
		}
	}
}

// createBusinessTables provisions the domain tables the scenarios register
// entity types against.
func createBusinessTables(t *testing.T, db *sql.DB) {
	t.Helper()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			code TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id    TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT ''
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to create business table: %v", err)
		}
	}
}

// cleanupDatabase removes all scenario data from the test database. The
// built-in role and person types survive.
func cleanupDatabase(t *testing.T, db *sql.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	statements := []string{
		"DELETE FROM permission_grants",
		"DELETE FROM entity_links",
		"DELETE FROM entity_registry",
		"DELETE FROM tasks",
		"DELETE FROM projects",
		"DELETE FROM entity_types WHERE code NOT IN ('role', 'person')",
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Logf("warning: cleanup statement failed: %v", err)
		}
	}
}

// findProjectRoot finds the project root directory by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("project root not found")
		}
		dir = parent
	}
}
