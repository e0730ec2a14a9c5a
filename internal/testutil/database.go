package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dimitrije/assessor-collab/internal/database"
	"github.com/dimitrije/assessor-collab/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB wraps a migrated Postgres container.
type TestDB struct {
	DB        *database.DB
	Container testcontainers.Container

	counter int
}

// SetupTestDB starts a PostgreSQL testcontainer, runs the migrations and
// terminates the container when the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "collab_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/collab_test?sslmode=disable", host, port.Port())

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	db := &database.DB{Pool: pool}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{DB: db, Container: container}
}

// CleanTables truncates every table to reset state between tests.
func (tdb *TestDB) CleanTables(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	tables := []string{
		"collaboration_suggestions",
		"model_changes",
		"activity_events",
		"comment_replies",
		"comments",
		"components",
		"calculations",
		"variables",
		"validation_rules",
		"test_cases",
		"workspace_members",
		"workspaces",
		"team_members",
	}

	for _, table := range tables {
		_, err := tdb.DB.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table))
		if err != nil {
			t.Fatalf("failed to truncate table %s: %v", table, err)
		}
	}
}

// CreateMember inserts a team member with generated name and email.
func (tdb *TestDB) CreateMember(t *testing.T) *models.TeamMember {
	t.Helper()
	tdb.counter++

	var m models.TeamMember
	err := tdb.DB.Pool.QueryRow(context.Background(), `
		INSERT INTO team_members (name, email, role)
		VALUES ($1, $2, 'assessor')
		RETURNING id, name, role, email, avatar_url, status, last_active
	`, fmt.Sprintf("Member %d", tdb.counter), fmt.Sprintf("member%d@example.com", tdb.counter)).
		Scan(&m.ID, &m.Name, &m.Role, &m.Email, &m.AvatarURL, &m.Status, &m.LastActive)
	if err != nil {
		t.Fatalf("failed to create member: %v", err)
	}
	return &m
}

// CreateEntity inserts an editable entity row into table.
func (tdb *TestDB) CreateEntity(t *testing.T, table, modelID, name, content string) int64 {
	t.Helper()

	var id int64
	err := tdb.DB.Pool.QueryRow(context.Background(), fmt.Sprintf(`
		INSERT INTO %s (model_id, name, content) VALUES ($1, $2, $3) RETURNING id
	`, table), modelID, name, content).Scan(&id)
	if err != nil {
		t.Fatalf("failed to create %s row: %v", table, err)
	}
	return id
}
