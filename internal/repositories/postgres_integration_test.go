package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/videshare/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)

	user := models.User{
		ID:        uuid.NewString(),
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  "secret-hash",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dupEmail := models.User{
		ID:        uuid.NewString(),
		Username:  "alice2",
		Email:     user.Email,
		Password:  "another-hash",
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Create(ctx, dupEmail); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}

	dupUsername := models.User{
		ID:        uuid.NewString(),
		Username:  user.Username,
		Email:     "fresh@example.com",
		Password:  "another-hash",
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Create(ctx, dupUsername); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate username, got %v", err)
	}

	fetched, err := repo.FindByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if fetched.ID != user.ID || fetched.Username != user.Username || fetched.Password != user.Password {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}

	fetched, err = repo.FindByUsername(ctx, user.Username)
	if err != nil {
		t.Fatalf("find by username: %v", err)
	}
	if fetched.ID != user.ID {
		t.Fatalf("unexpected user fetched by username: %+v", fetched)
	}

	if _, err := repo.FindByEmail(ctx, "missing@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing email, got %v", err)
	}
	if _, err := repo.FindByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing username, got %v", err)
	}
}

func TestPostgresVideoRepository_DocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresVideoRepository(testPool)

	video := testVideo("clip.mp4", time.Now().UTC().Truncate(time.Millisecond))
	if err := repo.Insert(ctx, video); err != nil {
		t.Fatalf("insert video: %v", err)
	}

	if err := repo.Insert(ctx, video); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate id, got %v", err)
	}

	stored, version, err := repo.Get(ctx, video.ID)
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected version 1 after insert, got %d", version)
	}
	if stored.Title != video.Title || stored.CreatedBy != video.CreatedBy {
		t.Fatalf("document round trip mismatch: %+v", stored)
	}

	stored.Likes = append(stored.Likes, "u-1")
	if err := repo.Replace(ctx, stored, version); err != nil {
		t.Fatalf("replace video: %v", err)
	}

	// The version read before the successful replace is now stale.
	if err := repo.Replace(ctx, stored, version); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict for stale version, got %v", err)
	}

	stored, version, err = repo.Get(ctx, video.ID)
	if err != nil {
		t.Fatalf("get video after replace: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected version 2 after replace, got %d", version)
	}
	if len(stored.Likes) != 1 || stored.Likes[0] != "u-1" {
		t.Fatalf("replaced document not persisted: %+v", stored)
	}

	ghost := testVideo("ghost.mp4", time.Now().UTC())
	if err := repo.Replace(ctx, ghost, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound replacing missing video, got %v", err)
	}

	if err := repo.Delete(ctx, video.ID); err != nil {
		t.Fatalf("delete video: %v", err)
	}
	if err := repo.Delete(ctx, video.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
	if _, _, err := repo.Get(ctx, video.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPostgresVideoRepository_ListNaturalOrder(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresVideoRepository(testPool)

	base := time.Now().UTC().Truncate(time.Millisecond)

	// Insert with upload dates deliberately out of insertion order: List must
	// follow insertion order and leave date sorting to the feed assembler.
	first := testVideo("first.mp4", base.Add(time.Hour))
	second := testVideo("second.mp4", base)
	third := testVideo("third.mp4", base.Add(30*time.Minute))

	for _, v := range []models.Video{first, second, third} {
		if err := repo.Insert(ctx, v); err != nil {
			t.Fatalf("insert %s: %v", v.ID, err)
		}
	}

	videos, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list videos: %v", err)
	}

	if len(videos) != 3 {
		t.Fatalf("expected 3 videos, got %d", len(videos))
	}
	for i, want := range []string{first.ID, second.ID, third.ID} {
		if videos[i].ID != want {
			t.Fatalf("natural order broken at %d: got %s want %s", i, videos[i].ID, want)
		}
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE videos, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func testVideo(filename string, uploadDate time.Time) models.Video {
	return models.Video{
		ID:          fmt.Sprintf("%s-%d", filename, uploadDate.UnixMilli()),
		Title:       "Test " + filename,
		Description: "integration fixture",
		BlobURL:     "http://localhost:9000/videshare/" + filename,
		Filename:    filename,
		CreatedBy:   "alice",
		UploadDate:  uploadDate,
		Likes:       []string{},
		Comments:    []models.Comment{},
	}
}
