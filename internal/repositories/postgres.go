package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/videshare/backend/internal/db"
	"github.com/videshare/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for accounts.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new account record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, username, email, password_hash, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, user.ID, user.Username, user.Email, user.Password, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByEmail fetches an account by its email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findBy(ctx, "email", email)
}

// FindByUsername fetches an account by its public handle.
func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findBy(ctx, "username", username)
}

func (r *PostgresUserRepository) findBy(ctx context.Context, column, value string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, fmt.Sprintf(`
        SELECT id, username, email, password_hash, created_at
        FROM users
        WHERE %s = $1
    `, column), value)

	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by %s: %w", column, err)
	}

	return user, nil
}

// PostgresVideoRepository stores video metadata as whole JSONB documents with
// a version column supporting conditional replaces.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video document repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Insert stores a new video document at version 1.
func (r *PostgresVideoRepository) Insert(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	doc, err := json.Marshal(video)
	if err != nil {
		return fmt.Errorf("encode video document: %w", err)
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, doc, upload_date, version)
        VALUES ($1, $2, $3, 1)
    `, video.ID, doc, video.UploadDate)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// Get performs a point read, returning the document and the version to pass
// to a subsequent Replace.
func (r *PostgresVideoRepository) Get(ctx context.Context, id string) (models.Video, int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT doc, version
        FROM videos
        WHERE id = $1
    `, id)

	var (
		doc     []byte
		version int64
	)
	if err := row.Scan(&doc, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, 0, ErrNotFound
		}
		return models.Video{}, 0, fmt.Errorf("select video: %w", err)
	}

	var video models.Video
	if err := json.Unmarshal(doc, &video); err != nil {
		return models.Video{}, 0, fmt.Errorf("decode video document: %w", err)
	}

	return video, version, nil
}

// Replace swaps the whole document for the provided one, but only if nobody
// replaced it since the version was read.
func (r *PostgresVideoRepository) Replace(ctx context.Context, video models.Video, version int64) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	doc, err := json.Marshal(video)
	if err != nil {
		return fmt.Errorf("encode video document: %w", err)
	}

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET doc = $2, upload_date = $3, version = version + 1
        WHERE id = $1 AND version = $4
    `, video.ID, doc, video.UploadDate, version)
	if err != nil {
		return fmt.Errorf("replace video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		row := conn.QueryRow(ctx, `SELECT 1 FROM videos WHERE id = $1`, video.ID)
		var one int
		if scanErr := row.Scan(&one); scanErr != nil {
			if errors.Is(scanErr, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("check video existence: %w", scanErr)
		}
		return ErrVersionConflict
	}

	return nil
}

// Delete removes a video document.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM videos
        WHERE id = $1
    `, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// List scans every video document in natural store order. Feed ordering is
// applied by the assembler, which relies on this order being stable.
func (r *PostgresVideoRepository) List(ctx context.Context) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT doc
        FROM videos
        ORDER BY seq
    `)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}

		var video models.Video
		if err := json.Unmarshal(doc, &video); err != nil {
			return nil, fmt.Errorf("decode video document: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ VideoRepository = (*PostgresVideoRepository)(nil)
