package database

import (
	"context"
	"errors"
	"fmt"

	"emilia-bot/internal/config"
	"emilia-bot/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

type ConnectionError struct {
	Host string
	Port int
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to database at %s:%d: %v", e.Host, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, &ConnectionError{
			Host: cfg.Host,
			Port: cfg.Port,
			Err:  err,
		}
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, &ConnectionError{
			Host: cfg.Host,
			Port: cfg.Port,
			Err:  err,
		}
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreate upserts the user's profile fields and loads the stored
// preference columns. Calling it twice without a toggle in between
// returns the same preference values.
func (r *UserRepository) GetOrCreate(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (telegram_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (telegram_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			last_interaction = CURRENT_TIMESTAMP
		RETURNING id, nsfw_enabled, age_confirmed, is_premium, request_count, created_at, last_interaction
	`
	return r.db.Pool.QueryRow(ctx, query,
		user.TelegramID, user.Username, user.FirstName, user.LastName,
	).Scan(
		&user.ID, &user.NSFWEnabled, &user.AgeConfirmed, &user.IsPremium,
		&user.RequestCount, &user.CreatedAt, &user.LastInteraction,
	)
}

// SetNSFW overwrites the preference column. Full overwrite, not a merge.
func (r *UserRepository) SetNSFW(ctx context.Context, telegramID int64, enabled bool) error {
	tag, err := r.db.Pool.Exec(ctx,
		"UPDATE users SET nsfw_enabled = $2 WHERE telegram_id = $1",
		telegramID, enabled,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) ConfirmAge(ctx context.Context, telegramID int64) error {
	tag, err := r.db.Pool.Exec(ctx,
		"UPDATE users SET age_confirmed = TRUE WHERE telegram_id = $1",
		telegramID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) IncrementRequests(ctx context.Context, telegramID int64) error {
	_, err := r.db.Pool.Exec(ctx,
		"UPDATE users SET request_count = request_count + 1, last_interaction = CURRENT_TIMESTAMP WHERE telegram_id = $1",
		telegramID,
	)
	return err
}

func (r *UserRepository) Stats(ctx context.Context) (*models.Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE last_interaction > CURRENT_TIMESTAMP - INTERVAL '24 hours'),
			COALESCE(SUM(request_count), 0)
		FROM users
	`
	var stats models.Stats
	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&stats.TotalUsers, &stats.DailyActive, &stats.TotalRequests,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

type FavoriteRepository struct {
	db *DB
}

func NewFavoriteRepository(db *DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

func (r *FavoriteRepository) Add(ctx context.Context, telegramID int64, imageURL string) error {
	query := `
		INSERT INTO favorites (user_id, image_url)
		VALUES ($1, $2)
		ON CONFLICT (user_id, image_url) DO NOTHING
	`
	_, err := r.db.Pool.Exec(ctx, query, telegramID, imageURL)
	return err
}

func (r *FavoriteRepository) ListRecent(ctx context.Context, telegramID int64, limit int) ([]models.Favorite, error) {
	query := `
		SELECT id, user_id, image_url, created_at
		FROM favorites
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, telegramID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var favorites []models.Favorite
	for rows.Next() {
		var f models.Favorite
		if err := rows.Scan(&f.ID, &f.UserID, &f.ImageURL, &f.CreatedAt); err != nil {
			return nil, err
		}
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}

func (r *FavoriteRepository) Count(ctx context.Context, telegramID int64) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM favorites WHERE user_id = $1", telegramID,
	).Scan(&count)
	return count, err
}
