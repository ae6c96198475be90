package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/models"
)

const uniqueViolation = "23505"
const foreignKeyViolation = "23503"
const checkViolation = "23514"

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, username, email, full_name, password_hash,
        avatar_url, avatar_key, cover_image_url, cover_image_key,
        refresh_token, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	var refreshToken sql.NullString
	if err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName, &user.Password,
		&user.AvatarURL, &user.AvatarKey, &user.CoverImageURL, &user.CoverImageKey,
		&refreshToken, &user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		return models.User{}, err
	}
	if refreshToken.Valid {
		user.RefreshToken = refreshToken.String
	}
	return user, nil
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, username, email, full_name, password_hash,
                avatar_url, avatar_key, cover_image_url, cover_image_key,
                created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, user.ID, user.Username, user.Email, user.FullName, user.Password,
		user.AvatarURL, user.AvatarKey, user.CoverImageURL, user.CoverImageKey,
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByID fetches a user by primary key.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by id: %w", err)
	}

	return user, nil
}

// FindByUsername fetches a user by their unique username.
func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by username: %w", err)
	}

	return user, nil
}

// FindByUsernameOrEmail fetches the first user matching either identifier.
func (r *PostgresUserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT `+userColumns+`
        FROM users
        WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
        LIMIT 1
    `, username, email)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by username or email: %w", err)
	}

	return user, nil
}

// UpdateAccount modifies the mutable account fields and returns the new row.
func (r *PostgresUserRepository) UpdateAccount(ctx context.Context, id, fullName, email, username string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE users
        SET full_name = $2, email = $3, username = $4, updated_at = now()
        WHERE id = $1
        RETURNING `+userColumns, id, fullName, email, username)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.User{}, ErrConflict
		}
		return models.User{}, fmt.Errorf("update user account: %w", err)
	}

	return user, nil
}

// UpdatePassword replaces the stored password hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1
    `, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SetAvatar swaps the avatar reference and returns the updated row.
func (r *PostgresUserRepository) SetAvatar(ctx context.Context, id, url, key string) (models.User, error) {
	return r.setImage(ctx, id, "avatar_url", "avatar_key", url, key)
}

// SetCoverImage swaps the cover image reference and returns the updated row.
func (r *PostgresUserRepository) SetCoverImage(ctx context.Context, id, url, key string) (models.User, error) {
	return r.setImage(ctx, id, "cover_image_url", "cover_image_key", url, key)
}

func (r *PostgresUserRepository) setImage(ctx context.Context, id, urlColumn, keyColumn, url, key string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	// urlColumn and keyColumn are fixed identifiers chosen by the two
	// exported wrappers, never caller input.
	query := fmt.Sprintf(`
        UPDATE users SET %s = $2, %s = $3, updated_at = now()
        WHERE id = $1
        RETURNING `+userColumns, urlColumn, keyColumn)

	row := conn.QueryRow(ctx, query, id, url, key)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("update user %s: %w", urlColumn, err)
	}

	return user, nil
}

// SetRefreshToken stores a refresh token, overwriting any prior value.
func (r *PostgresUserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users SET refresh_token = $2, updated_at = now() WHERE id = $1
    `, id, token)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// RotateRefreshToken replaces the stored refresh token only when the current
// stored value still equals the presented one. A mismatch (another refresh
// already rotated it, or the token was revoked) returns ErrStaleToken.
func (r *PostgresUserRepository) RotateRefreshToken(ctx context.Context, id, current, next string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users SET refresh_token = $3, updated_at = now()
        WHERE id = $1 AND refresh_token = $2
    `, id, current, next)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrStaleToken
	}

	return nil
}

// ClearRefreshToken removes any stored refresh token. Idempotent.
func (r *PostgresUserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        UPDATE users SET refresh_token = NULL, updated_at = now() WHERE id = $1
    `, id); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}

	return nil
}

// PostgresSubscriptionRepository provides PostgreSQL-backed persistence for
// the subscriber-to-channel edge table.
type PostgresSubscriptionRepository struct {
	pool db.Pool
}

// NewPostgresSubscriptionRepository constructs a subscription repository backed by PostgreSQL.
func NewPostgresSubscriptionRepository(pool db.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Create persists a new subscription edge.
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, sub models.Subscription) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at)
        VALUES ($1, $2, $3, $4)
    `, sub.ID, sub.SubscriberID, sub.ChannelID, sub.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation, checkViolation:
				return ErrConflict
			case foreignKeyViolation:
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert subscription: %w", err)
	}

	return nil
}

// Delete removes the edge between a subscriber and a channel.
func (r *PostgresSubscriptionRepository) Delete(ctx context.Context, subscriberID, channelID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2
    `, subscriberID, channelID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Exists reports whether the subscriber currently follows the channel.
func (r *PostgresSubscriptionRepository) Exists(ctx context.Context, subscriberID, channelID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	err = conn.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2
        )
    `, subscriberID, channelID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}

	return exists, nil
}

// CountSubscribers returns how many users follow the channel.
func (r *PostgresSubscriptionRepository) CountSubscribers(ctx context.Context, channelID string) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1`, channelID)
}

// CountSubscribedChannels returns how many channels the user follows.
func (r *PostgresSubscriptionRepository) CountSubscribedChannels(ctx context.Context, subscriberID string) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = $1`, subscriberID)
}

func (r *PostgresSubscriptionRepository) count(ctx context.Context, query, arg string) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var n int64
	if err := conn.QueryRow(ctx, query, arg).Scan(&n); err != nil {
		return 0, fmt.Errorf("count subscriptions: %w", err)
	}

	return n, nil
}

// ListSubscribers returns the public profiles of users following a channel.
func (r *PostgresSubscriptionRepository) ListSubscribers(ctx context.Context, channelID string) ([]models.VideoOwner, error) {
	return r.listUsers(ctx, `
        SELECT u.id, u.username, u.email, u.avatar_url
        FROM subscriptions s
        JOIN users u ON u.id = s.subscriber_id
        WHERE s.channel_id = $1
        ORDER BY s.created_at DESC
    `, channelID)
}

// ListSubscribedChannels returns the public profiles of channels a user follows.
func (r *PostgresSubscriptionRepository) ListSubscribedChannels(ctx context.Context, subscriberID string) ([]models.VideoOwner, error) {
	return r.listUsers(ctx, `
        SELECT u.id, u.username, u.email, u.avatar_url
        FROM subscriptions s
        JOIN users u ON u.id = s.channel_id
        WHERE s.subscriber_id = $1
        ORDER BY s.created_at DESC
    `, subscriberID)
}

func (r *PostgresSubscriptionRepository) listUsers(ctx context.Context, query, arg string) ([]models.VideoOwner, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query subscription users: %w", err)
	}
	defer rows.Close()

	var users []models.VideoOwner
	for rows.Next() {
		var u models.VideoOwner
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan subscription user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscription users: %w", err)
	}

	return users, nil
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

const videoColumns = `id, title, description, duration, views, media_url, media_key,
        thumbnail_url, thumbnail_key, owner_id, published, created_at, updated_at`

func scanVideo(row pgx.Row) (models.Video, error) {
	var v models.Video
	err := row.Scan(
		&v.ID, &v.Title, &v.Description, &v.Duration, &v.Views, &v.MediaURL, &v.MediaKey,
		&v.ThumbnailURL, &v.ThumbnailKey, &v.OwnerID, &v.Published,
		&v.CreatedAt, &v.UpdatedAt,
	)
	return v, err
}

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, title, description, duration, views, media_url, media_key,
                thumbnail_url, thumbnail_key, owner_id, published, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `, video.ID, video.Title, video.Description, video.Duration, video.Views,
		video.MediaURL, video.MediaKey, video.ThumbnailURL, video.ThumbnailKey,
		video.OwnerID, video.Published, video.CreatedAt, video.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation:
				return ErrConflict
			case foreignKeyViolation:
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// FindByID fetches a video together with its owner's public fields.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.VideoWithOwner, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.VideoWithOwner{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT v.id, v.title, v.description, v.duration, v.views, v.media_url, v.media_key,
               v.thumbnail_url, v.thumbnail_key, v.owner_id, v.published,
               v.created_at, v.updated_at,
               u.id, u.username, u.email, u.avatar_url
        FROM videos v
        JOIN users u ON u.id = v.owner_id
        WHERE v.id = $1
    `, id)

	var result models.VideoWithOwner
	err = row.Scan(
		&result.ID, &result.Title, &result.Description, &result.Duration, &result.Views,
		&result.MediaURL, &result.MediaKey, &result.ThumbnailURL, &result.ThumbnailKey,
		&result.OwnerID, &result.Published, &result.CreatedAt, &result.UpdatedAt,
		&result.Owner.ID, &result.Owner.Username, &result.Owner.Email, &result.Owner.AvatarURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.VideoWithOwner{}, ErrNotFound
		}
		return models.VideoWithOwner{}, fmt.Errorf("select video: %w", err)
	}

	return result, nil
}

var videoSortColumns = map[string]string{
	SortByCreatedAt: "created_at",
	SortByTitle:     "title",
	SortByDuration:  "duration",
	SortByViews:     "views",
}

// List returns a page of videos plus the total count matching the filter.
func (r *PostgresVideoRepository) List(ctx context.Context, params ListVideosParams) ([]models.Video, int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = 10
	}

	column, ok := videoSortColumns[params.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if params.Ascending {
		direction = "ASC"
	}

	where := []string{"TRUE"}
	args := []any{}
	if params.Query != "" {
		args = append(args, "%"+params.Query+"%")
		where = append(where, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	if params.OwnerID != "" {
		args = append(args, params.OwnerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	filter := strings.Join(where, " AND ")

	var total int64
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM videos WHERE `+filter, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count videos: %w", err)
	}

	offset := (params.Page - 1) * params.Limit
	args = append(args, params.Limit, offset)
	query := fmt.Sprintf(`
        SELECT `+videoColumns+`
        FROM videos
        WHERE %s
        ORDER BY %s %s
        LIMIT $%d OFFSET $%d
    `, filter, column, direction, len(args)-1, len(args))

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, total, nil
}

// UpdateDetails modifies the title and description of a video.
func (r *PostgresVideoRepository) UpdateDetails(ctx context.Context, id, title, description string) (models.Video, error) {
	return r.returningUpdate(ctx, `
        UPDATE videos SET title = $2, description = $3, updated_at = now()
        WHERE id = $1
        RETURNING `+videoColumns, id, title, description)
}

// SetThumbnail swaps the thumbnail reference.
func (r *PostgresVideoRepository) SetThumbnail(ctx context.Context, id, url, key string) (models.Video, error) {
	return r.returningUpdate(ctx, `
        UPDATE videos SET thumbnail_url = $2, thumbnail_key = $3, updated_at = now()
        WHERE id = $1
        RETURNING `+videoColumns, id, url, key)
}

// SetMedia swaps the media reference and the derived duration.
func (r *PostgresVideoRepository) SetMedia(ctx context.Context, id, url, key string, duration float64) (models.Video, error) {
	return r.returningUpdate(ctx, `
        UPDATE videos SET media_url = $2, media_key = $3, duration = $4, updated_at = now()
        WHERE id = $1
        RETURNING `+videoColumns, id, url, key, duration)
}

// SetPublished flips the published flag.
func (r *PostgresVideoRepository) SetPublished(ctx context.Context, id string, published bool) (models.Video, error) {
	return r.returningUpdate(ctx, `
        UPDATE videos SET published = $2, updated_at = now()
        WHERE id = $1
        RETURNING `+videoColumns, id, published)
}

func (r *PostgresVideoRepository) returningUpdate(ctx context.Context, query string, args ...any) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	video, err := scanVideo(conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("update video: %w", err)
	}

	return video, nil
}

// IncrementViews bumps the view counter by one.
func (r *PostgresVideoRepository) IncrementViews(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `UPDATE videos SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a video record.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)
var _ VideoRepository = (*PostgresVideoRepository)(nil)
