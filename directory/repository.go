package directory

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	credentials "github.com/goliatone/go-credentials"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserModel is the users table row backing the directory.
type UserModel struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash" json:"password_hash,omitempty"`
	Verified      bool       `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

func (m *UserModel) toDirectoryUser() *credentials.DirectoryUser {
	return &credentials.DirectoryUser{
		ID:           m.ID.String(),
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
	}
}

// Repository implements credentials.Directory on top of bun.
type Repository struct {
	repository.Repository[*UserModel]
	db     *bun.DB
	now    func() time.Time
	logger credentials.Logger
}

var _ credentials.Directory = (*Repository)(nil)

// Option configures a Repository
type Option func(*Repository)

// WithClock overrides the time source used for update stamps
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the repository logger
func WithLogger(logger credentials.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRepository(db *bun.DB, opts ...Option) *Repository {
	repo := repository.NewRepository[*UserModel](db, repository.ModelHandlers[*UserModel]{
		NewRecord: func() *UserModel { return &UserModel{} },
		GetID: func(u *UserModel) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *UserModel, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	r := &Repository{
		Repository: repo,
		db:         db,
		now:        time.Now,
		logger:     credentials.DefaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// CreateSchema creates the users table when it does not exist.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().
		Model((*UserModel)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create users table")
	}
	return nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*credentials.DirectoryUser, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, credentials.ErrUserNotFound
	}

	record, err := r.Repository.GetByIdentifier(ctx, email)
	if err != nil {
		return nil, r.mapLookupError(err, "email", email)
	}
	return record.toDirectoryUser(), nil
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (*credentials.DirectoryUser, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, credentials.ErrUserNotFound
	}

	record := &UserModel{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.username = ?", username).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, r.mapLookupError(err, "username", username)
	}
	return record.toDirectoryUser(), nil
}

// CreateUser inserts a verified user. The id is derived from the email so a
// replayed confirmation maps to the same row.
func (r *Repository) CreateUser(ctx context.Context, user credentials.DirectoryUser) (*credentials.DirectoryUser, error) {
	email := normalizeEmail(user.Email)
	if email == "" || strings.TrimSpace(user.Username) == "" {
		return nil, credentials.ErrNoEmptyString
	}

	if _, err := r.FindByEmail(ctx, email); err == nil {
		return nil, credentials.ErrIdentityTaken
	} else if !goerrors.Is(err, credentials.ErrUserNotFound) {
		return nil, err
	}

	if _, err := r.FindByUsername(ctx, user.Username); err == nil {
		return nil, credentials.ErrIdentityTaken
	} else if !goerrors.Is(err, credentials.ErrUserNotFound) {
		return nil, err
	}

	id, err := hashid.NewUUID(email)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to derive user id")
	}

	now := r.now()
	record := &UserModel{
		ID:           id,
		Username:     strings.TrimSpace(user.Username),
		Email:        email,
		PasswordHash: user.PasswordHash,
		Verified:     true,
		CreatedAt:    &now,
		UpdatedAt:    &now,
	}

	created, err := r.Repository.Create(ctx, record)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}

	r.logger.Debug("directory user created: %s", created.ID)
	return created.toDirectoryUser(), nil
}

func (r *Repository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	email = normalizeEmail(email)
	if email == "" || passwordHash == "" {
		return credentials.ErrNoEmptyString
	}

	now := r.now()
	res, err := r.db.NewUpdate().
		Model((*UserModel)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", now).
		Where("email = ?", email).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return credentials.ErrUserNotFound
	}
	return nil
}

func (r *Repository) mapLookupError(err error, field, value string) error {
	if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
		return credentials.ErrUserNotFound
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user").
		WithMetadata(map[string]any{field: value})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
