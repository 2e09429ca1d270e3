package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/meterflow/meterflow-api/internal/models"
)

type UserRepository interface {
	CreateUser(ctx context.Context, tenantID, email, password string, roles []models.UserRole) (models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
	GetUserByID(ctx context.Context, userID string) (models.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (u *userRepository) CreateUser(ctx context.Context, tenantID, email, password string, roles []models.UserRole) (models.User, error) {
	if len(roles) == 0 {
		roles = []models.UserRole{models.RoleViewer}
	}
	if !models.IsValidRoleList(roles) {
		return models.User{}, errors.New("invalid roles")
	}
	normalized := models.EnsureDefaultRole(models.NormalizeRoles(roles))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
		Roles:        normalized,
	}

	const query = `
		INSERT INTO tenant.users (tenant_id, email, password_hash, is_active, roles)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id;
	`
	err = u.db.QueryRowContext(ctx, query,
		user.TenantID, user.Email, user.PasswordHash, user.IsActive, pq.Array(toStringSlice(user.Roles)),
	).Scan(&user.ID)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (u *userRepository) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	user, err := u.getByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, errors.New("invalid credentials")
		}
		return models.User{}, err
	}
	if !user.IsActive {
		return models.User{}, errors.New("user is inactive")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, errors.New("invalid credentials")
	}
	return user, nil
}

func (u *userRepository) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	const query = `
		SELECT id, tenant_id, email, password_hash, is_active, roles
		FROM tenant.users
		WHERE id = $1;
	`
	return scanUser(u.db.QueryRowContext(ctx, query, userID))
}

func (u *userRepository) getByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `
		SELECT id, tenant_id, email, password_hash, is_active, roles
		FROM tenant.users
		WHERE email = $1;
	`
	return scanUser(u.db.QueryRowContext(ctx, query, email))
}

func scanUser(row *sql.Row) (models.User, error) {
	var (
		user  models.User
		roles pq.StringArray
	)
	err := row.Scan(&user.ID, &user.TenantID, &user.Email, &user.PasswordHash, &user.IsActive, &roles)
	if err != nil {
		return models.User{}, err
	}
	for _, role := range roles {
		user.Roles = append(user.Roles, models.UserRole(role))
	}
	user.Roles = models.EnsureDefaultRole(models.NormalizeRoles(user.Roles))
	return user, nil
}

func toStringSlice(roles []models.UserRole) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, string(role))
	}
	return out
}
