package repository

import (
	"context"

	"riskwatch/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type UserRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewUserRepository(pool PgxPool, tracer trace.Tracer) *UserRepository {
	return &UserRepository{pool: pool, tracer: tracer}
}

func (r *UserRepository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "user-repo.get-user")
	defer span.End()

	u := &domain.User{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, is_admin, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (r *UserRepository) ListAdmins(ctx context.Context) ([]domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "user-repo.list-admins")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, name, email, is_admin, created_at FROM users WHERE is_admin ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.IsAdmin, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) CreateUser(ctx context.Context, u *domain.User) error {
	ctx, span := r.tracer.Start(ctx, "user-repo.create-user")
	defer span.End()

	return r.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, is_admin) VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		u.Name, u.Email, u.IsAdmin,
	).Scan(&u.ID, &u.CreatedAt)
}
