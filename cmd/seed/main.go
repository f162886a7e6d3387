// seed inserts a development tenant, an ADMIN user and a plain USER for local testing.
// Idempotent: the tenant is upserted and users that already exist are skipped.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jfkeci/job-board-sub000/internal/config"
	"github.com/jfkeci/job-board-sub000/internal/db"
	"github.com/jfkeci/job-board-sub000/internal/memstore"
	"github.com/jfkeci/job-board-sub000/internal/security"
	"github.com/jfkeci/job-board-sub000/internal/user/domain"
	"github.com/jfkeci/job-board-sub000/internal/user/repository"
)

const devPassword = "Password123!"

type seedUser struct {
	email     string
	firstName string
	lastName  string
	role      domain.Role
}

var devUsers = []seedUser{
	{email: "admin@example.com", firstName: "Dev", lastName: "Admin", role: domain.RoleAdmin},
	{email: "user@example.com", firstName: "Dev", lastName: "User", role: domain.RoleUser},
}

func main() {
	cfg, err := config.LoadTooling()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := conn.ExecContext(ctx,
		`INSERT INTO tenants (id, name, slug) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		memstore.DevTenantID, "Development", "dev",
	); err != nil {
		log.Fatalf("seed tenant: %v", err)
	}

	hasher := security.NewHasher(security.PasswordParams{
		MemoryKB:    uint32(max(cfg.Argon2MemoryKB, config.MinArgon2MemoryKB)),
		Time:        uint32(max(cfg.Argon2Time, config.MinArgon2Time)),
		Parallelism: uint8(max(cfg.Argon2Parallelism, config.MinArgon2Parallelism)),
	}, 1)
	users := repository.NewPostgresRepository(conn)

	for _, su := range devUsers {
		existing, err := users.GetByEmailAndTenant(ctx, su.email, memstore.DevTenantID)
		if err != nil {
			log.Fatalf("seed check %s: %v", su.email, err)
		}
		if existing != nil {
			log.Printf("seed: %s already exists, skipping", su.email)
			continue
		}

		hash, err := hasher.Hash(ctx, devPassword)
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		now := time.Now().UTC()
		u := &domain.User{
			ID:           uuid.NewString(),
			TenantID:     memstore.DevTenantID,
			Email:        su.email,
			PasswordHash: &hash,
			Role:         su.role,
			Language:     "en",
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		p := &domain.Profile{UserID: u.ID, FirstName: su.firstName, LastName: su.lastName, CreatedAt: now, UpdatedAt: now}
		if err := users.Create(ctx, u, p); err != nil {
			log.Fatalf("create %s: %v", su.email, err)
		}
		log.Printf("seed: created %s (%s)", su.email, su.role)
	}

	log.Printf("Seed complete. Tenant %s; log in with any seeded email and password %q", memstore.DevTenantID, devPassword)
}
