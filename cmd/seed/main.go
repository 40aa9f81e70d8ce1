package main

import (
	"context"
	"fmt"
	"log"

	"venuely/internal/cancellation"
	"venuely/internal/shared/config"
	"venuely/internal/shared/database"
	"venuely/internal/users"
	"venuely/internal/venues"
	"venuely/pkg/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const seedPassword = "Password@123"

type Seeder struct {
	db *database.DB
}

func main() {
	fmt.Println("🌱 Starting Venuely Database Seeder...")

	cfg := config.Load()
	db, err := database.InitDB(cfg, logger.New(cfg.LogLevel))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(context.Background()); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	fmt.Printf("\n🎉 Seeding completed! Every account uses the password %q.\n", seedPassword)
}

// CleanDatabase truncates all tables, dependents first.
func (s *Seeder) CleanDatabase() error {
	tables := []string{"notifications", "payments", "bookings", "venues", "users"}

	return s.db.PostgreSQL.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			fmt.Printf("  Truncating table: %s\n", table)
			if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
				return fmt.Errorf("failed to truncate table %s: %w", table, err)
			}
		}
		return nil
	})
}

// SeedAll creates one account per role and two venues for the owner.
func (s *Seeder) SeedAll(ctx context.Context) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	accounts := []users.User{
		{FirstName: "Admin", LastName: "User", Email: "admin@venuely.com", Role: users.RoleAdmin, Password: string(hash)},
		{FirstName: "Ramesh", LastName: "Thapa", Email: "owner@venuely.com", Role: users.RoleOwner, Phone: "9800000001", Password: string(hash)},
		{FirstName: "Sita", LastName: "Sharma", Email: "user@venuely.com", Role: users.RoleUser, Phone: "9800000002", Password: string(hash)},
	}
	if err := s.db.PostgreSQL.WithContext(ctx).Create(&accounts).Error; err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	for _, u := range accounts {
		fmt.Printf("  👤 %-6s %s\n", u.Role, u.Email)
	}
	owner := accounts[1]

	repo := venues.NewRepository(s.db.PostgreSQL)
	list := []*venues.Venue{
		{
			OwnerID:            owner.ID,
			Name:               "Everest Banquet Hall",
			Description:        "Ballroom with stage and in-house catering.",
			Address:            "Durbar Marg",
			City:               "Kathmandu",
			MinCapacity:        50,
			MaxCapacity:        500,
			PricePerHour:       5000,
			OpeningTime:        "08:00",
			ClosingTime:        "23:00",
			CancellationPolicy: cancellation.DefaultPolicy(),
			IsActive:           true,
		},
		{
			OwnerID:      owner.ID,
			Name:         "Phewa Lakeside Garden",
			Description:  "Open-air lawn facing the lake.",
			Address:      "Lakeside Road 6",
			City:         "Pokhara",
			MinCapacity:  20,
			MaxCapacity:  200,
			PricePerHour: 3000,
			OpeningTime:  "07:00",
			ClosingTime:  "21:00",
			CancellationPolicy: cancellation.Policy{
				FullRefundHours:         96,
				PartialRefundHours:      48,
				PartialRefundPercentage: 50,
			},
			IsActive: true,
		},
	}
	for _, v := range list {
		if err := repo.Create(ctx, v); err != nil {
			return fmt.Errorf("failed to seed venue %s: %w", v.Name, err)
		}
		fmt.Printf("  🏛  %s (%s)\n", v.Name, v.ID)
	}

	if s.db.Redis != nil {
		if err := s.db.Redis.FlushDB(ctx).Err(); err != nil {
			log.Printf("Warning: Failed to clear Redis cache: %v", err)
		}
	}
	return nil
}
