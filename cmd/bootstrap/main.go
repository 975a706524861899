// Package main 初始化数据库结构并创建演示用户
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"scriptgen-api/internal/application/quota"
	"scriptgen-api/internal/config"
	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/infrastructure/persistence/postgres"
	"scriptgen-api/internal/wire"
	"scriptgen-api/pkg/utils"
)

// seedFile 演示数据：用户与初始购买额度
type seedFile struct {
	Users []seedUser `yaml:"users"`
}

type seedUser struct {
	Email   string `yaml:"email"`
	Name    string `yaml:"name"`
	Credits int64  `yaml:"credits"`
}

func main() {
	seedPath := flag.String("seed", "", "path to a yaml fixture with users and purchased credits")
	flag.Parse()

	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. 初始化数据层（仅 PostgreSQL）
	dataLayer, cleanup, err := wire.InitializePostgresOnly(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize data layer: %v", err)
	}
	defer cleanup()

	// 3. 迁移表结构
	if err := dataLayer.PgClient.AutoMigrate(ctx); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}
	fmt.Println("Schema migrated.")

	// 4. 演示用户与开发令牌
	demoEmail := os.Getenv("BOOTSTRAP_DEMO_EMAIL")
	if demoEmail == "" {
		demoEmail = "demo@scriptgen.local"
	}
	demo, err := ensureUser(ctx, dataLayer.UserRepo, demoEmail, "Demo Creator")
	if err != nil {
		log.Fatalf("failed to create demo user: %v", err)
	}

	jwtManager := utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer)
	token, err := jwtManager.GenerateToken(demo.ID, demo.Email, cfg.Security.JWT.Expiration)
	if err != nil {
		log.Fatalf("failed to issue dev token: %v", err)
	}
	fmt.Printf("Demo user %s (referral code %s)\n", demo.Email, demo.ReferralCode)
	fmt.Printf("Dev token: %s\n", token)

	// 5. 可选的演示数据
	if *seedPath != "" {
		if err := seed(ctx, dataLayer, *seedPath); err != nil {
			log.Fatalf("failed to seed fixtures: %v", err)
		}
	}

	fmt.Println("Bootstrap completed successfully.")
}

func ensureUser(ctx context.Context, users *postgres.UserRepository, email, name string) (*entity.User, error) {
	existing, err := users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		fmt.Printf("User %s already exists.\n", existing.Email)
		return existing, nil
	}
	user := entity.NewUser(email, name)
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	fmt.Printf("User %s created with ID %s.\n", user.Email, user.ID)
	return user, nil
}

// seed 以 seed:<email> 作为事件 ID 入账，重复执行不会重复加额度
func seed(ctx context.Context, dataLayer *wire.PostgresOnlyDataLayer, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fixture seedFile
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for _, u := range fixture.Users {
		if strings.TrimSpace(u.Email) == "" {
			continue
		}
		user, err := ensureUser(ctx, dataLayer.UserRepo, u.Email, u.Name)
		if err != nil {
			return err
		}
		if u.Credits <= 0 {
			continue
		}
		res, err := dataLayer.Payments.Apply(ctx, quota.PaymentEvent{
			EventID:  "seed:" + user.Email,
			UserID:   user.ID,
			Credits:  u.Credits,
			Provider: "seed",
		})
		if err != nil {
			return fmt.Errorf("credit %s: %w", user.Email, err)
		}
		fmt.Printf("Seeded %d credits for %s (applied=%t).\n", u.Credits, user.Email, res.Applied)
	}
	return nil
}
