package seeders

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"reservation-system/pkg/config"
	"reservation-system/pkg/service"
)

// SeedUsers создает пользователей для разработки. С printTokens печатает для каждого
// access-токен, подписанный JWT_SECRET_KEY.
func SeedUsers(db *pgxpool.Pool, cfg *config.Config, printTokens bool) {
	ctx := context.Background()
	log.Println("▶️  Запуск создания пользователей...")

	users, err := seedUsers(ctx, db)
	if err != nil {
		log.Fatalf("❌ Ошибка наполнения Пользователей (Users): %v", err)
	}

	if printTokens {
		if cfg.JWT.SecretKey == "" {
			log.Fatalf("❌ JWT_SECRET_KEY не задан, токены не выпустить")
		}
		jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, 30*24*time.Hour, zap.NewNop())
		for _, u := range users {
			token, err := jwtSvc.GenerateAccessToken(u.ID, u.Role)
			if err != nil {
				log.Fatalf("❌ Ошибка выпуска токена для '%s': %v", u.FIO, err)
			}
			log.Printf("    %-25s %-10s id=%d\n      %s", u.FIO, u.Role, u.ID, token)
		}
	}
	log.Println("✅ Создание пользователей завершено!")
}

// SeedEquipments наполняет каталог свободными единицами.
func SeedEquipments(db *pgxpool.Pool) {
	log.Println("▶️  Запуск наполнения оборудования...")
	if err := seedEquipments(context.Background(), db); err != nil {
		log.Fatalf("❌ Ошибка наполнения Оборудования (Equipments): %v", err)
	}
	log.Println("✅ Наполнение оборудования завершено!")
}
