package main

import (
	"flag"
	"log"

	"reservation-system/pkg/config"
	"reservation-system/pkg/database/postgresql"
	"reservation-system/seeders"
)

func main() {
	log.Println("======================================================")
	log.Println("       🌱 СИСТЕМА СИДЕРОВ (Наполнение БД)           ")
	log.Println("======================================================")

	runUsers := flag.Bool("users", false, "Создать пользователей (менеджеры, супервайзер, админ)")
	runEquipment := flag.Bool("equipment", false, "Наполнить каталог свободным оборудованием")
	printTokens := flag.Bool("tokens", false, "Напечатать access-токены созданных пользователей")
	runAll := flag.Bool("all", false, "Запустить все сидеры (эквивалентно -users -equipment)")

	flag.Parse()

	if !*runUsers && !*runEquipment && !*runAll {
		log.Println("❌ Не выбран ни один сидер для запуска.")
		log.Println("")
		log.Println("Доступные флаги:")
		flag.PrintDefaults()
		log.Println("")
		log.Println("Примеры использования:")
		log.Println("  go run ./seeders/cmd/seed -users -tokens")
		log.Println("  go run ./seeders/cmd/seed -all")
		log.Println("======================================================")
		return
	}

	cfg := config.New()
	dbPool := postgresql.ConnectDB(cfg.Postgres.DSN)
	defer dbPool.Close()

	if cfg.Postgres.MigrateOnStart {
		if err := postgresql.Migrate(dbPool); err != nil {
			log.Fatalf("❌ Ошибка применения миграций: %v", err)
		}
	}

	log.Println("======================================================")

	if *runAll || *runUsers {
		seeders.SeedUsers(dbPool, cfg, *printTokens)
		log.Println("======================================================")
	}

	if *runAll || *runEquipment {
		seeders.SeedEquipments(dbPool)
		log.Println("======================================================")
	}

	log.Println("✅ Все указанные операции сидирования успешно завершены.")
	log.Println("======================================================")
}
