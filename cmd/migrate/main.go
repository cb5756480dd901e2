package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"custody-core/pkg/config"
)

func main() {
	var (
		command string
		version int
		steps   int
		dir     string
	)
	flag.StringVar(&command, "cmd", "up", "Command to run: up, down, steps, force, version")
	flag.IntVar(&version, "v", -1, "Version for force command")
	flag.IntVar(&steps, "n", 1, "Number of steps for steps command")
	flag.StringVar(&dir, "path", "migrations", "Directory of migration files")
	flag.Parse()

	config.Init()

	db := config.Global.DB
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		db.User, db.Password, db.Host, db.Port, db.Name)

	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		log.Fatalf("[Migrate] 初始化失败: %v", err)
	}
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("[Migrate] up 失败: %v", err)
		}
		log.Println("[Migrate] up done")
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("[Migrate] down 失败: %v", err)
		}
		log.Println("[Migrate] down done")
	case "steps":
		if err := m.Steps(steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("[Migrate] steps %d 失败: %v", steps, err)
		}
		log.Printf("[Migrate] moved %d steps", steps)
	case "force":
		if version == -1 {
			log.Fatal("[Migrate] force 需要 -v 指定版本")
		}
		if err := m.Force(version); err != nil {
			log.Fatalf("[Migrate] force 失败: %v", err)
		}
		log.Printf("[Migrate] forced to version %d", version)
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("[Migrate] 读取版本失败: %v", err)
		}
		log.Printf("[Migrate] version=%d dirty=%v", v, dirty)
	default:
		log.Fatalf("[Migrate] unknown command: %s", command)
	}
}
