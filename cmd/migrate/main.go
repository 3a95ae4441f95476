package main

import (
	"flag"
	"log"
	"time"

	"github.com/damoang/angple-messenger/internal/config"
	"github.com/damoang/angple-messenger/internal/migration"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "config file path (default: configs/config.<APP_ENV>.yaml)")
	seed := flag.Bool("seed", false, "insert demo profiles and connections into an empty database")
	dryRun := flag.Bool("dry-run", false, "show which tables would be created without executing")
	verify := flag.Bool("verify", false, "print row counts for every messaging table")
	verbose := flag.Bool("verbose", false, "verbose SQL logging")
	flag.Parse()

	if loaded := config.LoadDotEnv(); len(loaded) == 0 {
		log.Println("No .env file found, using environment variables")
	}

	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logLevel := gormlogger.Warn
	if *verbose {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get underlying DB: %v", err)
	}
	defer sqlDB.Close()

	if *dryRun {
		runDryRun(db)
		return
	}

	if *verify {
		runVerify(db)
		return
	}

	start := time.Now()
	if err := migration.Run(db); err != nil {
		log.Fatalf("[migrate] FAILED: %v", err)
	}
	log.Printf("[migrate] Schema up to date in %v", time.Since(start))

	if *seed {
		if err := migration.SeedDemo(db); err != nil {
			log.Fatalf("[seed] FAILED: %v", err)
		}
		log.Println("[seed] Demo data ready")
	}
}

func runDryRun(db *gorm.DB) {
	migrator := db.Migrator()
	for _, model := range migration.Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			log.Fatalf("[dry-run] parse model: %v", err)
		}
		state := "create"
		if migrator.HasTable(model) {
			state = "alter (if needed)"
		}
		log.Printf("[dry-run] %-22s %s", stmt.Schema.Table, state)
	}
}

func runVerify(db *gorm.DB) {
	for _, model := range migration.Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			log.Fatalf("[verify] parse model: %v", err)
		}
		if !db.Migrator().HasTable(model) {
			log.Printf("[verify] %-22s MISSING", stmt.Schema.Table)
			continue
		}
		var count int64
		if err := db.Model(model).Count(&count).Error; err != nil {
			log.Printf("[verify] %-22s error: %v", stmt.Schema.Table, err)
			continue
		}
		log.Printf("[verify] %-22s %d rows", stmt.Schema.Table, count)
	}
}
