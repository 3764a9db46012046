package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/config"
	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/handlers"
	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/models"
	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/notify"
	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/repositories"
	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/services"
)

func main() {
	root := &cobra.Command{
		Use:   "bibliotheque",
		Short: "School library circulation service",
	}
	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}

			router := gin.Default()
			registerServices(db, cfg, router)

			srv := &http.Server{
				Addr:         cfg.ServerAddr,
				Handler:      router,
				ReadTimeout:  cfg.ReadTimeout,
				WriteTimeout: cfg.WriteTimeout,
			}

			log.Printf("Starting server on %s", cfg.ServerAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(
				&models.Member{},
				&models.Book{},
				&models.Copy{},
				&models.Loan{},
				&models.Reservation{},
				&models.Penalty{},
			); err != nil {
				return err
			}
			// Partial unique indexes backing the circulation invariants;
			// AutoMigrate cannot express these.
			stmts := []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS uniq_active_loan
				   ON loans (copy_id) WHERE status <> 'CLOSED'`,
				`CREATE UNIQUE INDEX IF NOT EXISTS uniq_queued_rank
				   ON reservations (book_id, rank) WHERE status = 'QUEUED'`,
			}
			for _, stmt := range stmts {
				if err := db.Exec(stmt).Error; err != nil {
					return err
				}
			}
			log.Println("migration complete")
			return nil
		},
	}
}

func openDB(cfg config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	return db, nil
}

func registerServices(db *gorm.DB, cfg config.Config, router *gin.Engine) {
	memberRepo := repositories.NewMemberRepository(db)
	bookRepo := repositories.NewBookRepository(db)
	copyRepo := repositories.NewCopyRepository(db)
	loanRepo := repositories.NewLoanRepository(db)
	reservationRepo := repositories.NewReservationRepository(db)
	penaltyRepo := repositories.NewPenaltyRepository(db)

	policies := services.DefaultPolicies()
	policies.DailyFineCents = cfg.DailyFineCents
	policies.NotifyWindow = cfg.NotifyWindow

	catalog := services.NewCatalogService(db, bookRepo, copyRepo, memberRepo)
	loans := services.NewLoanService(db, policies, memberRepo, copyRepo, loanRepo, reservationRepo, penaltyRepo)
	reservations := services.NewReservationService(db, policies, memberRepo, bookRepo, reservationRepo, notify.LogNotifier{})
	penalties := services.NewPenaltyService(db, memberRepo, loanRepo, penaltyRepo)

	handlers.RegisterRoutes(router, catalog, loans, reservations, penalties)
}
