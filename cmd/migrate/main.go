package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kataoka/daicho/internal/infrastructure/config"
	"github.com/kataoka/daicho/internal/infrastructure/database"
	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
)

const migrationsPathSuffix = "internal/infrastructure/database/migrations/postgres"

var (
	envFlag string
	pg      *database.Postgres
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Schema migration tool for the daicho infrastructure tables",
	Long: `Schema migration tool for the daicho infrastructure tables
(entity_types, entity_registry, entity_links, permission_grants).
Runs PostgreSQL migrations via golang-migrate.`,
	PersistentPreRun: setupDatabase,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Run: func(cmd *cobra.Command, args []string) {
		withMigrate(func(m *migrate.Migrate) {
			if err := m.Up(); err != nil {
				if err == migrate.ErrNoChange {
					log.Println("No migrations to apply")
					return
				}
				log.Fatalf("Migration up failed: %v", err)
			}
			log.Println("Migration up completed")
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Rollback migrations (default: 1)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		steps := 1
		if len(args) > 0 {
			steps = parseIntArg(args[0])
		}
		withMigrate(func(m *migrate.Migrate) {
			if err := m.Steps(-steps); err != nil {
				if err == migrate.ErrNoChange {
					log.Println("No migrations to rollback")
					return
				}
				log.Fatalf("Migration down failed: %v", err)
			}
			log.Printf("Rolled back %d migration(s)", steps)
		})
	},
}

var gotoCmd = &cobra.Command{
	Use:   "goto <version>",
	Short: "Migrate up or down to a specific version",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		version := uint(parseIntArg(args[0]))
		withMigrate(func(m *migrate.Migrate) {
			if err := m.Migrate(version); err != nil {
				if err == migrate.ErrNoChange {
					log.Printf("Already at version %d", version)
					return
				}
				log.Fatalf("Migration goto failed: %v", err)
			}
			log.Printf("Migrated to version %d", version)
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show current migration version",
	Run: func(cmd *cobra.Command, args []string) {
		withMigrate(func(m *migrate.Migrate) {
			version, dirty, err := m.Version()
			if err == migrate.ErrNilVersion {
				log.Println("No migrations applied yet")
				return
			}
			if err != nil {
				log.Fatalf("Failed to get version: %v", err)
			}
			if dirty {
				log.Printf("Current version: %d (dirty, a migration may have failed)", version)
				return
			}
			log.Printf("Current version: %d", version)
		})
	},
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Force set migration version without running migrations",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		version := parseIntArg(args[0])
		withMigrate(func(m *migrate.Migrate) {
			if err := m.Force(version); err != nil {
				log.Fatalf("Migration force failed: %v", err)
			}
			log.Printf("Forced version to %d", version)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(gotoCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(forceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute command: %v", err)
	}
}

func setupDatabase(cmd *cobra.Command, args []string) {
	log.Printf("Using environment: %s", envFlag)

	if err := config.InitConfig(envFlag); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pg, err = database.NewPostgres(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Printf("Connected to database: %s@%s:%d/%s",
		cfg.Database.User,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database)
}

// withMigrate builds a migrate instance over the migration files at the
// project root and hands it to fn, closing it afterwards.
func withMigrate(fn func(m *migrate.Migrate)) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		log.Fatalf("Failed to find project root: %v", err)
	}
	migrationsPath := filepath.Join(projectRoot, migrationsPathSuffix)

	driver, err := database.NewMigrateDriver(pg.DB)
	if err != nil {
		log.Fatalf("Failed to create migration driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres",
		driver,
	)
	if err != nil {
		log.Fatalf("Failed to create migrate instance: %v", err)
	}
	defer m.Close()

	fn(m)
}

func parseIntArg(arg string) int {
	value, err := strconv.Atoi(arg)
	if err != nil {
		log.Fatalf("Invalid numeric argument %q: %v", arg, err)
	}
	return value
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Walk up until a go.mod marks the project root.
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}
