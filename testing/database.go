// Package testing provides test utilities and database setup for testing the plan store
package testing

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"os"
	gotesting "testing"
	"time"

	"github.com/amirphl/term-insurance-analyzer/repository"
	_ "github.com/lib/pq" // PostgreSQL driver for database/sql
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresDSNEnv names the variable that switches tests from SQLite to a real Postgres server.
// The DSN must not carry a dbname; a throwaway database is created per test DB.
const PostgresDSNEnv = "TEST_POSTGRES_DSN"

// TestDB represents a test database instance
type TestDB struct {
	DB       *gorm.DB
	Name     string
	Driver   string
	adminDSN string
}

// SetupTestDB creates a new test database with a unique name and runs migrations.
// Without TEST_POSTGRES_DSN it uses a private in-memory SQLite database.
func SetupTestDB() (*TestDB, error) {
	dbName := fmt.Sprintf("term_insurance_test_%d_%d", time.Now().UnixNano(), rand.Intn(10000))

	var (
		tdb *TestDB
		err error
	)
	if adminDSN := os.Getenv(PostgresDSNEnv); adminDSN != "" {
		tdb, err = setupPostgres(adminDSN, dbName)
	} else {
		tdb, err = setupSQLite(dbName)
	}
	if err != nil {
		return nil, err
	}

	if err := repository.AutoMigrate(tdb.DB); err != nil {
		_ = tdb.TeardownTestDB()
		return nil, fmt.Errorf("failed to run migrations on test database %s: %w", dbName, err)
	}

	return tdb, nil
}

func setupSQLite(dbName string) (*TestDB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", dbName)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite test database: %w", err)
	}

	// One connection keeps the in-memory database alive and serializes writers
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return &TestDB{DB: db, Name: dbName, Driver: "sqlite"}, nil
}

func setupPostgres(adminDSN, dbName string) (*TestDB, error) {
	adminDB, err := sql.Open("postgres", adminDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer adminDB.Close()

	if _, err := adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		return nil, fmt.Errorf("failed to create test database %s: %w", dbName, err)
	}

	testDSN := fmt.Sprintf("%s dbname=%s", adminDSN, dbName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database %s: %w", dbName, err)
	}

	return &TestDB{DB: db, Name: dbName, Driver: "postgres", adminDSN: adminDSN}, nil
}

// TeardownTestDB drops the test database and closes connections
func (tdb *TestDB) TeardownTestDB() error {
	if tdb.DB == nil {
		return nil
	}

	sqlDB, err := tdb.DB.DB()
	if err == nil {
		sqlDB.Close()
	}

	if tdb.Driver != "postgres" {
		return nil
	}

	adminDB, err := sql.Open("postgres", tdb.adminDSN)
	if err != nil {
		log.Printf("Warning: failed to connect to PostgreSQL for cleanup: %v", err)
		return err
	}
	defer adminDB.Close()

	// Force disconnect all connections to the test database
	if _, err := adminDB.Exec(
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()",
		tdb.Name,
	); err != nil {
		log.Printf("Warning: failed to terminate connections to test database %s: %v", tdb.Name, err)
	}

	if _, err := adminDB.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s", tdb.Name)); err != nil {
		log.Printf("Warning: failed to drop test database %s: %v", tdb.Name, err)
		return err
	}

	return nil
}

// ClearAllTables removes all data from tables while preserving structure
func (tdb *TestDB) ClearAllTables() error {
	tables := []string{"scrape_runs", "insurance_plans"}

	for _, table := range tables {
		stmt := fmt.Sprintf("DELETE FROM %s", table)
		if tdb.Driver == "postgres" {
			stmt = fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)
		}
		if err := tdb.DB.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}

	return nil
}

// TestWithDB is a helper function that sets up a test database, runs the test function, and cleans up
func TestWithDB(testFunc func(*TestDB) error) error {
	testDB, err := SetupTestDB()
	if err != nil {
		return fmt.Errorf("failed to setup test database: %w", err)
	}
	defer func() {
		if cleanupErr := testDB.TeardownTestDB(); cleanupErr != nil {
			log.Printf("Warning: failed to cleanup test database: %v", cleanupErr)
		}
	}()

	return testFunc(testDB)
}

// NewTestDB sets up a test database that is torn down when the test ends
func NewTestDB(tb gotesting.TB) *TestDB {
	tb.Helper()
	testDB, err := SetupTestDB()
	if err != nil {
		tb.Fatalf("failed to setup test database: %v", err)
	}
	tb.Cleanup(func() {
		if err := testDB.TeardownTestDB(); err != nil {
			tb.Logf("failed to cleanup test database: %v", err)
		}
	})
	return testDB
}

// CreateTestContext creates a context for testing
func CreateTestContext() context.Context {
	return context.Background()
}
