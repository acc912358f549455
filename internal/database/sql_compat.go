package database

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
)

// DefaultDriver is used when no driver is configured.
const DefaultDriver = "sqlite3"

var (
	driverMu     sync.RWMutex
	activeDriver = DefaultDriver
)

// SetDriver records the active database driver. Open calls this automatically;
// tests may call it directly.
func SetDriver(driver string) {
	driverMu.Lock()
	defer driverMu.Unlock()
	activeDriver = strings.ToLower(driver)
}

// GetDBDriver returns the current database driver.
func GetDBDriver() string {
	// In test mode, prefer TEST_ prefixed environment variables
	if driver := os.Getenv("TEST_DB_DRIVER"); driver != "" {
		return strings.ToLower(driver)
	}
	driverMu.RLock()
	defer driverMu.RUnlock()
	return activeDriver
}

// IsPostgreSQL returns true if using PostgreSQL.
func IsPostgreSQL() bool {
	return GetDBDriver() == "postgres"
}

// IsSQLite returns true if using SQLite.
func IsSQLite() bool {
	return GetDBDriver() == "sqlite3"
}

var dollarPlaceholder = regexp.MustCompile(`\$\d+`)

// ConvertPlaceholders converts SQL placeholders to the format required by the
// current database. This is the ONLY function that should be used for
// placeholder conversion in the codebase.
//
// IMPORTANT: Only ? placeholders are allowed. Using $N placeholders will panic.
// - For PostgreSQL: ? → $1, $2, ...
// - For SQLite/MySQL: ? passed through as-is
//
// Example:
//
//	query := database.ConvertPlaceholders("SELECT * FROM plugin WHERE name = ? AND version = ?")
//	rows, err := db.Query(query, name, version)
func ConvertPlaceholders(query string) string {
	// Reject $N placeholders - all queries must use ? for portability
	if dollarPlaceholder.MatchString(query) {
		panic(fmt.Sprintf("ConvertPlaceholders: $N placeholders are not allowed. Use ? placeholders instead.\nQuery: %s", query))
	}

	if !IsPostgreSQL() {
		return query
	}

	result := strings.Builder{}
	paramNum := 1
	for _, c := range query {
		if c == '?' {
			result.WriteString(fmt.Sprintf("$%d", paramNum))
			paramNum++
		} else {
			result.WriteRune(c)
		}
	}
	return result.String()
}
