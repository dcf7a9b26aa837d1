package ciutil

import "log/slog"

// GetTestDatabaseURL returns the database URL for integration tests, checking
// UPLOADQ_TEST_DB_URL, DATABASE_URL and UPLOADQ_DATABASE_URL in that order.
// It returns an empty string when none is set.
func GetTestDatabaseURL(logger *slog.Logger) string {
	url := GetEnvWithFallbacks(
		[]string{EnvTestDatabaseURL, EnvDatabaseURL, EnvAppDatabaseURL},
		"",
		logger,
	)
	if url == "" && logger != nil {
		logger.Info("No database URL environment variables found")
	}
	return url
}

// RequireDatabase reports whether integration tests must fail, rather than
// skip, when no database is configured. CI always provides one.
func RequireDatabase() bool {
	return IsCI()
}
