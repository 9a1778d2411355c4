package db

import "fmt"

// Common errors
var (
	ErrNoRepositories     = fmt.Errorf("no repositories stored")
	ErrRepositoryNotFound = fmt.Errorf("repository not found")
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrDatabaseConnection = fmt.Errorf("database connection error")
	ErrTransactionFailed  = fmt.Errorf("transaction failed")
	ErrMigration          = fmt.Errorf("migration failed")
)
