package services

import (
	"fmt"

	"github.com/SecurePass-Share/Transfer-Service/internal/storage"
)

var postgresInstance *storage.PostgresStore

// InitializePostgres sets up PostgreSQL storage
func InitializePostgres(connectionString string) error {
	store := &storage.PostgresStore{}
	if err := store.Connect(connectionString); err != nil {
		return err
	}
	postgresInstance = store
	return nil
}

func GetStore() *storage.PostgresStore {
	return postgresInstance
}

// CheckDatabase Add this method for health checks
func CheckDatabase() error {
	if postgresInstance == nil {
		return fmt.Errorf("postgres storage not initialized")
	}
	return postgresInstance.Ping()
}
