package dbconnect

import "database/sql"

// Database opens the shared pool once; Ping backs the health endpoint.
type Database interface {
	Connect() (*sql.DB, error)
	Ping() error
}
