package domain

// DatabaseDriver represents the type of database engine.
type DatabaseDriver string

const (
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
	DatabaseDriverMongoDB  DatabaseDriver = "mongodb"
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
)

// Valid reports whether d is a supported driver.
func (d DatabaseDriver) Valid() bool {
	switch d {
	case DatabaseDriverMySQL, DatabaseDriverPostgres, DatabaseDriverMongoDB, DatabaseDriverSQLite:
		return true
	}
	return false
}

// DatabaseConnection holds what is needed to reach an external database,
// either as a source of records or as a load target.
type DatabaseConnection struct {
	Driver   DatabaseDriver    `json:"driver" yaml:"driver"`
	Host     string            `json:"host" yaml:"host"` // hostname, full URI (mongodb) or file path (sqlite)
	Port     int               `json:"port,omitempty" yaml:"port"`
	Database string            `json:"database,omitempty" yaml:"database"`
	Username string            `json:"username,omitempty" yaml:"username"`
	Password string            `json:"-" yaml:"password"`
	SSLMode  string            `json:"sslMode,omitempty" yaml:"sslMode"`
	Options  map[string]string `json:"options,omitempty" yaml:"options"` // driver-specific URI parameters
}
