// internal/uploader/mysql.go
package uploader

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// insertChunkRows bounds one INSERT statement so a large flush cannot
// exceed the server's packet limit.
const insertChunkRows = 1000

// MySQLConfig is the remote connection config.
type MySQLConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// mysqlStore implements Store over database/sql with the mysql driver.
type mysqlStore struct {
	db *sql.DB
}

// NewMySQLStore opens the connection pool. The server is not contacted
// until EnsureConnected or the first statement.
func NewMySQLStore(cfg MySQLConfig) (Store, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("uploader: open mysql: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxIdleTime(time.Minute)

	return &mysqlStore{db: db}, nil
}

func (s *mysqlStore) EnsureTable(name string) (string, error) {
	table := sanitizeTableName(name)

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS `+"`%s`"+` (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		timestamp DATETIME(6) NOT NULL,
		label VARCHAR(255) NOT NULL,
		channel_1 DOUBLE NOT NULL,
		channel_2 DOUBLE NOT NULL,
		channel_3 DOUBLE NOT NULL,
		INDEX idx_timestamp (timestamp),
		INDEX idx_label (label)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, table)

	if _, err := s.db.Exec(stmt); err != nil {
		return "", fmt.Errorf("uploader: create table %s: %w", table, err)
	}
	return table, nil
}

func (s *mysqlStore) Insert(table string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("uploader: begin: %w", err)
	}

	for start := 0; start < len(rows); start += insertChunkRows {
		end := start + insertChunkRows
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		var b strings.Builder
		fmt.Fprintf(&b, "INSERT INTO `%s` (timestamp, label, channel_1, channel_2, channel_3) VALUES ", table)
		args := make([]any, 0, len(chunk)*5)
		for i, r := range chunk {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString("(?, ?, ?, ?, ?)")
			args = append(args, r.Timestamp, r.Label, r.X, r.Y, r.Z)
		}

		if _, err := tx.Exec(b.String(), args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("uploader: insert into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("uploader: commit %s: %w", table, err)
	}
	return nil
}

func (s *mysqlStore) Ping() error  { return s.db.Ping() }
func (s *mysqlStore) Close() error { return s.db.Close() }
