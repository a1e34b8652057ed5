package history

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"jewelfinder-go/internal/domain/dispatch"
	"jewelfinder-go/internal/platform/errors"
	"jewelfinder-go/internal/platform/logging"
)

// Record is one completed search stored for recall.
type Record struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	SessionID   string         `gorm:"index;size:64" json:"session_id"`
	Endpoint    string         `gorm:"size:16" json:"endpoint"`
	Query       string         `json:"query"`
	Outcome     string         `gorm:"size:16" json:"outcome"`
	Message     string         `json:"message,omitempty"`
	ResultCount int            `json:"result_count"`
	Results     datatypes.JSON `json:"results,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (Record) TableName() string {
	return "search_history"
}

// Repository persists search history in a local sqlite database.
type Repository struct {
	db     *gorm.DB
	logger *logging.Logger
}

// Open creates the database file (and its directory) if needed and migrates
// the schema.
func Open(path string, logger *logging.Logger) (*Repository, error) {
	const op = "history:open"

	if logger == nil {
		logger = logging.DefaultLogger
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(errors.KindStorage, op, "create data dir", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, op, "open sqlite", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, errors.Wrap(errors.KindStorage, op, "migrate schema", err)
	}

	logger.InfoTag("HISTORY", "history database ready at %s", path)
	return &Repository{db: db, logger: logger}, nil
}

// Append stores one finished search. Result payloads above a handful are
// truncated; history recall only ever shows the leading matches.
func (r *Repository) Append(ctx context.Context, sessionID string, endpoint dispatch.Endpoint,
	query string, outcome dispatch.Outcome) error {
	const op = "history:append"

	record := Record{
		SessionID: sessionID,
		Endpoint:  string(endpoint),
		Query:     query,
		Outcome:   string(outcome.Kind),
	}

	switch outcome.Kind {
	case dispatch.OutcomeSuccess:
		record.ResultCount = len(outcome.Items)
		head := outcome.Items
		if len(head) > 10 {
			head = head[:10]
		}
		payload, err := sonic.Marshal(head)
		if err != nil {
			return errors.Wrap(errors.KindStorage, op, "encode results", err)
		}
		record.Results = datatypes.JSON(payload)
	case dispatch.OutcomeFailure:
		if outcome.Failure != nil {
			record.Message = outcome.Failure.Message
		}
	}

	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return errors.Wrap(errors.KindStorage, op, "insert record", err)
	}
	return nil
}

// Recent returns the newest records, most recent first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Record, error) {
	const op = "history:recent"

	if limit <= 0 {
		limit = 20
	}
	var records []Record
	err := r.db.WithContext(ctx).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, op, "query records", err)
	}
	return records, nil
}

// Close releases the underlying connection.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
