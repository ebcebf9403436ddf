package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/AccessRelay/app/models"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// defaultIOTimeout bounds dialing and each read or write on the audit connection.
const defaultIOTimeout = 5 * time.Second

var DB *gorm.DB

// SetupDatabase opens the MySQL audit database when DB_HOST is configured.
// It returns nil without DB_HOST; the relay then keeps no audit trail.
func SetupDatabase() (*gorm.DB, error) {
	host := strings.TrimSpace(env.GetEnv("DB_HOST", ""))
	if host == "" {
		log.Info("[Database] DB_HOST not set, webhook audit log disabled")
		return nil, nil
	}

	dsn := buildDSN(host)

	gormLogLevel := logger.Warn
	if env.IsDev() {
		gormLogLevel = logger.Info
	}

	var err error
	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       dsn,
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), &gorm.Config{Logger: logger.Default.LogMode(gormLogLevel)})
		if err == nil {
			if err = DB.AutoMigrate(&models.PaymentWebhookEvent{}); err != nil {
				return nil, fmt.Errorf("auto-migrate audit tables: %w", err)
			}
			log.Info("[Database] Connected, webhook audit log enabled")
			return DB, nil
		}

		log.Warnf("[Database] Failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, err
}

// buildDSN renders the MySQL DSN. The I/O timeouts make a stalled server
// fail the audit call instead of holding a webhook.
// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=Local&timeout=5s&readTimeout=5s&writeTimeout=5s"
func buildDSN(host string) string {
	ioTimeout := env.GetDuration("DB_TIMEOUT", defaultIOTimeout)
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%s&readTimeout=%s&writeTimeout=%s",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		host,
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
		ioTimeout, ioTimeout, ioTimeout,
	)
}

// GetDB returns the audit database handle, or nil when disabled.
func GetDB() *gorm.DB {
	return DB
}
