// Package storage persists subscribers, activation codes and promo codes in
// a SQL database via GORM.
package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/raykavin/pricepulse/core"
	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// SQLStorage implements core.SubscriberStore plus the write operations used
// by the bot interface and the code-generation CLI.
type SQLStorage struct {
	db *gorm.DB
}

// Config holds the connection pool settings for SQL databases.
type Config struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns the default connection pool configuration.
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:    5,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}

// NewFromSQLite opens a SQLite database at dbPath and runs migrations.
func NewFromSQLite(dbPath string, config Config, opts ...gorm.Option) (*SQLStorage, error) {
	return newFromSQL(sqlite.Open(dbPath), config, opts...)
}

// NewInMemory opens a throwaway in-memory SQLite database, used in tests.
// Each call gets its own namespace so parallel tests stay isolated.
func NewInMemory() (*SQLStorage, error) {
	dsn := fmt.Sprintf("file:mem%d?mode=memory&cache=shared", memorySeq.Add(1))
	return newFromSQL(sqlite.Open(dsn), DefaultConfig(),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
}

var memorySeq atomic.Int64

func newFromSQL(dialect gorm.Dialector, config Config, opts ...gorm.Option) (*SQLStorage, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err = db.AutoMigrate(&User{}, &ActivationCode{}, &PromoCode{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStorage{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// SubscribedUsers lists the alert settings of every user whose subscription
// has not yet expired.
func (s *SQLStorage) SubscribedUsers(ctx context.Context) ([]core.UserConfig, error) {
	var users []User
	result := s.db.WithContext(ctx).
		Where("subscribe_until IS NOT NULL AND subscribe_until > ?", time.Now().UTC()).
		Find(&users)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to fetch subscribed users: %w", result.Error)
	}

	return lo.Map(users, func(u User, _ int) core.UserConfig {
		return core.UserConfig{
			UserID:   u.UserID,
			Period:   time.Duration(u.PeriodMinutes) * time.Minute,
			Percent:  u.Percent,
			Language: u.Language,
			Exchange: u.Exchange,
		}
	}), nil
}

// CleanupExpired clears lapsed subscriptions and reports how many rows were
// affected.
func (s *SQLStorage) CleanupExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&User{}).
		Where("subscribe_until IS NOT NULL AND subscribe_until <= ?", time.Now().UTC()).
		Update("subscribe_until", nil)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean up expired subscriptions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Preferences returns the delivery language and preferred exchange of a user.
func (s *SQLStorage) Preferences(ctx context.Context, userID int64) (language, exchange string, err error) {
	var user User
	result := s.db.WithContext(ctx).Select("language", "exchange").First(&user, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", "", fmt.Errorf("%w: %d", core.ErrUserNotFound, userID)
		}
		return "", "", fmt.Errorf("failed to fetch preferences: %w", result.Error)
	}
	return user.Language, user.Exchange, nil
}

// UpsertUser creates the user row if missing, leaving defaults in place for
// an existing row.
func (s *SQLStorage) UpsertUser(ctx context.Context, userID int64) error {
	result := s.db.WithContext(ctx).
		Where(User{UserID: userID}).
		FirstOrCreate(&User{UserID: userID})
	if result.Error != nil {
		return fmt.Errorf("failed to upsert user: %w", result.Error)
	}
	return nil
}

// UpdateSettings changes the alert period and percent threshold of a user.
func (s *SQLStorage) UpdateSettings(ctx context.Context, userID int64, period time.Duration, percent float64) error {
	if percent <= 0 {
		return core.ErrInvalidPercent
	}
	minutes := int(period / time.Minute)
	if minutes <= 0 {
		return core.ErrInvalidPeriod
	}

	return s.updateUser(ctx, userID, map[string]any{"period": minutes, "percent": percent})
}

// SetLanguage records the user's interface language choice.
func (s *SQLStorage) SetLanguage(ctx context.Context, userID int64, language string) error {
	return s.updateUser(ctx, userID, map[string]any{"language": language, "language_selected": true})
}

// SetExchange records the user's preferred exchange for alert links.
func (s *SQLStorage) SetExchange(ctx context.Context, userID int64, exchange string) error {
	return s.updateUser(ctx, userID, map[string]any{"exchange": exchange})
}

func (s *SQLStorage) updateUser(ctx context.Context, userID int64, values map[string]any) error {
	result := s.db.WithContext(ctx).Model(&User{}).Where("user_id = ?", userID).Updates(values)
	if result.Error != nil {
		return fmt.Errorf("failed to update user %d: %w", userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", core.ErrUserNotFound, userID)
	}
	return nil
}

// ActivateSubscription grants the user a subscription for the given number
// of days, counted from now.
func (s *SQLStorage) ActivateSubscription(ctx context.Context, userID int64, days int) error {
	until := time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour)
	return s.updateUser(ctx, userID, map[string]any{"subscribe_until": until})
}

// RedeemActivationCode verifies an access code and records it on the user.
// Codes stay valid for other users until deactivated.
func (s *SQLStorage) RedeemActivationCode(ctx context.Context, userID int64, code string) error {
	var count int64
	result := s.db.WithContext(ctx).
		Model(&ActivationCode{}).
		Where("code = ? AND is_active = ?", code, true).
		Count(&count)
	if result.Error != nil {
		return fmt.Errorf("failed to check activation code: %w", result.Error)
	}
	if count == 0 {
		return core.ErrCodeNotFound
	}

	return s.updateUser(ctx, userID, map[string]any{"activation_code": code, "is_active": true})
}

// RedeemPromoCode marks a promo code used by the user and extends their
// subscription by the code's day count. Each user may redeem one promo code
// ever; each code may be redeemed once.
func (s *SQLStorage) RedeemPromoCode(ctx context.Context, userID int64, code string) (days int, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var promo PromoCode
		if result := tx.Where("code = ?", code).First(&promo); result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return core.ErrCodeNotFound
			}
			return fmt.Errorf("failed to fetch promo code: %w", result.Error)
		}

		if promo.IsUsed {
			return core.ErrCodeAlreadyUsed
		}
		if promo.ExpiresAt != nil && time.Now().UTC().After(*promo.ExpiresAt) {
			return core.ErrCodeNotFound
		}

		var prior int64
		if result := tx.Model(&PromoCode{}).
			Where("used_by_user_id = ? AND is_used = ?", userID, true).
			Count(&prior); result.Error != nil {
			return fmt.Errorf("failed to check promo history: %w", result.Error)
		}
		if prior > 0 {
			return core.ErrCodeAlreadyUsed
		}

		now := time.Now().UTC()
		if result := tx.Model(&promo).Updates(map[string]any{
			"is_used":         true,
			"used_by_user_id": userID,
			"used_at":         now,
		}); result.Error != nil {
			return fmt.Errorf("failed to mark promo code used: %w", result.Error)
		}

		if result := tx.Model(&User{}).Where("user_id = ?", userID).
			Update("promo_code", code); result.Error != nil {
			return fmt.Errorf("failed to record promo code on user: %w", result.Error)
		}

		days = promo.Days
		return nil
	})
	if err != nil {
		return 0, err
	}

	return days, s.ActivateSubscription(ctx, userID, days)
}

// GenerateActivationCodes creates count random reusable access codes.
func (s *SQLStorage) GenerateActivationCodes(ctx context.Context, count int, createdBy string) ([]string, error) {
	codes := make([]string, 0, count)

	for len(codes) < count {
		code, err := randomCode(8)
		if err != nil {
			return codes, err
		}

		taken, err := s.codeExists(ctx, &ActivationCode{}, code)
		if err != nil {
			return codes, err
		}
		if taken {
			continue
		}

		result := s.db.WithContext(ctx).Create(&ActivationCode{
			Code:           code,
			CreatedByAdmin: createdBy,
		})
		if result.Error != nil {
			return codes, fmt.Errorf("failed to create activation code: %w", result.Error)
		}

		codes = append(codes, code)
	}

	return codes, nil
}

// GeneratePromoCodes creates count single-use promo codes worth days of
// subscription each. A zero expiresInDays makes the codes non-expiring.
func (s *SQLStorage) GeneratePromoCodes(ctx context.Context, count, days, expiresInDays int, description, createdBy string) ([]string, error) {
	var expiresAt *time.Time
	if expiresInDays > 0 {
		t := time.Now().UTC().Add(time.Duration(expiresInDays) * 24 * time.Hour)
		expiresAt = &t
	}

	codes := make([]string, 0, count)

	for len(codes) < count {
		code, err := randomCode(8)
		if err != nil {
			return codes, err
		}

		taken, err := s.codeExists(ctx, &PromoCode{}, code)
		if err != nil {
			return codes, err
		}
		if taken {
			continue
		}

		result := s.db.WithContext(ctx).Create(&PromoCode{
			Code:           code,
			Days:           days,
			Description:    description,
			ExpiresAt:      expiresAt,
			CreatedByAdmin: createdBy,
		})
		if result.Error != nil {
			return codes, fmt.Errorf("failed to create promo code: %w", result.Error)
		}

		codes = append(codes, code)
	}

	return codes, nil
}

// SubscriptionUntil returns the subscription end of a user, nil when the
// user has no active subscription.
func (s *SQLStorage) SubscriptionUntil(ctx context.Context, userID int64) (*time.Time, error) {
	var user User
	result := s.db.WithContext(ctx).Select("subscribe_until").First(&user, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", core.ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("failed to fetch subscription: %w", result.Error)
	}
	return user.SubscribeUntil, nil
}

func (s *SQLStorage) codeExists(ctx context.Context, model any, code string) (bool, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(model).Where("code = ?", code).Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check code uniqueness: %w", result.Error)
	}
	return count > 0, nil
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(codeAlphabet)))

	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
