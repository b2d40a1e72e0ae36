package storage

import "time"

// User is a Telegram subscriber and their alert settings. PeriodMinutes is
// persisted as whole minutes; the domain works in time.Duration.
type User struct {
	UserID           int64   `gorm:"primaryKey"`
	PeriodMinutes    int     `gorm:"column:period;default:10"`
	Percent          float64 `gorm:"default:3.0"`
	IsActive         bool    `gorm:"default:false"`
	ActivationCode   string
	PromoCode        string
	SubscribeUntil   *time.Time `gorm:"index"`
	Language         string     `gorm:"default:ru;index"`
	LanguageSelected bool       `gorm:"default:false"`
	Exchange         string     `gorm:"default:tradingview;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (User) TableName() string { return "users" }

// ActivationCode is an access code reusable by any number of users until an
// admin deactivates it. Permanent codes cannot be deactivated.
type ActivationCode struct {
	ID             uint   `gorm:"primaryKey"`
	Code           string `gorm:"uniqueIndex;not null"`
	IsPermanent    bool   `gorm:"default:false"`
	IsActive       bool   `gorm:"default:true;index"`
	CreatedByAdmin string
	CreatedAt      time.Time
}

func (ActivationCode) TableName() string { return "activation_codes" }

// PromoCode grants a number of subscription days to exactly one user.
type PromoCode struct {
	ID             uint   `gorm:"primaryKey"`
	Code           string `gorm:"uniqueIndex;not null"`
	Days           int    `gorm:"not null"`
	Description    string
	IsUsed         bool `gorm:"default:false;index"`
	UsedByUserID   *int64
	UsedAt         *time.Time
	ExpiresAt      *time.Time `gorm:"index"`
	CreatedByAdmin string
	CreatedAt      time.Time
}

func (PromoCode) TableName() string { return "promo_codes" }
