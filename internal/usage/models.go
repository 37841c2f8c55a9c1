package usage

import "time"

// UsageRecord is one row per identity per calendar day. Exactly one of UserID
// and AnonymousID is set. Counters only grow; rows older than 30 days are
// removed by the cleanup job.
type UsageRecord struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	UserID       *uint64   `gorm:"index:uniq_usage_user_day,unique,priority:1"`
	AnonymousID  *string   `gorm:"type:varchar(128);index:uniq_usage_anon_day,unique,priority:1"`
	Day          time.Time `gorm:"type:date;not null;index:uniq_usage_user_day,unique,priority:2;index:uniq_usage_anon_day,unique,priority:2"`
	MessageCount int       `gorm:"not null;default:0"`
	TokensUsed   int       `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UsageRecord) TableName() string { return "usage_records" }

// Identity names who is being metered: a registered user id or an anonymous
// fingerprint, never both.
type Identity struct {
	UserID      uint64
	AnonymousID string
}

func (i Identity) IsAnonymous() bool { return i.UserID == 0 }

// Decision is the answer to "may this identity send one more message today".
type Decision struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
	Limit     int  `json:"limit"`
}

// Stats summarizes an identity's recorded usage.
type Stats struct {
	TodayMessages int `json:"today_messages"`
	TodayTokens   int `json:"today_tokens"`
	TotalMessages int `json:"total_messages"`
	TotalTokens   int `json:"total_tokens"`
}
