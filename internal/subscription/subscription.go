package subscription

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Tier string

const (
	TierFree       Tier = "FREE"
	TierRegistered Tier = "REGISTERED"
	TierPremium    Tier = "PREMIUM"
)

// Subscription holds a user's billing tier. Checkout and webhook handling live
// in the billing service; this table is only read here.
type Subscription struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    uint64    `gorm:"uniqueIndex;not null"`
	Tier      Tier      `gorm:"type:varchar(16);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Subscription) TableName() string { return "subscriptions" }

// Limits is what a tier entitles a user to per day.
type Limits struct {
	Tier                Tier `json:"tier"`
	MessagesPerDay      int  `json:"messages_per_day"`
	MaxTokensPerMessage int  `json:"max_tokens_per_message"`
}

type LimitConfig struct {
	FreeMessagesPerDay       int
	RegisteredMessagesPerDay int
	PremiumMessagesPerDay    int
}

const tierCacheTTL = 5 * time.Minute

// Service resolves a user's tier and limits. Tier lookups are cached in Redis
// because the relay asks once per inbound message. rdb may be nil (no caching).
type Service struct {
	db  *gorm.DB
	rdb *redis.Client
	cfg LimitConfig
	log *zap.Logger
}

func NewService(db *gorm.DB, rdb *redis.Client, cfg LimitConfig, log *zap.Logger) *Service {
	if cfg.FreeMessagesPerDay <= 0 {
		cfg.FreeMessagesPerDay = 3
	}
	if cfg.RegisteredMessagesPerDay <= 0 {
		cfg.RegisteredMessagesPerDay = 10
	}
	if cfg.PremiumMessagesPerDay <= 0 {
		cfg.PremiumMessagesPerDay = 1000
	}
	return &Service{db: db, rdb: rdb, cfg: cfg, log: log}
}

// LimitsForTier maps a tier to its daily entitlements.
func (s *Service) LimitsForTier(tier Tier) Limits {
	switch tier {
	case TierPremium:
		return Limits{Tier: TierPremium, MessagesPerDay: s.cfg.PremiumMessagesPerDay, MaxTokensPerMessage: 8192}
	case TierRegistered:
		return Limits{Tier: TierRegistered, MessagesPerDay: s.cfg.RegisteredMessagesPerDay, MaxTokensPerMessage: 2048}
	default:
		return Limits{Tier: TierFree, MessagesPerDay: s.cfg.FreeMessagesPerDay, MaxTokensPerMessage: 512}
	}
}

// LimitsForUser resolves the user's tier and returns its limits. userID 0 means
// anonymous and always gets the free tier.
func (s *Service) LimitsForUser(ctx context.Context, userID uint64) (Limits, error) {
	if userID == 0 {
		return s.LimitsForTier(TierFree), nil
	}
	tier, err := s.tierFor(ctx, userID)
	if err != nil {
		return Limits{}, err
	}
	return s.LimitsForTier(tier), nil
}

func (s *Service) tierFor(ctx context.Context, userID uint64) (Tier, error) {
	key := cacheKey(userID)

	if s.rdb != nil {
		if v, err := s.rdb.Get(ctx, key).Result(); err == nil && v != "" {
			return Tier(v), nil
		} else if err != nil && !errors.Is(err, redis.Nil) {
			s.log.Warn("subscription tier cache read failed", zap.Error(err))
		}
	}

	sub, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return "", err
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, key, string(sub.Tier), tierCacheTTL).Err(); err != nil {
			s.log.Warn("subscription tier cache write failed", zap.Error(err))
		}
	}
	return sub.Tier, nil
}

// getOrCreate defaults a registered user without a subscription row to REGISTERED.
func (s *Service) getOrCreate(ctx context.Context, userID uint64) (*Subscription, error) {
	var sub Subscription
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if err == nil {
		return &sub, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	sub = Subscription{UserID: userID, Tier: TierRegistered}
	if err := s.db.WithContext(ctx).Create(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func cacheKey(userID uint64) string {
	return "sub:tier:" + strconv.FormatUint(userID, 10)
}
