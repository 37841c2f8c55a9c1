package usage

import (
	"context"
	"errors"
	"time"

	"github.com/vortexchat/backend/internal/subscription"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const retentionDays = 30

// EventPublisher receives a copy of every increment for the billing pipeline.
type EventPublisher interface {
	PublishUsage(ctx context.Context, ev Event) error
}

// Event is the message published on each quota increment.
type Event struct {
	UserID      *uint64   `json:"user_id,omitempty"`
	AnonymousID *string   `json:"anonymous_id,omitempty"`
	Tokens      int       `json:"tokens"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Ledger meters messages per identity per day. Increments are single atomic
// upserts so concurrent sessions for the same identity cannot lose counts.
type Ledger struct {
	db   *gorm.DB
	subs *subscription.Service
	pub  EventPublisher
	log  *zap.Logger
}

// NewLedger creates the ledger. pub may be nil; publishing is best-effort.
func NewLedger(db *gorm.DB, subs *subscription.Service, pub EventPublisher, log *zap.Logger) *Ledger {
	return &Ledger{db: db, subs: subs, pub: pub, log: log}
}

// CanSend answers whether the identity may send one more message today.
func (l *Ledger) CanSend(ctx context.Context, id Identity) (Decision, error) {
	limits, err := l.subs.LimitsForUser(ctx, id.UserID)
	if err != nil {
		return Decision{}, err
	}

	rec, err := l.todayRecord(ctx, id)
	if err != nil {
		return Decision{}, err
	}

	remaining := limits.MessagesPerDay - rec.MessageCount
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   rec.MessageCount < limits.MessagesPerDay,
		Remaining: remaining,
		Limit:     limits.MessagesPerDay,
	}, nil
}

// Increment records one sent message plus tokens consumed, creating today's
// record if needed. The whole operation is one upsert.
func (l *Ledger) Increment(ctx context.Context, id Identity, tokens int) error {
	day := today()
	rec := UsageRecord{Day: day, MessageCount: 1, TokensUsed: tokens}
	conflict := clause.OnConflict{
		DoUpdates: clause.Assignments(map[string]interface{}{
			"message_count": gorm.Expr("message_count + ?", 1),
			"tokens_used":   gorm.Expr("tokens_used + ?", tokens),
			"updated_at":    time.Now(),
		}),
	}
	if id.IsAnonymous() {
		if id.AnonymousID == "" {
			return errors.New("usage: identity has neither user id nor anonymous id")
		}
		anon := id.AnonymousID
		rec.AnonymousID = &anon
		conflict.Columns = []clause.Column{{Name: "anonymous_id"}, {Name: "day"}}
	} else {
		uid := id.UserID
		rec.UserID = &uid
		conflict.Columns = []clause.Column{{Name: "user_id"}, {Name: "day"}}
	}

	if err := l.db.WithContext(ctx).Clauses(conflict).Create(&rec).Error; err != nil {
		return err
	}

	if l.pub != nil {
		ev := Event{UserID: rec.UserID, AnonymousID: rec.AnonymousID, Tokens: tokens, OccurredAt: time.Now()}
		if err := l.pub.PublishUsage(ctx, ev); err != nil {
			l.log.Warn("usage event publish failed", zap.Error(err))
		}
	}
	return nil
}

// UserStats summarizes a registered user's usage for the stats endpoint.
func (l *Ledger) UserStats(ctx context.Context, userID uint64) (Stats, error) {
	var todayRec UsageRecord
	err := l.db.WithContext(ctx).
		Where("user_id = ? AND day = ?", userID, today()).
		First(&todayRec).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return Stats{}, err
	}

	type sums struct {
		Messages int
		Tokens   int
	}
	var total sums
	if err := l.db.WithContext(ctx).Model(&UsageRecord{}).
		Select("COALESCE(SUM(message_count),0) AS messages, COALESCE(SUM(tokens_used),0) AS tokens").
		Where("user_id = ?", userID).
		Scan(&total).Error; err != nil {
		return Stats{}, err
	}

	return Stats{
		TodayMessages: todayRec.MessageCount,
		TodayTokens:   todayRec.TokensUsed,
		TotalMessages: total.Messages,
		TotalTokens:   total.Tokens,
	}, nil
}

// CleanupOldRecords deletes records older than the 30 day retention window.
func (l *Ledger) CleanupOldRecords(ctx context.Context) (int64, error) {
	cutoff := today().AddDate(0, 0, -retentionDays)
	res := l.db.WithContext(ctx).
		Where("day < ?", cutoff).
		Delete(&UsageRecord{})
	return res.RowsAffected, res.Error
}

func (l *Ledger) todayRecord(ctx context.Context, id Identity) (*UsageRecord, error) {
	day := today()
	q := l.db.WithContext(ctx)
	if id.IsAnonymous() {
		q = q.Where("anonymous_id = ? AND day = ?", id.AnonymousID, day)
	} else {
		q = q.Where("user_id = ? AND day = ?", id.UserID, day)
	}

	var rec UsageRecord
	err := q.First(&rec).Error
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	rec = UsageRecord{Day: day}
	if id.IsAnonymous() {
		anon := id.AnonymousID
		rec.AnonymousID = &anon
	} else {
		uid := id.UserID
		rec.UserID = &uid
	}
	if err := l.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
