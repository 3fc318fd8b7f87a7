package repositories

import (
	"context"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/axpect/staffhub/internal/models"
)

const (
	presenceKeyPrefix = "presence:user:"

	// 键带过期时间，网关异常退出时在线状态自动衰减
	presenceTTL = 5 * time.Minute
)

// PresenceRepository 即 Presence Service
// 权威数据在 users 表（is_online + last_seen），Redis 作带 TTL 的快速镜像
type PresenceRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewPresenceRepository(db *gorm.DB, redisClient *redis.Client) *PresenceRepository {
	return &PresenceRepository{db: db, redis: redisClient}
}

func presenceKey(userID uint) string {
	return presenceKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// SetOnline 上线，由该用户自己的连接生命周期触发
func (r *PresenceRepository) SetOnline(ctx context.Context, userID uint) error {
	now := time.Now()
	err := r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"is_online": true, "last_seen": now}).Error
	if err != nil {
		return err
	}
	if r.redis != nil {
		return r.redis.Set(ctx, presenceKey(userID), "1", presenceTTL).Err()
	}
	return nil
}

// Refresh 心跳续期 Redis 镜像
func (r *PresenceRepository) Refresh(ctx context.Context, userID uint) error {
	if r.redis == nil {
		return nil
	}
	return r.redis.Expire(ctx, presenceKey(userID), presenceTTL).Err()
}

// SetOffline 下线并记录 last_seen
func (r *PresenceRepository) SetOffline(ctx context.Context, userID uint) error {
	now := time.Now()
	err := r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"is_online": false, "last_seen": now}).Error
	if err != nil {
		return err
	}
	if r.redis != nil {
		return r.redis.Del(ctx, presenceKey(userID)).Err()
	}
	return nil
}

// IsOnline 优先查 Redis 镜像，未命中回退数据库
func (r *PresenceRepository) IsOnline(ctx context.Context, userID uint) (bool, error) {
	if r.redis != nil {
		n, err := r.redis.Exists(ctx, presenceKey(userID)).Result()
		if err == nil {
			return n > 0, nil
		}
		// Redis 故障不阻塞，降级走数据库
	}
	var user models.User
	if err := r.db.Select("is_online").First(&user, userID).Error; err != nil {
		return false, err
	}
	return user.IsOnline, nil
}

// LastSeen 最后在线时间
func (r *PresenceRepository) LastSeen(userID uint) (*time.Time, error) {
	var user models.User
	if err := r.db.Select("last_seen").First(&user, userID).Error; err != nil {
		return nil, err
	}
	return user.LastSeen, nil
}
