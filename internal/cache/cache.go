package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/calendarimport"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/config"
	"golang.org/x/oauth2"
)

var (
	ErrSessionNotFound = errors.New("import session not found or expired")
	ErrStateMismatch   = errors.New("oauth state mismatch")
	ErrTokenNotFound   = errors.New("google token not found")
	ErrSessionConflict = errors.New("import session was modified concurrently")
)

// 会话被并发修改时的重试次数
const maxSessionRetries = 3

func sessionKey(id string) string {
	return fmt.Sprintf("import_session_%s", id)
}

func oauthStateKey(userID int64) string {
	return fmt.Sprintf("google_oauth_state_%d", userID)
}

func googleTokenKey(userID int64) string {
	return fmt.Sprintf("google_token_%d", userID)
}

// Cache 保存导入会话和 Google 授权信息
type Cache struct {
	cfg *config.Config
	rdb *redis.Client
}

func NewCache(cfg *config.Config, rdb *redis.Client) *Cache {
	return &Cache{
		cfg: cfg,
		rdb: rdb,
	}
}

func (c *Cache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(c.cfg.Redis.OperationTimeout)*time.Second)
}

func (c *Cache) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return c.rdb.Set(ctx, key, data, ttl).Err()
}

func (c *Cache) getJSON(ctx context.Context, key string, v any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// SaveSession 每次保存都会刷新过期时间
func (c *Cache) SaveSession(ctx context.Context, s *calendarimport.Session) error {
	return c.setJSON(ctx, sessionKey(s.ID), s, time.Duration(c.cfg.Import.SessionTTL)*time.Second)
}

func (c *Cache) GetSession(ctx context.Context, id string) (*calendarimport.Session, error) {
	s := &calendarimport.Session{}
	if err := c.getJSON(ctx, sessionKey(id), s); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return s, nil
}

// UpdateSession 在 WATCH 事务里读取最新的会话，交给 fn 修改后写回。
// 其他请求在读写之间改了同一个会话时事务失败并重试。
func (c *Cache) UpdateSession(ctx context.Context, id string, fn func(s *calendarimport.Session) error) (*calendarimport.Session, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	key := sessionKey(id)
	ttl := time.Duration(c.cfg.Import.SessionTTL) * time.Second

	var updated *calendarimport.Session
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrSessionNotFound
			}
			return err
		}

		s := &calendarimport.Session{}
		if err := json.Unmarshal(data, s); err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}

		out, err := json.Marshal(s)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, ttl)
			return nil
		})
		if err == nil {
			updated = s
		}
		return err
	}

	for i := 0; i < maxSessionRetries; i++ {
		err := c.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}

	return nil, ErrSessionConflict
}

func (c *Cache) DeleteSession(ctx context.Context, id string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return c.rdb.Del(ctx, sessionKey(id)).Err()
}

func (c *Cache) SaveOAuthState(ctx context.Context, userID int64, state string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return c.rdb.Set(ctx, oauthStateKey(userID), state, time.Duration(c.cfg.Google.StateTTL)*time.Second).Err()
}

// ConsumeOAuthState 校验并删除 state，每个 state 只能使用一次
func (c *Cache) ConsumeOAuthState(ctx context.Context, userID int64, state string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	saved, err := c.rdb.GetDel(ctx, oauthStateKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrStateMismatch
		}
		return err
	}
	if saved == "" || saved != state {
		return ErrStateMismatch
	}
	return nil
}

// SaveGoogleToken 不设置过期时间，过期的 access token 由 refresh token 换新
func (c *Cache) SaveGoogleToken(ctx context.Context, userID int64, token *oauth2.Token) error {
	return c.setJSON(ctx, googleTokenKey(userID), token, 0)
}

func (c *Cache) GetGoogleToken(ctx context.Context, userID int64) (*oauth2.Token, error) {
	token := &oauth2.Token{}
	if err := c.getJSON(ctx, googleTokenKey(userID), token); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return token, nil
}
