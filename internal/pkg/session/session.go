package session

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/Scribefox/internal/pkg/env"
)

// Keys written by the login flow of the identity platform.
const (
	KeyUserID  = "user_id"
	KeyName    = "user_name"
	KeyIsAdmin = "user_is_admin"
)

// RedisConfig derives the session storage config from the shared cache client.
// Sessions live in their own database so a cache flush does not log users out.
func RedisConfig(client *goredis.Client) redis.Config {
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if client != nil {
		if h, p, err := net.SplitHostPort(client.Options().Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := client.Options().Password; p != "" {
			password = p
		}
	}
	return redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: env.GetInt("SESSION_DB", 1),
		Reset:    false,
	}
}

// NewStore creates the cookie session store. A nil storage keeps sessions in memory.
func NewStore(storage fiber.Storage) *session.Store {
	cfg := session.Config{
		CookieHTTPOnly: true,
		CookieSecure:   !env.IsDev(),
		Expiration:     env.GetDuration("SESSION_TTL", time.Hour),
		KeyLookup:      "cookie:session_id",
	}
	if storage != nil {
		cfg.Storage = storage
	}
	return session.New(cfg)
}

// NewRedisStore creates a session store backed by Redis.
func NewRedisStore(client *goredis.Client) *session.Store {
	return NewStore(redis.New(RedisConfig(client)))
}

// Login records an authenticated user on the caller's session. The login flow
// itself lives outside this service; this is the hand-off point it writes to.
func Login(store *session.Store, c *fiber.Ctx, userID uint, name string, isAdmin bool) error {
	sess, err := store.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if err := sess.Regenerate(); err != nil {
		return fmt.Errorf("failed to regenerate session: %w", err)
	}
	sess.Set(KeyUserID, userID)
	sess.Set(KeyName, name)
	sess.Set(KeyIsAdmin, isAdmin)
	return sess.Save()
}
