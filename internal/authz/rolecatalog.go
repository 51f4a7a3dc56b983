package authz

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRoleCacheTTL bounds how stale a cached role set may get without an
// explicit invalidation.
const DefaultRoleCacheTTL = 5 * time.Minute

// invalidateChannel carries cache keys between processes. The wildcard
// payload drops every entry.
const (
	invalidateChannel = "authz.invalidate"
	invalidateAll     = "*"
	systemCacheKey    = "system"
)

// CacheRecorder observes role cache behavior for metrics.
type CacheRecorder interface {
	RecordCacheEvent(event string)
}

// Cache events reported to the CacheRecorder.
const (
	CacheEventHit        = "hit"
	CacheEventMiss       = "miss"
	CacheEventStale      = "stale"
	CacheEventFallback   = "fallback"
	CacheEventInvalidate = "invalidate"
)

// CatalogConfig collects Catalog dependencies. Store is required; Redis is
// optional and only enables the cross-process invalidation broadcast.
type CatalogConfig struct {
	Store    RoleStore
	Redis    *redis.Client
	Logger   *slog.Logger
	TTL      time.Duration
	Now      func() time.Time
	Recorder CacheRecorder
}

// Catalog serves role sets merged from the built-in templates and the
// dynamic role store, memoized per practice for a fixed TTL. It degrades to
// stale or template-only data when the store is unavailable; it never
// returns an error into permission evaluation.
type Catalog struct {
	store    RoleStore
	rdb      *redis.Client
	logger   *slog.Logger
	ttl      time.Duration
	now      func() time.Time
	recorder CacheRecorder

	mu      sync.RWMutex
	entries map[string]catalogEntry
}

type catalogEntry struct {
	roles     []Role
	fetchedAt time.Time
}

// NewCatalog constructs a Catalog.
func NewCatalog(cfg CatalogConfig) *Catalog {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultRoleCacheTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		store:    cfg.Store,
		rdb:      cfg.Redis,
		logger:   logger,
		ttl:      ttl,
		now:      now,
		recorder: cfg.Recorder,
		entries:  make(map[string]catalogEntry),
	}
}

func cacheKey(practiceID *int64) string {
	if practiceID == nil {
		return systemCacheKey
	}
	return strconv.FormatInt(*practiceID, 10)
}

// Roles returns the system-defined roles plus, when practiceID is set, the
// custom roles of that practice. Reads inside the TTL window return the
// memoized value without touching the store.
func (c *Catalog) Roles(ctx context.Context, practiceID *int64) []Role {
	key := cacheKey(practiceID)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		c.recordCache(CacheEventHit)
		return entry.roles
	}
	c.recordCache(CacheEventMiss)

	roles, err := c.fetch(ctx, practiceID)
	if err != nil {
		c.logger.Warn("role store unavailable, using fallback roles",
			slog.String("cache_key", key), slog.Any("error", err))
		if ok {
			// Stale beats static: the cached set already reflects this
			// practice's custom roles.
			c.recordCache(CacheEventStale)
			return entry.roles
		}
		c.recordCache(CacheEventFallback)
		return TemplateRoles()
	}

	c.mu.Lock()
	c.entries[key] = catalogEntry{roles: roles, fetchedAt: c.now()}
	c.mu.Unlock()
	return roles
}

// RoleByName resolves a single role by name within the practice scope.
func (c *Catalog) RoleByName(ctx context.Context, name string, practiceID *int64) (Role, bool) {
	for _, role := range c.Roles(ctx, practiceID) {
		if role.Name == name {
			return role, true
		}
	}
	return Role{}, false
}

// fetch merges built-in templates with store roles. A store role sharing a
// template name replaces the template, so deployments can customize the
// built-in permission sets.
func (c *Catalog) fetch(ctx context.Context, practiceID *int64) ([]Role, error) {
	stored, err := c.store.GetRoles(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	overridden := make(map[string]struct{}, len(stored))
	for _, role := range stored {
		overridden[role.Name] = struct{}{}
	}
	roles := make([]Role, 0, len(stored)+len(roleTemplates))
	for _, tpl := range TemplateRoles() {
		if _, ok := overridden[tpl.Name]; !ok {
			roles = append(roles, tpl)
		}
	}
	return append(roles, stored...), nil
}

// Invalidate drops cached entries, for one practice or globally when
// practiceID is nil. Role mutations must call this; the drop is immediate
// and unconditional. When Redis is configured the key is also broadcast so
// peer processes drop their copies.
func (c *Catalog) Invalidate(ctx context.Context, practiceID *int64) {
	var key string
	if practiceID == nil {
		key = invalidateAll
	} else {
		key = cacheKey(practiceID)
	}
	c.drop(key)

	if c.rdb == nil {
		return
	}
	if err := c.rdb.Publish(ctx, invalidateChannel, key).Err(); err != nil {
		// Peers fall back to TTL expiry; local invalidation already ran.
		c.logger.Warn("invalidation broadcast failed", slog.String("cache_key", key), slog.Any("error", err))
	}
}

func (c *Catalog) drop(key string) {
	c.recordCache(CacheEventInvalidate)
	c.mu.Lock()
	defer c.mu.Unlock()
	if key == invalidateAll {
		c.entries = make(map[string]catalogEntry)
		return
	}
	delete(c.entries, key)
	// System role edits ripple into every practice's merged set.
	if key == systemCacheKey {
		c.entries = make(map[string]catalogEntry)
	}
}

// ListenInvalidations consumes the broadcast channel until the context is
// cancelled. Safe to skip entirely in single-process deployments.
func (c *Catalog) ListenInvalidations(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	sub := c.rdb.Subscribe(ctx, invalidateChannel)
	defer func() { _ = sub.Close() }()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			c.drop(msg.Payload)
		}
	}
}

func (c *Catalog) recordCache(event string) {
	if c.recorder != nil {
		c.recorder.RecordCacheEvent(event)
	}
}
