package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/snapback-dev/mcp-server/internal/cache"
)

// Result is the outcome of authenticating a raw credential.
type Result struct {
	Valid  bool
	Tier   Tier
	UserID string
	OrgID  string
	Error  string
}

// TokenVerifier is the pluggable identity backend: the in-tree JWT
// Verifier in development/single-binary deployments, or an HTTP call to
// a real identity service in production.
type TokenVerifier interface {
	Verify(tokenString string) (*Claims, error)
}

// Permission describes one tool's access requirement.
type Permission struct {
	MinTier         Tier
	RequiresBackend bool
}

// PermissionTable maps tool name to its Permission. Tools absent from
// the table are open to any authenticated principal.
type PermissionTable map[string]Permission

const cacheTTL = 60 * time.Second
const cacheMaxEntries = 1000

// Resolver authenticates raw credentials and gates tool access,
// caching successful verifications so repeated calls on the same
// connection don't re-decode a token every time.
type Resolver struct {
	verifier    TokenVerifier
	permissions PermissionTable
	authCache   cache.Cache
	devMode     bool
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	Verifier    TokenVerifier
	Permissions PermissionTable
	DevMode     bool
}

// NewResolver builds a Resolver with its own bounded in-memory auth
// cache (TTL ≤60s, ≤1000 entries), independent of any application-level
// cache instance.
func NewResolver(cfg ResolverConfig) *Resolver {
	authCache := cache.MustNew(&cache.Options{
		Backend:         cache.BackendMemory,
		DefaultTTL:      cacheTTL,
		MaxEntries:      cacheMaxEntries,
		CleanupInterval: time.Minute,
	})

	return &Resolver{
		verifier:    cfg.Verifier,
		permissions: cfg.Permissions,
		authCache:   authCache,
		devMode:     cfg.DevMode,
	}
}

// Authenticate resolves rawKey to a Result, consulting the auth cache
// first. A verifier failure never panics outward — it degrades to an
// unauthenticated free-tier result.
func (r *Resolver) Authenticate(ctx context.Context, rawKey string) (Result, error) {
	if rawKey == "" && r.devMode {
		return Result{Valid: true, Tier: TierAdmin, UserID: "dev"}, nil
	}

	if raw, err := r.authCache.Get(ctx, cacheKey(rawKey)); err == nil {
		var cached Result
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
	}

	result := r.verify(rawKey)

	if result.Valid {
		if encoded, err := json.Marshal(result); err == nil {
			_ = r.authCache.Set(ctx, cacheKey(rawKey), encoded, cacheTTL)
		}
	}

	return result, nil
}

func (r *Resolver) verify(rawKey string) Result {
	if r.verifier == nil {
		return Result{Valid: false, Tier: TierFree, Error: "authentication service unavailable"}
	}

	claims, err := func() (c *Claims, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = errRecovered
			}
		}()
		return r.verifier.Verify(rawKey)
	}()
	if err != nil {
		return Result{Valid: false, Tier: TierFree, Error: "authentication service unavailable"}
	}

	return Result{
		Valid:  true,
		Tier:   tierFromClaim(claims.Tier),
		UserID: claims.UserID,
		OrgID:  claims.OrgID,
	}
}

var errRecovered = errors.New("auth: verifier panicked")

func tierFromClaim(raw string) Tier {
	switch Tier(raw) {
	case TierPro, TierAdmin:
		return Tier(raw)
	default:
		return TierFree
	}
}

func cacheKey(rawKey string) string {
	return "auth:" + rawKey
}

// AccessDecision is the result of a tool-access gate check.
type AccessDecision struct {
	Allowed         bool
	UpgradeRequired bool
}

// HasToolAccess reports whether result's tier may invoke toolName. A
// tool absent from the permission table is open to any valid principal.
// A requiresBackend tool below the pro tier yields UpgradeRequired, not
// a denial.
func (r *Resolver) HasToolAccess(result Result, toolName string) AccessDecision {
	if !result.Valid {
		return AccessDecision{Allowed: false}
	}

	perm, ok := r.permissions[toolName]
	if !ok {
		return AccessDecision{Allowed: true}
	}

	if perm.RequiresBackend && result.Tier != TierPro && result.Tier != TierAdmin {
		return AccessDecision{Allowed: false, UpgradeRequired: true}
	}

	if !tierMeets(result.Tier, perm.MinTier) {
		return AccessDecision{Allowed: false}
	}

	return AccessDecision{Allowed: true}
}

func tierMeets(have, need Tier) bool {
	rank := map[Tier]int{TierFree: 0, TierPro: 1, TierAdmin: 2}
	return rank[have] >= rank[need]
}

// Close releases the resolver's auth cache resources.
func (r *Resolver) Close() error {
	return r.authCache.Close()
}
