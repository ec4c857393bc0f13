package access

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/materiel-backend/pkg/config"
	"github.com/angelmondragon/materiel-backend/pkg/logger"
)

const (
	ModeRole   = "role"
	ModeStatic = "static"
)

// FromConfig builds the policy selected by cfg.Mode. Role lookups are
// wrapped in a Redis cache when store is non-nil and CacheTTL is positive.
func FromConfig(cfg config.AccessConfig, db *gorm.DB, store CacheStore, logg *logger.Logger) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", ModeRole:
		policy, err := NewRolePolicy(db, cfg.RoleShortname, cfg.ContextLevel)
		if err != nil {
			return nil, err
		}
		if store == nil || cfg.CacheTTL <= 0 {
			return policy, nil
		}
		return NewCachedPolicy(policy, store, cfg.CacheTTL, logg), nil
	case ModeStatic:
		ids, err := ParseUserIDs(cfg.StaticUserIDs)
		if err != nil {
			return nil, err
		}
		return NewStaticPolicy(ids...), nil
	default:
		return nil, fmt.Errorf("unknown access mode %q", cfg.Mode)
	}
}
