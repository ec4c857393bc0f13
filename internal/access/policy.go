package access

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/materiel-backend/pkg/errors"
)

// Policy answers whether a user holds the materiel management capability.
type Policy interface {
	HasAccess(ctx context.Context, userID int64) (bool, error)
}

// Require fails unless userID is authenticated and granted access by policy.
func Require(ctx context.Context, policy Policy, userID int64) error {
	if userID <= 0 {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if policy == nil {
		return pkgerrors.New(pkgerrors.CodeForbidden, "access policy not configured")
	}
	ok, err := policy.HasAccess(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check materiel access")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeForbidden, "materiel access denied")
	}
	return nil
}

// StaticPolicy grants access to a fixed set of users.
type StaticPolicy struct {
	allowed map[int64]struct{}
}

func NewStaticPolicy(userIDs ...int64) *StaticPolicy {
	allowed := make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		allowed[id] = struct{}{}
	}
	return &StaticPolicy{allowed: allowed}
}

func (p *StaticPolicy) HasAccess(_ context.Context, userID int64) (bool, error) {
	_, ok := p.allowed[userID]
	return ok, nil
}

// ParseUserIDs parses a comma separated list of numeric user ids.
func ParseUserIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid user id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
