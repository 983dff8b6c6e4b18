package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"growth-ledger/internal/models"
	"growth-ledger/internal/repository"

	"github.com/redis/go-redis/v9"
)

// PolicyReader supplies per-app configuration
type PolicyReader interface {
	GetPolicy(ctx context.Context, appID string) (*models.AppPolicy, error)
}

// PolicyService reads AppPolicy rows through an optional Redis cache
type PolicyService struct {
	repo *repository.Repository
	rdb  *redis.Client
	ttl  time.Duration
}

// NewPolicyService creates a PolicyService. rdb may be nil to disable caching.
func NewPolicyService(repo *repository.Repository, rdb *redis.Client, ttl time.Duration) *PolicyService {
	return &PolicyService{
		repo: repo,
		rdb:  rdb,
		ttl:  ttl,
	}
}

func policyCacheKey(appID string) string {
	return "growth:policy:" + appID
}

// GetPolicy returns the app's policy, ErrNotFound for unknown apps
func (s *PolicyService) GetPolicy(ctx context.Context, appID string) (*models.AppPolicy, error) {
	if s.rdb != nil {
		raw, err := s.rdb.Get(ctx, policyCacheKey(appID)).Bytes()
		if err == nil {
			var policy models.AppPolicy
			if err := json.Unmarshal(raw, &policy); err == nil {
				return &policy, nil
			}
			log.Printf("[PolicyCache] Discarding undecodable entry for app %s", appID)
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("[PolicyCache] Read failed for app %s: %v", appID, err)
		}
	}

	policy, err := s.repo.GetAppPolicy(ctx, appID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: app %s", ErrNotFound, appID)
		}
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(policy); err == nil {
			if err := s.rdb.Set(ctx, policyCacheKey(appID), raw, s.ttl).Err(); err != nil {
				log.Printf("[PolicyCache] Write failed for app %s: %v", appID, err)
			}
		}
	}

	return policy, nil
}

// UpsertPolicy stores policy and drops any cached copy
func (s *PolicyService) UpsertPolicy(ctx context.Context, policy *models.AppPolicy) error {
	if policy.AppID == "" {
		return fmt.Errorf("%w: app_id is required", ErrValidation)
	}
	if policy.DailyReferralCap < 0 || policy.DailyInviteQuota < 0 {
		return fmt.Errorf("%w: caps and quotas must not be negative", ErrValidation)
	}
	if policy.WaitlistEnabled && policy.WaitlistEnabledAt == nil {
		enabledAt := SystemClock()
		policy.WaitlistEnabledAt = &enabledAt
	}

	if err := s.repo.UpsertAppPolicy(ctx, policy); err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}

	if s.rdb != nil {
		if err := s.rdb.Del(ctx, policyCacheKey(policy.AppID)).Err(); err != nil {
			log.Printf("[PolicyCache] Invalidate failed for app %s: %v", policy.AppID, err)
		}
	}

	log.Printf("[Policy] Saved policy for app %s", policy.AppID)
	return nil
}
