package inmemdb

import (
	"context"

	"github.com/trezcool/tutorhub/core"
	"github.com/trezcool/tutorhub/core/profile"
)

type profileRepository struct {
	db *DB
}

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *DB) profile.Repository {
	return &profileRepository{db: db}
}

var profileComparators = map[string]comparator[profile.Profile]{
	"created_at": func(a, b profile.Profile) int { return compareTimes(a.CreatedAt, b.CreatedAt) },
	"decided_at": func(a, b profile.Profile) int { return compareTimePtrs(a.DecidedAt, b.DecidedAt) },
}

func (repo *profileRepository) CreateProfile(_ context.Context, p profile.Profile, _ ...core.DBExecutor) (profile.Profile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.profiles[p.UserID]; ok {
		return profile.Profile{}, core.ErrConflict
	}
	p.ID = core.NewID()
	repo.db.profiles[p.UserID] = p
	return p, nil
}

func (repo *profileRepository) GetProfile(_ context.Context, userID string, _ ...core.DBExecutor) (profile.Profile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.profiles[userID]; ok {
		return p, nil
	}
	return profile.Profile{}, profile.ErrNotFound
}

func (repo *profileRepository) UpdateProfile(_ context.Context, p profile.Profile, _ ...core.DBExecutor) (profile.Profile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.profiles[p.UserID]; !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	p.AvatarURL = ""
	repo.db.profiles[p.UserID] = p
	return p, nil
}

func (repo *profileRepository) QueryProfiles(_ context.Context, filter *profile.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]profile.Profile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	profiles := make([]profile.Profile, 0)
	for _, p := range repo.db.profiles {
		if filter != nil {
			if len(filter.UserIDs) > 0 && !core.StringIn(p.UserID, filter.UserIDs...) {
				continue
			}
			if len(filter.Roles) > 0 && !core.StringIn(p.Role, filter.Roles...) {
				continue
			}
			if len(filter.Statuses) > 0 && !core.StringIn(p.ApprovalStatus, filter.Statuses...) {
				continue
			}
			if !filter.DecidedFrom.IsZero() && (p.DecidedAt == nil || p.DecidedAt.Before(filter.DecidedFrom)) {
				continue
			}
		}
		profiles = append(profiles, p)
	}
	orderBy(profiles, ordering, profileComparators, func(a, b profile.Profile) int { return compareTimes(a.CreatedAt, b.CreatedAt) })
	return profiles, nil
}
