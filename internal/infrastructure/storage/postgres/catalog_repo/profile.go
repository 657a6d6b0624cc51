package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/id"
	"procura/internal/domain/approver"
	"procura/internal/infrastructure/storage/postgres"
)

// ProfileDirectory expands user ids to the profile snapshot kept in user_action.
type ProfileDirectory struct{}

func NewProfileDirectory() *ProfileDirectory {
	return &ProfileDirectory{}
}

func profilesQuery(ids []id.ID) squirrel.SelectBuilder {
	return builder().
		Select("id::text AS id", "email", "first_name", "middle_name", "last_name").
		From(userTable).
		Where(squirrel.Eq{"id": ids}).
		Where(squirrel.Eq{"is_active": true})
}

// ProfilesByIDs returns active users only; unknown and inactive ids are dropped.
func (p *ProfileDirectory) ProfilesByIDs(ctx context.Context, userIDs []string) ([]approver.Profile, error) {
	ids := parseIDs(userIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	sql, args, err := profilesQuery(ids).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var profiles []approver.Profile
	if err := pgxscan.Select(ctx, postgres.QuerierFromContext(ctx), &profiles, sql, args...); err != nil {
		return nil, fmt.Errorf("select profiles: %w", err)
	}
	return profiles, nil
}

var _ approver.ProfileDirectory = (*ProfileDirectory)(nil)
