package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"procura/internal/core/id"
	"procura/internal/domain/approver"
	"procura/internal/infrastructure/storage/postgres"
)

const departmentUserTable = "department_users"

// DepartmentDirectory answers membership questions from department_users.
type DepartmentDirectory struct{}

func NewDepartmentDirectory() *DepartmentDirectory {
	return &DepartmentDirectory{}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// membersQuery selects active members only; a deactivated head does not count.
func membersQuery(deptID id.ID, hodOnly bool) squirrel.SelectBuilder {
	q := builder().
		Select("du.user_id::text").
		From(departmentUserTable + " du").
		Join("users u ON u.id = du.user_id").
		Where(squirrel.Eq{"du.department_id": deptID}).
		Where(squirrel.Eq{"u.is_active": true})
	if hodOnly {
		q = q.Where(squirrel.Eq{"du.is_hod": true})
	}
	return q.OrderBy("du.user_id")
}

// HasHOD reports whether any member of the department is its head.
func (d *DepartmentDirectory) HasHOD(ctx context.Context, departmentID string) (bool, error) {
	deptID, err := id.Parse(departmentID)
	if err != nil {
		return false, nil
	}
	sub, args, err := membersQuery(deptID, true).ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists bool
	if err := postgres.QuerierFromContext(ctx).QueryRow(ctx, "SELECT EXISTS ("+sub+")", args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check department head: %w", err)
	}
	return exists, nil
}

func (d *DepartmentDirectory) HODUserIDs(ctx context.Context, departmentID string) ([]string, error) {
	return d.userIDs(ctx, departmentID, true)
}

func (d *DepartmentDirectory) MemberUserIDs(ctx context.Context, departmentID string) ([]string, error) {
	return d.userIDs(ctx, departmentID, false)
}

func (d *DepartmentDirectory) userIDs(ctx context.Context, departmentID string, hodOnly bool) ([]string, error) {
	deptID, err := id.Parse(departmentID)
	if err != nil {
		return nil, nil
	}
	sql, args, err := membersQuery(deptID, hodOnly).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := postgres.QuerierFromContext(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list department users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan department user: %w", err)
		}
		ids = append(ids, userID)
	}
	return ids, rows.Err()
}

var _ approver.DepartmentDirectory = (*DepartmentDirectory)(nil)
