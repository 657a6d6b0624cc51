package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/id"
	"procura/internal/domain/lookup"
	"procura/internal/infrastructure/storage/postgres"
)

// Catalog tables read by the resolver.
const (
	productTable       = "products"
	vendorTable        = "vendors"
	locationTable      = "locations"
	unitTable          = "units"
	currencyTable      = "currencies"
	deliveryPointTable = "delivery_points"
	taxProfileTable    = "tax_profiles"
	departmentTable    = "departments"
	userTable          = "users"
)

var refColumns = postgres.ExtractDBColumns[lookup.Ref]()

// MasterSource implements lookup.Source over the tenant catalogs.
type MasterSource struct {
	products       *BaseCatalogRepo[lookup.Product]
	vendors        *BaseCatalogRepo[lookup.Ref]
	locations      *BaseCatalogRepo[lookup.Ref]
	units          *BaseCatalogRepo[lookup.Ref]
	currencies     *BaseCatalogRepo[lookup.Currency]
	deliveryPoints *BaseCatalogRepo[lookup.Ref]
	taxProfiles    *BaseCatalogRepo[lookup.TaxProfile]
	departments    *BaseCatalogRepo[lookup.Ref]
}

// NewMasterSource creates the master-data source.
func NewMasterSource() *MasterSource {
	return &MasterSource{
		products:       NewBaseCatalogRepo[lookup.Product](productTable, postgres.ExtractDBColumns[lookup.Product]()),
		vendors:        NewBaseCatalogRepo[lookup.Ref](vendorTable, refColumns),
		locations:      NewBaseCatalogRepo[lookup.Ref](locationTable, refColumns),
		units:          NewBaseCatalogRepo[lookup.Ref](unitTable, refColumns),
		currencies:     NewBaseCatalogRepo[lookup.Currency](currencyTable, postgres.ExtractDBColumns[lookup.Currency]()),
		deliveryPoints: NewBaseCatalogRepo[lookup.Ref](deliveryPointTable, refColumns),
		taxProfiles:    NewBaseCatalogRepo[lookup.TaxProfile](taxProfileTable, postgres.ExtractDBColumns[lookup.TaxProfile]()),
		departments:    NewBaseCatalogRepo[lookup.Ref](departmentTable, refColumns),
	}
}

func (s *MasterSource) Products(ctx context.Context, ids []id.ID) ([]lookup.Product, error) {
	return s.products.GetByIDs(ctx, ids)
}

func (s *MasterSource) Vendors(ctx context.Context, ids []id.ID) ([]lookup.Ref, error) {
	return s.vendors.GetByIDs(ctx, ids)
}

func (s *MasterSource) Locations(ctx context.Context, ids []id.ID) ([]lookup.Ref, error) {
	return s.locations.GetByIDs(ctx, ids)
}

func (s *MasterSource) Units(ctx context.Context, ids []id.ID) ([]lookup.Ref, error) {
	return s.units.GetByIDs(ctx, ids)
}

func (s *MasterSource) Currencies(ctx context.Context, ids []id.ID) ([]lookup.Currency, error) {
	return s.currencies.GetByIDs(ctx, ids)
}

func (s *MasterSource) DeliveryPoints(ctx context.Context, ids []id.ID) ([]lookup.Ref, error) {
	return s.deliveryPoints.GetByIDs(ctx, ids)
}

func (s *MasterSource) TaxProfiles(ctx context.Context, ids []id.ID) ([]lookup.TaxProfile, error) {
	return s.taxProfiles.GetByIDs(ctx, ids)
}

func priceListDetailQuery(ids []id.ID) squirrel.SelectBuilder {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("d.id", "d.price_list_id", "p.price_list_no", "d.price").
		From("price_list_details d").
		Join("price_lists p ON p.id = d.price_list_id").
		Where(squirrel.Eq{"d.id": ids})
}

// PriceListDetails joins each detail to its price list for the list number.
func (s *MasterSource) PriceListDetails(ctx context.Context, ids []id.ID) ([]lookup.PriceListDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sql, args, err := priceListDetailQuery(ids).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []lookup.PriceListDetail
	if err := pgxscan.Select(ctx, postgres.QuerierFromContext(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select price list details: %w", err)
	}
	return rows, nil
}

// Department returns nil when the department does not exist.
func (s *MasterSource) Department(ctx context.Context, deptID id.ID) (*lookup.Ref, error) {
	return s.departments.GetByID(ctx, deptID)
}

func userQuery(userID id.ID) squirrel.SelectBuilder {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select(
			"id::text AS id",
			"TRIM(CONCAT_WS(' ', NULLIF(first_name, ''), NULLIF(last_name, ''))) AS name",
			"email",
		).
		From(userTable).
		Where(squirrel.Eq{"id": userID})
}

// User returns nil for unknown or malformed ids.
func (s *MasterSource) User(ctx context.Context, userID string) (*lookup.User, error) {
	uid, err := id.Parse(userID)
	if err != nil {
		return nil, nil
	}
	sql, args, err := userQuery(uid).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var u lookup.User
	if err := pgxscan.Get(ctx, postgres.QuerierFromContext(ctx), &u, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u.Name == "" {
		u.Name = u.Email
	}
	return &u, nil
}

var _ lookup.Source = (*MasterSource)(nil)
