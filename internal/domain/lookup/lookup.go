// Package lookup resolves foreign keys referenced by purchase requests to
// display names and rates in one batched query per entity kind.
package lookup

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"procura/internal/core/id"
	"procura/internal/domain/workflow"
)

// Ref is a named master-data row.
type Ref struct {
	ID   id.ID  `db:"id" json:"id"`
	Code string `db:"code" json:"code,omitempty"`
	Name string `db:"name" json:"name"`
}

// Product is a purchasable item.
type Product struct {
	Ref
	LocalName       string `db:"local_name" json:"local_name,omitempty"`
	InventoryUnitID *id.ID `db:"inventory_unit_id" json:"inventory_unit_id,omitempty"`
}

// Currency carries the exchange rate to the tenant's base currency.
type Currency struct {
	Ref
	ExchangeRate decimal.Decimal `db:"exchange_rate" json:"exchange_rate"`
}

// TaxProfile is a named tax rate.
type TaxProfile struct {
	Ref
	TaxRate decimal.Decimal `db:"tax_rate" json:"tax_rate"`
}

// PriceListDetail is a vendor price for a product.
type PriceListDetail struct {
	ID          id.ID           `db:"id" json:"id"`
	PriceListID id.ID           `db:"price_list_id" json:"price_list_id"`
	PriceListNo string          `db:"price_list_no" json:"price_list_no"`
	Price       decimal.Decimal `db:"price" json:"price"`
}

// User is the display identity of a caller.
type User struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

// Source loads master data in batches. Unknown ids are simply absent from
// the result.
type Source interface {
	Products(ctx context.Context, ids []id.ID) ([]Product, error)
	Vendors(ctx context.Context, ids []id.ID) ([]Ref, error)
	Locations(ctx context.Context, ids []id.ID) ([]Ref, error)
	Units(ctx context.Context, ids []id.ID) ([]Ref, error)
	Currencies(ctx context.Context, ids []id.ID) ([]Currency, error)
	DeliveryPoints(ctx context.Context, ids []id.ID) ([]Ref, error)
	PriceListDetails(ctx context.Context, ids []id.ID) ([]PriceListDetail, error)
	TaxProfiles(ctx context.Context, ids []id.ID) ([]TaxProfile, error)
	Department(ctx context.Context, id id.ID) (*Ref, error)
	User(ctx context.Context, id string) (*User, error)
}

// WorkflowLoader loads a workflow definition.
type WorkflowLoader interface {
	GetByID(ctx context.Context, id id.ID) (*workflow.Definition, error)
}

// Keys is the bag of ids an operation needs resolved.
type Keys struct {
	ProductIDs         []id.ID
	VendorIDs          []id.ID
	LocationIDs        []id.ID
	UnitIDs            []id.ID
	CurrencyIDs        []id.ID
	DeliveryPointIDs   []id.ID
	PriceListDetailIDs []id.ID
	TaxProfileIDs      []id.ID

	WorkflowID   *id.ID
	DepartmentID *id.ID
	UserID       string
}

// Add helpers skip nil pointers so callers can pass optional line fields directly.

func (k *Keys) AddProduct(v *id.ID)         { appendID(&k.ProductIDs, v) }
func (k *Keys) AddVendor(v *id.ID)          { appendID(&k.VendorIDs, v) }
func (k *Keys) AddLocation(v *id.ID)        { appendID(&k.LocationIDs, v) }
func (k *Keys) AddUnit(v *id.ID)            { appendID(&k.UnitIDs, v) }
func (k *Keys) AddCurrency(v *id.ID)        { appendID(&k.CurrencyIDs, v) }
func (k *Keys) AddDeliveryPoint(v *id.ID)   { appendID(&k.DeliveryPointIDs, v) }
func (k *Keys) AddPriceListDetail(v *id.ID) { appendID(&k.PriceListDetailIDs, v) }
func (k *Keys) AddTaxProfile(v *id.ID)      { appendID(&k.TaxProfileIDs, v) }

func appendID(dst *[]id.ID, v *id.ID) {
	if v != nil && !id.IsNil(*v) {
		*dst = append(*dst, *v)
	}
}

// Result holds resolved rows. Accessors return nil for unknown ids.
type Result struct {
	products         map[id.ID]*Product
	vendors          map[id.ID]*Ref
	locations        map[id.ID]*Ref
	units            map[id.ID]*Ref
	currencies       map[id.ID]*Currency
	deliveryPoints   map[id.ID]*Ref
	priceListDetails map[id.ID]*PriceListDetail
	taxProfiles      map[id.ID]*TaxProfile

	workflow   *workflow.Definition
	department *Ref
	user       *User
}

func (r *Result) Product(v *id.ID) *Product                 { return get(r.products, v) }
func (r *Result) Vendor(v *id.ID) *Ref                      { return get(r.vendors, v) }
func (r *Result) Location(v *id.ID) *Ref                    { return get(r.locations, v) }
func (r *Result) Unit(v *id.ID) *Ref                        { return get(r.units, v) }
func (r *Result) Currency(v *id.ID) *Currency               { return get(r.currencies, v) }
func (r *Result) DeliveryPoint(v *id.ID) *Ref               { return get(r.deliveryPoints, v) }
func (r *Result) PriceListDetail(v *id.ID) *PriceListDetail { return get(r.priceListDetails, v) }
func (r *Result) TaxProfile(v *id.ID) *TaxProfile           { return get(r.taxProfiles, v) }
func (r *Result) Workflow() *workflow.Definition            { return r.workflow }
func (r *Result) Department() *Ref                          { return r.department }
func (r *Result) User() *User                               { return r.user }

func get[T any](m map[id.ID]*T, v *id.ID) *T {
	if m == nil || v == nil {
		return nil
	}
	return m[*v]
}

// Resolver batches lookups against a Source.
type Resolver struct {
	source    Source
	workflows WorkflowLoader
}

// NewResolver creates a resolver.
func NewResolver(source Source, workflows WorkflowLoader) *Resolver {
	return &Resolver{source: source, workflows: workflows}
}

// Resolve runs one query per non-empty kind concurrently.
func (r *Resolver) Resolve(ctx context.Context, keys Keys) (*Result, error) {
	res := &Result{}
	g, gctx := errgroup.WithContext(ctx)

	batch(gctx, g, keys.ProductIDs, r.source.Products, func(p *Product) id.ID { return p.ID }, &res.products)
	batch(gctx, g, keys.VendorIDs, r.source.Vendors, refID, &res.vendors)
	batch(gctx, g, keys.LocationIDs, r.source.Locations, refID, &res.locations)
	batch(gctx, g, keys.UnitIDs, r.source.Units, refID, &res.units)
	batch(gctx, g, keys.CurrencyIDs, r.source.Currencies, func(c *Currency) id.ID { return c.ID }, &res.currencies)
	batch(gctx, g, keys.DeliveryPointIDs, r.source.DeliveryPoints, refID, &res.deliveryPoints)
	batch(gctx, g, keys.PriceListDetailIDs, r.source.PriceListDetails, func(p *PriceListDetail) id.ID { return p.ID }, &res.priceListDetails)
	batch(gctx, g, keys.TaxProfileIDs, r.source.TaxProfiles, func(t *TaxProfile) id.ID { return t.ID }, &res.taxProfiles)

	if keys.WorkflowID != nil && !id.IsNil(*keys.WorkflowID) {
		wfID := *keys.WorkflowID
		g.Go(func() error {
			def, err := r.workflows.GetByID(gctx, wfID)
			if err != nil {
				return fmt.Errorf("resolve workflow: %w", err)
			}
			res.workflow = def
			return nil
		})
	}
	if keys.DepartmentID != nil && !id.IsNil(*keys.DepartmentID) {
		depID := *keys.DepartmentID
		g.Go(func() error {
			dep, err := r.source.Department(gctx, depID)
			if err != nil {
				return fmt.Errorf("resolve department: %w", err)
			}
			res.department = dep
			return nil
		})
	}
	if keys.UserID != "" {
		g.Go(func() error {
			u, err := r.source.User(gctx, keys.UserID)
			if err != nil {
				return fmt.Errorf("resolve user: %w", err)
			}
			res.user = u
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func refID(r *Ref) id.ID { return r.ID }

// batch schedules one deduplicated lookup and indexes the rows by id.
// Each call writes a distinct field of Result, so no locking is needed.
func batch[T any](
	ctx context.Context,
	g *errgroup.Group,
	ids []id.ID,
	load func(context.Context, []id.ID) ([]T, error),
	key func(*T) id.ID,
	dst *map[id.ID]*T,
) {
	ids = dedup(ids)
	if len(ids) == 0 {
		return
	}
	g.Go(func() error {
		rows, err := load(ctx, ids)
		if err != nil {
			return err
		}
		m := make(map[id.ID]*T, len(rows))
		for i := range rows {
			m[key(&rows[i])] = &rows[i]
		}
		*dst = m
		return nil
	})
}

func dedup(ids []id.ID) []id.ID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[id.ID]struct{}, len(ids))
	out := make([]id.ID, 0, len(ids))
	for _, v := range ids {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
