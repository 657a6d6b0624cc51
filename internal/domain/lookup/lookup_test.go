package lookup

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/id"
	"procura/internal/domain/workflow"
)

type fakeSource struct {
	mu    sync.Mutex
	calls map[string][][]id.ID
	refs  map[id.ID]string
	fail  string
}

func newFakeSource() *fakeSource {
	return &fakeSource{calls: map[string][][]id.ID{}, refs: map[id.ID]string{}}
}

func (f *fakeSource) record(kind string, ids []id.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[kind] = append(f.calls[kind], ids)
	if f.fail == kind {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeSource) refsFor(ids []id.ID) []Ref {
	var out []Ref
	for _, v := range ids {
		if name, ok := f.refs[v]; ok {
			out = append(out, Ref{ID: v, Name: name})
		}
	}
	return out
}

func (f *fakeSource) Products(_ context.Context, ids []id.ID) ([]Product, error) {
	if err := f.record("products", ids); err != nil {
		return nil, err
	}
	var out []Product
	for _, r := range f.refsFor(ids) {
		out = append(out, Product{Ref: r})
	}
	return out, nil
}

func (f *fakeSource) Vendors(_ context.Context, ids []id.ID) ([]Ref, error) {
	return f.refsFor(ids), f.record("vendors", ids)
}

func (f *fakeSource) Locations(_ context.Context, ids []id.ID) ([]Ref, error) {
	return f.refsFor(ids), f.record("locations", ids)
}

func (f *fakeSource) Units(_ context.Context, ids []id.ID) ([]Ref, error) {
	return f.refsFor(ids), f.record("units", ids)
}

func (f *fakeSource) Currencies(_ context.Context, ids []id.ID) ([]Currency, error) {
	var out []Currency
	for _, r := range f.refsFor(ids) {
		out = append(out, Currency{Ref: r, ExchangeRate: decimal.NewFromInt(1)})
	}
	return out, f.record("currencies", ids)
}

func (f *fakeSource) DeliveryPoints(_ context.Context, ids []id.ID) ([]Ref, error) {
	return f.refsFor(ids), f.record("delivery_points", ids)
}

func (f *fakeSource) PriceListDetails(_ context.Context, ids []id.ID) ([]PriceListDetail, error) {
	return nil, f.record("price_list_details", ids)
}

func (f *fakeSource) TaxProfiles(_ context.Context, ids []id.ID) ([]TaxProfile, error) {
	return nil, f.record("tax_profiles", ids)
}

func (f *fakeSource) Department(_ context.Context, v id.ID) (*Ref, error) {
	if err := f.record("department", []id.ID{v}); err != nil {
		return nil, err
	}
	return &Ref{ID: v, Name: "Kitchen"}, nil
}

func (f *fakeSource) User(_ context.Context, uid string) (*User, error) {
	return &User{ID: uid, Name: "Jane Doe"}, f.record("user", nil)
}

type fakeWorkflows struct{ def *workflow.Definition }

func (f fakeWorkflows) GetByID(_ context.Context, _ id.ID) (*workflow.Definition, error) {
	return f.def, nil
}

func TestResolver_BatchesAndDeduplicates(t *testing.T) {
	src := newFakeSource()
	p1, p2, unknown := id.New(), id.New(), id.New()
	src.refs[p1] = "Flour"
	src.refs[p2] = "Sugar"

	r := NewResolver(src, fakeWorkflows{})

	var keys Keys
	keys.AddProduct(&p1)
	keys.AddProduct(&p2)
	keys.AddProduct(&p1)
	keys.AddProduct(&unknown)
	keys.AddProduct(nil)

	res, err := r.Resolve(context.Background(), keys)
	require.NoError(t, err)

	require.Len(t, src.calls["products"], 1, "one query per kind")
	assert.Len(t, src.calls["products"][0], 3)
	assert.Empty(t, src.calls["vendors"], "empty kinds are skipped")

	assert.Equal(t, "Flour", res.Product(&p1).Name)
	assert.Nil(t, res.Product(&unknown))
	assert.Nil(t, res.Product(nil))
	assert.Nil(t, res.Vendor(&p1))
}

func TestResolver_Singulars(t *testing.T) {
	src := newFakeSource()
	def := &workflow.Definition{ID: id.New(), Name: "General"}
	r := NewResolver(src, fakeWorkflows{def: def})

	dep := id.New()
	res, err := r.Resolve(context.Background(), Keys{
		WorkflowID:   &def.ID,
		DepartmentID: &dep,
		UserID:       "u-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "General", res.Workflow().Name)
	assert.Equal(t, "Kitchen", res.Department().Name)
	assert.Equal(t, "Jane Doe", res.User().Name)
}

func TestResolver_PropagatesErrors(t *testing.T) {
	src := newFakeSource()
	src.fail = "units"
	r := NewResolver(src, fakeWorkflows{})

	u := id.New()
	var keys Keys
	keys.AddUnit(&u)
	_, err := r.Resolve(context.Background(), keys)
	assert.Error(t, err)
}
