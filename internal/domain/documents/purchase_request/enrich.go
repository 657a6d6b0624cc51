package purchase_request

import (
	"fmt"

	"github.com/shopspring/decimal"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/domain/lookup"
	"procura/internal/domain/pricing"
)

// KeysFromCreatorPayload collects every id a draft header and its lines reference.
func KeysFromCreatorPayload(h HeaderInput, lines []LineInput, userID string) lookup.Keys {
	keys := lookup.Keys{
		WorkflowID:   h.WorkflowID,
		DepartmentID: h.DepartmentID,
		UserID:       userID,
	}
	for i := range lines {
		l := &lines[i]
		keys.AddProduct(l.ProductID)
		keys.AddLocation(l.LocationID)
		keys.AddDeliveryPoint(l.DeliveryPointID)
		keys.AddUnit(l.RequestedUnitID)
		keys.AddCurrency(l.CurrencyID)
		keys.AddTaxProfile(l.TaxProfileID)
	}
	return keys
}

// KeysFromApproverLines collects the ids approvers may change on a line.
func KeysFromApproverLines(edits []ApproverLineEdit) lookup.Keys {
	var keys lookup.Keys
	for i := range edits {
		e := &edits[i]
		keys.AddVendor(e.VendorID)
		keys.AddUnit(e.ApprovedUnitID)
		keys.AddUnit(e.FOCUnitID)
		keys.AddCurrency(e.CurrencyID)
		keys.AddTaxProfile(e.TaxProfileID)
		keys.AddPriceListDetail(e.PriceListDetailID)
	}
	return keys
}

// applyInput copies drafted fields onto l and decorates them with display names.
func (l *Line) applyInput(in LineInput, res *lookup.Result) {
	l.ProductID = in.ProductID
	l.ProductName, l.ProductLocalName = "", ""
	if p := res.Product(in.ProductID); p != nil {
		l.ProductName = p.Name
		l.ProductLocalName = p.LocalName
	}

	l.LocationID = in.LocationID
	l.LocationCode, l.LocationName = "", ""
	if loc := res.Location(in.LocationID); loc != nil {
		l.LocationCode = loc.Code
		l.LocationName = loc.Name
	}

	l.DeliveryPointID = in.DeliveryPointID
	l.DeliveryPointName = ""
	if dp := res.DeliveryPoint(in.DeliveryPointID); dp != nil {
		l.DeliveryPointName = dp.Name
	}
	l.DeliveryDate = in.DeliveryDate
	l.Description = in.Description
	l.Note = in.Note

	l.RequestedQty = in.RequestedQty
	l.RequestedUnitID = in.RequestedUnitID
	l.RequestedUnitName = ""
	if u := res.Unit(in.RequestedUnitID); u != nil {
		l.RequestedUnitName = u.Name
	}
	l.RequestedUnitConversionFactor = decimal.NewFromInt(1)
	if in.RequestedUnitConversionFactor != nil {
		l.RequestedUnitConversionFactor = *in.RequestedUnitConversionFactor
	}

	l.setCurrency(in.CurrencyID, res)
	if in.Price != nil {
		l.Price = *in.Price
	}
	l.setTaxProfile(in.TaxProfileID, res)
}

// applyEdit applies an approver edit. Product and location never change here.
func (l *Line) applyEdit(e ApproverLineEdit, res *lookup.Result) {
	if e.VendorID != nil {
		l.VendorID = e.VendorID
		if v := res.Vendor(e.VendorID); v != nil {
			l.VendorName = v.Name
		}
	}
	if e.ApprovedQty != nil {
		l.ApprovedQty = *e.ApprovedQty
	}
	if e.ApprovedUnitID != nil {
		l.ApprovedUnitID = e.ApprovedUnitID
		if u := res.Unit(e.ApprovedUnitID); u != nil {
			l.ApprovedUnitName = u.Name
		}
	}
	if e.ApprovedUnitConversionFactor != nil {
		l.ApprovedUnitConversionFactor = *e.ApprovedUnitConversionFactor
	}
	if e.FOCQty != nil {
		l.FOCQty = *e.FOCQty
	}
	if e.FOCUnitID != nil {
		l.FOCUnitID = e.FOCUnitID
		if u := res.Unit(e.FOCUnitID); u != nil {
			l.FOCUnitName = u.Name
		}
	}
	if e.CurrencyID != nil {
		l.setCurrency(e.CurrencyID, res)
	}
	if e.ExchangeRate != nil {
		l.ExchangeRate = *e.ExchangeRate
	}
	if e.PriceListDetailID != nil {
		l.PriceListDetailID = e.PriceListDetailID
		if d := res.PriceListDetail(e.PriceListDetailID); d != nil {
			l.PriceListNo = d.PriceListNo
			l.Price = d.Price
		}
	}
	if e.Price != nil {
		l.Price = *e.Price
	}
	if e.TaxProfileID != nil {
		l.setTaxProfile(e.TaxProfileID, res)
	}
	if e.TaxRate != nil {
		l.TaxRate = *e.TaxRate
	}
	if e.IsTaxAdjustment != nil {
		l.IsTaxAdjustment = *e.IsTaxAdjustment
	}
	if e.TaxAmount != nil {
		l.TaxAmount = *e.TaxAmount
	}
	if e.DiscountRate != nil {
		l.DiscountRate = *e.DiscountRate
	}
	if e.IsDiscountAdjustment != nil {
		l.IsDiscountAdjustment = *e.IsDiscountAdjustment
	}
	if e.DiscountAmount != nil {
		l.DiscountAmount = *e.DiscountAmount
	}
	if e.Note != nil {
		l.Note = *e.Note
	}
}

func (l *Line) setCurrency(currencyID *id.ID, res *lookup.Result) {
	l.CurrencyID = currencyID
	l.CurrencyName = ""
	if c := res.Currency(currencyID); c != nil {
		l.CurrencyName = c.Name
		if c.ExchangeRate.IsPositive() {
			l.ExchangeRate = c.ExchangeRate
		}
	}
	if !l.ExchangeRate.IsPositive() {
		l.ExchangeRate = decimal.NewFromInt(1)
	}
}

func (l *Line) setTaxProfile(taxProfileID *id.ID, res *lookup.Result) {
	l.TaxProfileID = taxProfileID
	l.TaxProfileName = ""
	if tp := res.TaxProfile(taxProfileID); tp != nil {
		l.TaxProfileName = tp.Name
		l.TaxRate = tp.TaxRate
	} else if taxProfileID == nil && l.TaxRate.IsZero() {
		l.TaxRate = pricing.DefaultTaxRate
	}
}

// PricingQty is the quantity amounts are computed for: approved once set,
// requested before that.
func (l *Line) PricingQty() decimal.Decimal {
	if l.ApprovedQty.IsPositive() {
		return l.ApprovedQty
	}
	return l.RequestedQty
}

// PricingInput returns the calculator input for the line.
func (l *Line) PricingInput() pricing.Input {
	rate := l.ExchangeRate
	if !rate.IsPositive() {
		rate = decimal.NewFromInt(1)
	}
	return pricing.Input{
		Qty:                  l.PricingQty(),
		Price:                l.Price,
		CurrencyRate:         rate,
		TaxRate:              l.TaxRate,
		IsTaxAdjustment:      l.IsTaxAdjustment,
		TaxAmount:            l.TaxAmount,
		DiscountRate:         l.DiscountRate,
		IsDiscountAdjustment: l.IsDiscountAdjustment,
		DiscountAmount:       l.DiscountAmount,
	}
}

// Reprice recomputes the line amounts from quantity, price and rates.
func (l *Line) Reprice() error {
	b, err := pricing.Calculate(l.PricingInput())
	if err != nil {
		return apperror.NewInvalidArgument(fmt.Sprintf("line %d: %v", l.SequenceNo, err)).
			WithDetail("line_id", l.ID.String()).
			WithCause(err)
	}
	l.SubTotal = b.SubTotal
	l.DiscountAmount = b.DiscountAmount
	l.NetAmount = b.NetAmount
	l.TaxAmount = b.TaxAmount
	l.TotalPrice = b.TotalPrice
	l.BasePrice = b.BasePrice
	l.BaseSubTotal = b.BaseSubTotal
	l.BaseDiscountAmount = b.BaseDiscountAmount
	l.BaseNetAmount = b.BaseNetAmount
	l.BaseTaxAmount = b.BaseTaxAmount
	l.BaseTotalPrice = b.BaseTotalPrice
	return nil
}
