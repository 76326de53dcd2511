/*
ledger.go - Draft/frozen fact ledger for one tax case

PURPOSE:
  A Ledger collects every fact about a single disposal - dates, prices,
  costs, residency - under fixed field names, and enforces the two-phase
  lifecycle that separates data collection from calculation:

    Draft:  many writers, last-write-wins per field, facts may be estimates
    Frozen: permanently read-only, every required fact confirmed

  Calculation must never run against facts that could still change, so
  Freeze() is the consistency boundary: it validates the structure once
  (dates ordered, amounts non-negative, required facts confirmed) and the
  ledger is immutable from then on.

CRITICAL INVARIANTS:
  1. Freeze succeeds only when acquisition_date, acquisition_price,
     disposal_date, disposal_price are all present AND confirmed
  2. A frozen ledger rejects every mutation, including a second Freeze
  3. Corrections after freeze happen by building a new ledger version,
     never by reaching through the frozen one

CONCURRENCY:
  The ledger performs no locking. Before freeze, concurrent producers must
  be serialized by the caller (one writer at a time per ledger). After
  freeze it is safe to share read-only across any number of calculations.

SEE ALSO:
  - fact.go: The Fact type stored in each slot
  - errors.go: Validation and state errors raised here
*/
package fact

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// FIELD NAMES
// =============================================================================

const (
	FieldAcquisitionDate      = "acquisition_date"
	FieldAcquisitionPrice     = "acquisition_price"
	FieldDisposalDate         = "disposal_date"
	FieldDisposalPrice        = "disposal_price"
	FieldAcquisitionCost      = "acquisition_cost"
	FieldDisposalCost         = "disposal_cost"
	FieldImprovementCost      = "improvement_cost"
	FieldIsPrimaryResidence   = "is_primary_residence"
	FieldResidencePeriodYears = "residence_period_years"
	FieldHouseCount           = "house_count"
	FieldAssetType            = "asset_type"
)

// RequiredFields must be present and confirmed before Freeze succeeds.
var RequiredFields = []string{
	FieldAcquisitionDate,
	FieldAcquisitionPrice,
	FieldDisposalDate,
	FieldDisposalPrice,
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is the named fact collection for one tax case.
// Mutable until Freeze, permanently immutable after.
type Ledger struct {
	TransactionID string
	CreatedBy     string
	CreatedAt     time.Time
	Version       int

	AcquisitionDate  *Fact[Date]
	AcquisitionPrice *Fact[decimal.Decimal]
	DisposalDate     *Fact[Date]
	DisposalPrice    *Fact[decimal.Decimal]

	AcquisitionCost *Fact[decimal.Decimal]
	DisposalCost    *Fact[decimal.Decimal]
	ImprovementCost *Fact[decimal.Decimal]

	IsPrimaryResidence   *Fact[bool]
	ResidencePeriodYears *Fact[int]
	HouseCount           *Fact[int]
	AssetType            *Fact[string]

	frozen bool
}

// Create builds a draft ledger from a field-name-to-value map. Values that
// are already Facts are validated and stored as-is; bare values are wrapped
// as source=user_input, confidence=0.9, unconfirmed. The 0.9 auto-wrap is
// deliberate: unverified input must not silently arrive at full confidence.
func Create(fields map[string]any, createdBy string) (*Ledger, error) {
	l := &Ledger{
		TransactionID: uuid.NewString(),
		CreatedBy:     createdBy,
		CreatedAt:     time.Now().UTC(),
		Version:       1,
	}
	for name, value := range fields {
		if err := l.set(name, value, createdBy); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// IsFrozen reports whether the ledger has been frozen.
func (l *Ledger) IsFrozen() bool { return l.frozen }

// UpdateField replaces one fact slot. Last write wins while the ledger is
// a draft; any write after Freeze fails.
func (l *Ledger) UpdateField(name string, value any) error {
	if l.frozen {
		return &FieldError{Field: name, Err: ErrLedgerFrozen}
	}
	return l.set(name, value, l.CreatedBy)
}

// ConfirmField confirms the fact in one slot, recording who signed off.
func (l *Ledger) ConfirmField(name, confirmedBy, notes string) error {
	if l.frozen {
		return &FieldError{Field: name, Err: ErrLedgerFrozen}
	}
	switch name {
	case FieldAcquisitionDate:
		return confirmSlot(name, l.AcquisitionDate, confirmedBy, notes)
	case FieldDisposalDate:
		return confirmSlot(name, l.DisposalDate, confirmedBy, notes)
	case FieldAcquisitionPrice:
		return confirmSlot(name, l.AcquisitionPrice, confirmedBy, notes)
	case FieldDisposalPrice:
		return confirmSlot(name, l.DisposalPrice, confirmedBy, notes)
	case FieldAcquisitionCost:
		return confirmSlot(name, l.AcquisitionCost, confirmedBy, notes)
	case FieldDisposalCost:
		return confirmSlot(name, l.DisposalCost, confirmedBy, notes)
	case FieldImprovementCost:
		return confirmSlot(name, l.ImprovementCost, confirmedBy, notes)
	case FieldIsPrimaryResidence:
		return confirmSlot(name, l.IsPrimaryResidence, confirmedBy, notes)
	case FieldResidencePeriodYears:
		return confirmSlot(name, l.ResidencePeriodYears, confirmedBy, notes)
	case FieldHouseCount:
		return confirmSlot(name, l.HouseCount, confirmedBy, notes)
	case FieldAssetType:
		return confirmSlot(name, l.AssetType, confirmedBy, notes)
	default:
		return &FieldError{Field: name, Err: ErrUnknownField}
	}
}

func confirmSlot[T any](name string, slot *Fact[T], confirmedBy, notes string) error {
	if slot == nil {
		return &FieldError{Field: name, Err: ErrMissingRequiredFact}
	}
	*slot = slot.Confirm(confirmedBy, notes)
	return nil
}

// ConfirmAll confirms every present fact in one administrative step.
// This is the sanctioned bulk-confirm operation for workflows where a
// reviewer has verified the whole case at once; it only exists pre-freeze.
func (l *Ledger) ConfirmAll(confirmedBy string) error {
	if l.frozen {
		return ErrLedgerFrozen
	}
	for _, m := range l.metas() {
		if !m.present {
			continue
		}
		if err := l.ConfirmField(m.name, confirmedBy, ""); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// FREEZE - The draft -> frozen transition
// =============================================================================

// Freeze validates the ledger and makes it permanently read-only.
// Requirements, checked in order:
//   - not already frozen
//   - all required fields present
//   - all required fields confirmed
//   - disposal date on or after acquisition date
//   - all money and period fields non-negative
func (l *Ledger) Freeze() error {
	if l.frozen {
		return ErrAlreadyFrozen
	}
	for _, name := range RequiredFields {
		m := l.meta(name)
		if !m.present {
			return &FieldError{Field: name, Err: ErrMissingRequiredFact}
		}
		if !m.confirmed {
			return &FieldError{Field: name, Err: ErrUnconfirmedFact}
		}
	}
	if err := l.validateStructure(); err != nil {
		return err
	}
	l.frozen = true
	return nil
}

func (l *Ledger) validateStructure() error {
	if l.AcquisitionDate != nil && l.DisposalDate != nil {
		if l.DisposalDate.Value.Before(l.AcquisitionDate.Value) {
			return ErrDisposalBeforeAcquisition
		}
	}
	moneySlots := []struct {
		name string
		f    *Fact[decimal.Decimal]
	}{
		{FieldAcquisitionPrice, l.AcquisitionPrice},
		{FieldDisposalPrice, l.DisposalPrice},
		{FieldAcquisitionCost, l.AcquisitionCost},
		{FieldDisposalCost, l.DisposalCost},
		{FieldImprovementCost, l.ImprovementCost},
	}
	for _, s := range moneySlots {
		if s.f != nil && s.f.Value.IsNegative() {
			return &FieldError{Field: s.name, Err: ErrNegativeAmount}
		}
	}
	if l.ResidencePeriodYears != nil && l.ResidencePeriodYears.Value < 0 {
		return &FieldError{Field: FieldResidencePeriodYears, Err: ErrNegativeAmount}
	}
	if l.HouseCount != nil && l.HouseCount.Value < 0 {
		return &FieldError{Field: FieldHouseCount, Err: ErrNegativeAmount}
	}
	return nil
}

// =============================================================================
// DERIVED QUANTITIES - Computed, never stored
// =============================================================================

// CapitalGain returns disposal price minus acquisition price and all present
// costs. ok is false when either price is absent.
func (l *Ledger) CapitalGain() (decimal.Decimal, bool) {
	if l.DisposalPrice == nil || l.AcquisitionPrice == nil {
		return decimal.Zero, false
	}
	total := l.AcquisitionPrice.Value
	for _, c := range []*Fact[decimal.Decimal]{l.AcquisitionCost, l.DisposalCost, l.ImprovementCost} {
		if c != nil {
			total = total.Add(c.Value)
		}
	}
	return l.DisposalPrice.Value.Sub(total), true
}

// HoldingPeriodYears returns full 365-day years between acquisition and
// disposal. ok is false when either date is absent.
func (l *Ledger) HoldingPeriodYears() (int, bool) {
	if l.AcquisitionDate == nil || l.DisposalDate == nil {
		return 0, false
	}
	return YearsBetween(l.AcquisitionDate.Value, l.DisposalDate.Value), true
}

// =============================================================================
// PROVENANCE QUERIES
// =============================================================================

// ConfidenceSummary maps each present field to its confidence score.
func (l *Ledger) ConfidenceSummary() map[string]float64 {
	out := make(map[string]float64)
	for _, m := range l.metas() {
		if m.present {
			out[m.name] = m.confidence
		}
	}
	return out
}

// UnconfirmedFields lists present fields still awaiting confirmation.
func (l *Ledger) UnconfirmedFields() []string {
	var out []string
	for _, m := range l.metas() {
		if m.present && !m.confirmed {
			out = append(out, m.name)
		}
	}
	return out
}

// =============================================================================
// VERSIONING
// =============================================================================

// NewVersion derives a higher-versioned draft ledger with the given field
// changes applied. Only drafts can be versioned forward; a frozen ledger is
// a closed record, so corrections start from the pre-freeze state.
func (l *Ledger) NewVersion(changes map[string]any) (*Ledger, error) {
	if l.frozen {
		return nil, ErrLedgerFrozen
	}
	next := l.clone()
	next.TransactionID = uuid.NewString()
	next.Version = l.Version + 1
	next.CreatedAt = time.Now().UTC()
	for name, value := range changes {
		if err := next.set(name, value, l.CreatedBy); err != nil {
			return nil, err
		}
	}
	return next, nil
}

func (l *Ledger) clone() *Ledger {
	out := &Ledger{
		TransactionID: l.TransactionID,
		CreatedBy:     l.CreatedBy,
		CreatedAt:     l.CreatedAt,
		Version:       l.Version,
	}
	out.AcquisitionDate = copyFact(l.AcquisitionDate)
	out.AcquisitionPrice = copyFact(l.AcquisitionPrice)
	out.DisposalDate = copyFact(l.DisposalDate)
	out.DisposalPrice = copyFact(l.DisposalPrice)
	out.AcquisitionCost = copyFact(l.AcquisitionCost)
	out.DisposalCost = copyFact(l.DisposalCost)
	out.ImprovementCost = copyFact(l.ImprovementCost)
	out.IsPrimaryResidence = copyFact(l.IsPrimaryResidence)
	out.ResidencePeriodYears = copyFact(l.ResidencePeriodYears)
	out.HouseCount = copyFact(l.HouseCount)
	out.AssetType = copyFact(l.AssetType)
	return out
}

func copyFact[T any](f *Fact[T]) *Fact[T] {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

// =============================================================================
// FIELD SETTING AND COERCION
// =============================================================================

func (l *Ledger) set(name string, value any, enteredBy string) error {
	switch name {
	case FieldAcquisitionDate:
		return setSlot(&l.AcquisitionDate, name, value, enteredBy, coerceDate)
	case FieldDisposalDate:
		return setSlot(&l.DisposalDate, name, value, enteredBy, coerceDate)
	case FieldAcquisitionPrice:
		return setSlot(&l.AcquisitionPrice, name, value, enteredBy, coerceMoney)
	case FieldDisposalPrice:
		return setSlot(&l.DisposalPrice, name, value, enteredBy, coerceMoney)
	case FieldAcquisitionCost:
		return setSlot(&l.AcquisitionCost, name, value, enteredBy, coerceMoney)
	case FieldDisposalCost:
		return setSlot(&l.DisposalCost, name, value, enteredBy, coerceMoney)
	case FieldImprovementCost:
		return setSlot(&l.ImprovementCost, name, value, enteredBy, coerceMoney)
	case FieldIsPrimaryResidence:
		return setSlot(&l.IsPrimaryResidence, name, value, enteredBy, coerceBool)
	case FieldResidencePeriodYears:
		return setSlot(&l.ResidencePeriodYears, name, value, enteredBy, coerceInt)
	case FieldHouseCount:
		return setSlot(&l.HouseCount, name, value, enteredBy, coerceInt)
	case FieldAssetType:
		return setSlot(&l.AssetType, name, value, enteredBy, coerceString)
	default:
		return &FieldError{Field: name, Err: ErrUnknownField}
	}
}

// setSlot stores either a caller-supplied Fact (validated) or a bare value
// auto-wrapped as unconfirmed user input at confidence 0.9.
func setSlot[T any](slot **Fact[T], name string, value any, enteredBy string, coerce func(any) (T, error)) error {
	if f, ok := value.(Fact[T]); ok {
		if err := f.Validate(); err != nil {
			return &FieldError{Field: name, Err: err}
		}
		*slot = &f
		return nil
	}
	if f, ok := value.(*Fact[T]); ok {
		if err := f.Validate(); err != nil {
			return &FieldError{Field: name, Err: err}
		}
		c := *f
		*slot = &c
		return nil
	}
	v, err := coerce(value)
	if err != nil {
		return &FieldError{Field: name, Err: err}
	}
	f := Fact[T]{
		Value:      v,
		Source:     SourceUserInput,
		Confidence: 0.9,
		EnteredBy:  enteredBy,
		EnteredAt:  time.Now().UTC(),
	}
	*slot = &f
	return nil
}

func coerceMoney(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid amount %q: %w", x, err)
		}
		return d, nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	default:
		return decimal.Zero, fmt.Errorf("cannot use %T as a monetary amount", v)
	}
}

func coerceDate(v any) (Date, error) {
	switch x := v.(type) {
	case Date:
		return x, nil
	case time.Time:
		return Date{Time: x}, nil
	case string:
		return ParseDate(x)
	default:
		return Date{}, fmt.Errorf("cannot use %T as a date", v)
	}
}

func coerceBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return false, fmt.Errorf("invalid boolean %q: %w", x, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("cannot use %T as a boolean", v)
	}
}

func coerceInt(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		return int(x), nil
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q: %w", x, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("cannot use %T as an integer", v)
	}
}

func coerceString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("cannot use %T as a string", v)
}

// =============================================================================
// FIELD METADATA - Shared view for provenance queries and snapshots
// =============================================================================

type fieldMeta struct {
	name       string
	present    bool
	confidence float64
	confirmed  bool
	snap       FactSnapshot
}

func (l *Ledger) meta(name string) fieldMeta {
	for _, m := range l.metas() {
		if m.name == name {
			return m
		}
	}
	return fieldMeta{name: name}
}

func (l *Ledger) metas() []fieldMeta {
	return []fieldMeta{
		metaOf(FieldAcquisitionDate, kindDate, l.AcquisitionDate, Date.String),
		metaOf(FieldAcquisitionPrice, kindMoney, l.AcquisitionPrice, decimal.Decimal.String),
		metaOf(FieldDisposalDate, kindDate, l.DisposalDate, Date.String),
		metaOf(FieldDisposalPrice, kindMoney, l.DisposalPrice, decimal.Decimal.String),
		metaOf(FieldAcquisitionCost, kindMoney, l.AcquisitionCost, decimal.Decimal.String),
		metaOf(FieldDisposalCost, kindMoney, l.DisposalCost, decimal.Decimal.String),
		metaOf(FieldImprovementCost, kindMoney, l.ImprovementCost, decimal.Decimal.String),
		metaOf(FieldIsPrimaryResidence, kindBool, l.IsPrimaryResidence, strconv.FormatBool),
		metaOf(FieldResidencePeriodYears, kindInt, l.ResidencePeriodYears, strconv.Itoa),
		metaOf(FieldHouseCount, kindInt, l.HouseCount, strconv.Itoa),
		metaOf(FieldAssetType, kindString, l.AssetType, func(s string) string { return s }),
	}
}

func metaOf[T any](name, kind string, f *Fact[T], render func(T) string) fieldMeta {
	if f == nil {
		return fieldMeta{name: name}
	}
	return fieldMeta{
		name:       name,
		present:    true,
		confidence: f.Confidence,
		confirmed:  f.IsConfirmed,
		snap: FactSnapshot{
			Field:          name,
			Kind:           kind,
			Value:          render(f.Value),
			Source:         string(f.Source),
			Confidence:     f.Confidence,
			IsConfirmed:    f.IsConfirmed,
			EnteredBy:      f.EnteredBy,
			EnteredAt:      f.EnteredAt,
			Notes:          f.Notes,
			Reference:      f.Reference,
			RuleVersion:    f.RuleVersion,
			ReasoningTrace: f.ReasoningTrace,
		},
	}
}

func (l *Ledger) String() string {
	gain := "?"
	if g, ok := l.CapitalGain(); ok {
		gain = g.String()
	}
	state := "draft"
	if l.frozen {
		state = "frozen"
	}
	return fmt.Sprintf("Ledger(id=%.8s, v%d, %s, gain=%s)", l.TransactionID, l.Version, state, gain)
}
