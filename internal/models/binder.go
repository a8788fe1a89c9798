package models

import (
	"math"
	"time"
)

const (
	// SlotsPerSheet is the fixed number of pockets on one binder page (3x3)
	SlotsPerSheet = 9
	// DefaultBinderCapacity is the total slot budget of a new binder
	DefaultBinderCapacity = 100
	// MaxValueHistoryPoints caps the rolling valuation history
	MaxValueHistoryPoints = 48
)

type Condition string

const (
	ConditionMint      Condition = "M"
	ConditionNearMint  Condition = "NM"
	ConditionExcellent Condition = "EX"
	ConditionGood      Condition = "GD"
	ConditionLightPlay Condition = "LP"
	ConditionPlayed    Condition = "PL"
	ConditionPoor      Condition = "PR"
)

// AllConditions returns the condition scale ordered from mint to poor
func AllConditions() []Condition {
	return []Condition{
		ConditionMint,
		ConditionNearMint,
		ConditionExcellent,
		ConditionGood,
		ConditionLightPlay,
		ConditionPlayed,
		ConditionPoor,
	}
}

// Rank returns the position of the condition on the mint-to-poor scale (0 = mint).
// Unknown conditions rank as near mint, the default for new holdings.
func (c Condition) Rank() int {
	for i, cond := range AllConditions() {
		if cond == c {
			return i
		}
	}
	return 1
}

// IsValid reports whether c is one of the known conditions
func (c Condition) IsValid() bool {
	for _, cond := range AllConditions() {
		if cond == c {
			return true
		}
	}
	return false
}

// AcquisitionSource describes how a holding entered the collection
type AcquisitionSource string

const (
	AcquisitionPack     AcquisitionSource = "pack"
	AcquisitionTrade    AcquisitionSource = "trade"
	AcquisitionPurchase AcquisitionSource = "purchase"
	AcquisitionGift     AcquisitionSource = "gift"
	AcquisitionOther    AcquisitionSource = "other"
)

// ScanSource describes where a scanned image came from
type ScanSource string

const (
	ScanSourceCamera ScanSource = "camera"
	ScanSourceUpload ScanSource = "upload"
	ScanSourceImport ScanSource = "import"
)

type Acquisition struct {
	Source     AcquisitionSource `json:"source"`
	AcquiredAt time.Time         `json:"acquired_at"`
	CostBasis  *float64          `json:"cost_basis,omitempty"`
}

// VariantPricing is the last known valuation of a held printing.
// LastError carries the most recent quote failure for display; it is cleared on a successful quote.
type VariantPricing struct {
	LastUpdated  *time.Time `json:"last_updated,omitempty"`
	CurrentValue *float64   `json:"current_value,omitempty"`
	Change24h    *float64   `json:"change_24h,omitempty"`
	Change7d     *float64   `json:"change_7d,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

type ScanRecord struct {
	ImageRef   string     `json:"image_ref"`
	CapturedAt time.Time  `json:"captured_at"`
	Source     ScanSource `json:"source"`
}

// BinderCardVariant is one concrete printing held by the user
type BinderCardVariant struct {
	ID              string         `json:"id"`
	PrintingID      string         `json:"printing_id"`
	Name            string         `json:"name"`
	SetCode         string         `json:"set_code"`
	CollectorNumber string         `json:"collector_number"`
	Finish          Finish         `json:"finish"`
	Quantity        int            `json:"quantity"`
	Condition       Condition      `json:"condition"`
	Acquisition     Acquisition    `json:"acquisition"`
	Pricing         VariantPricing `json:"pricing"`
	Scan            *ScanRecord    `json:"scan,omitempty"`
}

// EffectiveQuantity floors negative quantities at zero
func (v BinderCardVariant) EffectiveQuantity() int {
	if v.Quantity < 0 {
		return 0
	}
	return v.Quantity
}

// UnitValue returns the current per-copy value, treating missing or negative values as zero
func (v BinderCardVariant) UnitValue() float64 {
	if v.Pricing.CurrentValue == nil {
		return 0
	}
	value := *v.Pricing.CurrentValue
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}

// VariantValue returns quantity x unit value at full precision
func VariantValue(v BinderCardVariant) float64 {
	return float64(v.EffectiveQuantity()) * v.UnitValue()
}

// PricingRequest builds the quote request for this variant's printing and finish
func (v BinderCardVariant) PricingRequest() PricingRequest {
	return PricingRequest{
		SetCode:         v.SetCode,
		CollectorNumber: v.CollectorNumber,
		Finish:          v.Finish,
	}
}

// BinderSlot is one pocket on a sheet. Several printings or finishes may share a pocket.
type BinderSlot struct {
	Index    int                 `json:"index"`
	Variants []BinderCardVariant `json:"variants"`
}

// SlotQuantity sums the held copies across every variant in the slot
func SlotQuantity(slot BinderSlot) int {
	total := 0
	for _, v := range slot.Variants {
		total += v.EffectiveQuantity()
	}
	return total
}

// SlotValue sums quantity x current value across every variant in the slot
func SlotValue(slot BinderSlot) float64 {
	total := 0.0
	for _, v := range slot.Variants {
		total += VariantValue(v)
	}
	return total
}

// BinderSheet is one page of exactly SlotsPerSheet slots indexed 0..8
type BinderSheet struct {
	Index int          `json:"index"`
	Slots []BinderSlot `json:"slots"`
}

// BinderValuePoint is one entry of a binder's rolling valuation history
type BinderValuePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Binder owns an ordered set of sheets plus derived totals.
// TotalCards, TotalValue, ValueHistory and HourlyChange are only ever written by a full recalculation.
type Binder struct {
	ID           string             `json:"id" gorm:"primaryKey"`
	Name         string             `json:"name" gorm:"not null"`
	FocusTags    []string           `json:"focus_tags" gorm:"serializer:json"`
	Capacity     int                `json:"capacity" gorm:"not null;default:100"`
	Sheets       []BinderSheet      `json:"sheets" gorm:"serializer:json"`
	TotalCards   int                `json:"total_cards"`
	TotalValue   float64            `json:"total_value"`
	ValueHistory []BinderValuePoint `json:"value_history" gorm:"serializer:json"`
	HourlyChange float64            `json:"hourly_change"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" gorm:"index"`
}

// SheetCount returns the number of sheets needed for a slot budget
func SheetCount(capacity int) int {
	if capacity <= 0 {
		capacity = DefaultBinderCapacity
	}
	return (capacity + SlotsPerSheet - 1) / SlotsPerSheet
}

// Slot returns a pointer to the addressed slot, or nil if the address is out of range
func (b *Binder) Slot(sheetIndex, slotIndex int) *BinderSlot {
	if sheetIndex < 0 || sheetIndex >= len(b.Sheets) {
		return nil
	}
	sheet := &b.Sheets[sheetIndex]
	if slotIndex < 0 || slotIndex >= len(sheet.Slots) {
		return nil
	}
	return &sheet.Slots[slotIndex]
}

// Variants returns every variant in the binder in sheet/slot order
func (b *Binder) Variants() []BinderCardVariant {
	var variants []BinderCardVariant
	for _, sheet := range b.Sheets {
		for _, slot := range sheet.Slots {
			variants = append(variants, slot.Variants...)
		}
	}
	return variants
}

// LatestValuePoint returns the most recent history entry, if any
func (b *Binder) LatestValuePoint() (BinderValuePoint, bool) {
	if len(b.ValueHistory) == 0 {
		return BinderValuePoint{}, false
	}
	return b.ValueHistory[len(b.ValueHistory)-1], true
}

// Clone returns a deep copy so derived binders never share slices with their source
func (b Binder) Clone() Binder {
	out := b
	if b.FocusTags != nil {
		out.FocusTags = append([]string{}, b.FocusTags...)
	}
	if b.ValueHistory != nil {
		out.ValueHistory = append([]BinderValuePoint{}, b.ValueHistory...)
	}
	out.Sheets = make([]BinderSheet, len(b.Sheets))
	for i, sheet := range b.Sheets {
		out.Sheets[i] = BinderSheet{Index: sheet.Index, Slots: make([]BinderSlot, len(sheet.Slots))}
		for j, slot := range sheet.Slots {
			out.Sheets[i].Slots[j] = BinderSlot{
				Index:    slot.Index,
				Variants: append([]BinderCardVariant{}, slot.Variants...),
			}
		}
	}
	return out
}

// BinderSummary is the list view of a binder without its sheets
type BinderSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	FocusTags    []string  `json:"focus_tags"`
	TotalCards   int       `json:"total_cards"`
	TotalValue   float64   `json:"total_value"`
	HourlyChange float64   `json:"hourly_change"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summary returns the list view of the binder
func (b *Binder) Summary() BinderSummary {
	return BinderSummary{
		ID:           b.ID,
		Name:         b.Name,
		FocusTags:    b.FocusTags,
		TotalCards:   b.TotalCards,
		TotalValue:   b.TotalValue,
		HourlyChange: b.HourlyChange,
		UpdatedAt:    b.UpdatedAt,
	}
}

type CreateBinderRequest struct {
	Name      string   `json:"name" binding:"required"`
	FocusTags []string `json:"focus_tags"`
	Capacity  int      `json:"capacity"`
}

// UpsertVariantRequest adds or replaces one variant in a slot.
// A variant with the same ID, or the same printing+finish+condition, is replaced.
type UpsertVariantRequest struct {
	ID               string            `json:"id"`
	PrintingID       string            `json:"printing_id"`
	Name             string            `json:"name"`
	SetCode          string            `json:"set_code" binding:"required"`
	CollectorNumber  string            `json:"collector_number" binding:"required"`
	Finish           Finish            `json:"finish"`
	Quantity         *int              `json:"quantity"` // omitted means 1; 0 records a tracked-but-empty holding
	Condition        Condition         `json:"condition"`
	AcquisitionSrc   AcquisitionSource `json:"acquisition_source"`
	CostBasis        *float64          `json:"cost_basis"`
	ScanSource       ScanSource        `json:"scan_source"`
	ScannedImageData string            `json:"scanned_image_data,omitempty"` // base64 encoded
}

// EmptySheet returns a sheet of SlotsPerSheet empty slots indexed 0..8
func EmptySheet(index int) BinderSheet {
	slots := make([]BinderSlot, SlotsPerSheet)
	for j := range slots {
		slots[j] = BinderSlot{Index: j, Variants: []BinderCardVariant{}}
	}
	return BinderSheet{Index: index, Slots: slots}
}

// EnsureScaffold repairs the sheet/slot layout in place: the sheet count matches the capacity,
// every sheet has exactly SlotsPerSheet slots and indices are contiguous from zero.
// Sheets beyond the capacity are kept so no holding is dropped. It reports whether anything changed.
func (b *Binder) EnsureScaffold() bool {
	if b.Capacity <= 0 {
		b.Capacity = DefaultBinderCapacity
	}
	changed := false
	want := SheetCount(b.Capacity)

	if len(b.Sheets) < want {
		for i := len(b.Sheets); i < want; i++ {
			b.Sheets = append(b.Sheets, EmptySheet(i))
		}
		changed = true
	}

	for i := range b.Sheets {
		sheet := &b.Sheets[i]
		if sheet.Index != i {
			sheet.Index = i
			changed = true
		}
		if len(sheet.Slots) != SlotsPerSheet {
			slots := EmptySheet(i).Slots
			for j := 0; j < len(sheet.Slots) && j < SlotsPerSheet; j++ {
				slots[j].Variants = sheet.Slots[j].Variants
			}
			sheet.Slots = slots
			changed = true
		}
		for j := range sheet.Slots {
			if sheet.Slots[j].Index != j {
				sheet.Slots[j].Index = j
				changed = true
			}
			if sheet.Slots[j].Variants == nil {
				sheet.Slots[j].Variants = []BinderCardVariant{}
			}
		}
	}
	return changed
}
