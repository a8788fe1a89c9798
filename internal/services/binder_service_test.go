package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/tcg-binder/internal/database"
	"github.com/codyseavey/tcg-binder/internal/models"
)

type binderServiceFixture struct {
	svc    *BinderService
	lookup *fakeLookup
	clock  time.Time
}

func newBinderServiceFixture(t *testing.T) *binderServiceFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Open(dsn)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	lookup := newFakeLookup()
	enricher := NewPriceEnricher(NewPriceQuoteService(lookup, nil), 0)
	enricher.wait = func(context.Context, time.Duration) error { return nil }

	f := &binderServiceFixture{
		svc:    NewBinderService(db, enricher),
		lookup: lookup,
		clock:  time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	// Each recalculation sees a distinct timestamp
	f.svc.now = func() time.Time {
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	}
	return f
}

func (f *binderServiceFixture) createBinder(t *testing.T, name string) *models.Binder {
	t.Helper()
	binder, err := f.svc.CreateBinder(context.Background(), name, []string{"test"}, 0)
	require.NoError(t, err)
	return binder
}

func TestBinderServiceCreateGetList(t *testing.T) {
	f := newBinderServiceFixture(t)
	ctx := context.Background()

	created := f.createBinder(t, "Commander Staples")
	assert.True(t, strings.HasPrefix(created.ID, "commander-staples-"))

	loaded, err := f.svc.GetBinder(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Commander Staples", loaded.Name)
	assert.Len(t, loaded.Sheets, 12)
	assert.Len(t, loaded.Sheets[11].Slots, models.SlotsPerSheet)

	f.createBinder(t, "Trades")
	summaries, err := f.svc.ListBinders(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)

	_, err = f.svc.CreateBinder(ctx, "   ", nil, 0)
	assert.ErrorIs(t, err, ErrInvalidBinder)
}

func TestBinderServiceGetUnknownBinder(t *testing.T) {
	f := newBinderServiceFixture(t)
	_, err := f.svc.GetBinder(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBinderNotFound)
}

func TestBinderServiceUpsertVariantRecalculates(t *testing.T) {
	f := newBinderServiceFixture(t)
	ctx := context.Background()
	binder := f.createBinder(t, "Upserts")

	updated, err := f.svc.UpsertVariant(ctx, binder.ID, 0, 4, models.BinderCardVariant{
		SetCode:         "neo",
		CollectorNumber: "1",
		Finish:          "FOIL",
		Quantity:        2,
		Pricing:         models.VariantPricing{CurrentValue: floatPtr(12.5)},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, updated.TotalCards)
	assert.Equal(t, 25.0, updated.TotalValue)
	require.Len(t, updated.ValueHistory, 1)

	variant := updated.Sheets[0].Slots[4].Variants[0]
	assert.NotEmpty(t, variant.ID)
	assert.Equal(t, models.FinishFoil, variant.Finish)
	assert.Equal(t, models.ConditionNearMint, variant.Condition)
	assert.Equal(t, models.AcquisitionOther, variant.Acquisition.Source)
	assert.False(t, variant.Acquisition.AcquiredAt.IsZero())

	// The persisted row matches the returned binder
	persisted, err := f.svc.GetBinder(ctx, binder.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, persisted.TotalCards)
	assert.Equal(t, 25.0, persisted.TotalValue)
	assert.Equal(t, variant.ID, persisted.Sheets[0].Slots[4].Variants[0].ID)
}

func TestBinderServiceUpsertReplacesSamePrinting(t *testing.T) {
	f := newBinderServiceFixture(t)
	ctx := context.Background()
	binder := f.createBinder(t, "Replace")

	first, err := f.svc.UpsertVariant(ctx, binder.ID, 1, 0, models.BinderCardVariant{
		SetCode: "neo", CollectorNumber: "1", Quantity: 1,
		Pricing: models.VariantPricing{CurrentValue: floatPtr(3)},
	})
	require.NoError(t, err)
	originalID := first.Sheets[1].Slots[0].Variants[0].ID

	// Same printing, finish and condition: quantity changes, pricing survives
	second, err := f.svc.UpsertVariant(ctx, binder.ID, 1, 0, models.BinderCardVariant{
		SetCode: "NEO", CollectorNumber: "1", Quantity: 4,
	})
	require.NoError(t, err)
	slot := second.Sheets[1].Slots[0]
	require.Len(t, slot.Variants, 1)
	assert.Equal(t, originalID, slot.Variants[0].ID)
	assert.Equal(t, 4, slot.Variants[0].Quantity)
	assert.Equal(t, 12.0, second.TotalValue)

	// A different condition is a separate holding in the same slot
	third, err := f.svc.UpsertVariant(ctx, binder.ID, 1, 0, models.BinderCardVariant{
		SetCode: "neo", CollectorNumber: "1", Quantity: 1, Condition: models.ConditionPlayed,
	})
	require.NoError(t, err)
	assert.Len(t, third.Sheets[1].Slots[0].Variants, 2)
	assert.Equal(t, 5, third.TotalCards)
	assert.Len(t, third.ValueHistory, 3)
}

func TestBinderServiceUpsertRejectsInvalidInput(t *testing.T) {
	f := newBinderServiceFixture(t)
	ctx := context.Background()
	binder := f.createBinder(t, "Invalid")

	tests := []struct {
		name     string
		sheet    int
		slot     int
		variant  models.BinderCardVariant
		expected error
	}{
		{"slot past end of sheet", 0, 9, models.BinderCardVariant{SetCode: "neo", CollectorNumber: "1"}, ErrSlotOutOfRange},
		{"sheet past end of binder", 12, 0, models.BinderCardVariant{SetCode: "neo", CollectorNumber: "1"}, ErrSlotOutOfRange},
		{"negative sheet", -1, 0, models.BinderCardVariant{SetCode: "neo", CollectorNumber: "1"}, ErrSlotOutOfRange},
		{"missing set code", 0, 0, models.BinderCardVariant{CollectorNumber: "1"}, ErrInvalidVariant},
		{"negative quantity", 0, 0, models.BinderCardVariant{SetCode: "neo", CollectorNumber: "1", Quantity: -1}, ErrInvalidVariant},
		{"unknown condition", 0, 0, models.BinderCardVariant{SetCode: "neo", CollectorNumber: "1", Condition: "MINTY"}, ErrInvalidVariant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpsertVariant(ctx, binder.ID, tt.sheet, tt.slot, tt.variant)
			assert.ErrorIs(t, err, tt.expected)
		})
	}

	// Rejected mutations never reach the database
	persisted, err := f.svc.GetBinder(ctx, binder.ID)
	require.NoError(t, err)
	assert.Empty(t, persisted.ValueHistory)
	assert.Empty(t, persisted.Variants())

	_, err = f.svc.UpsertVariant(ctx, "missing", 0, 0, models.BinderCardVariant{SetCode: "neo", CollectorNumber: "1"})
	assert.ErrorIs(t, err, ErrBinderNotFound)
}

func TestBinderServiceRemoveVariant(t *testing.T) {
	f := newBinderServiceFixture(t)
	ctx := context.Background()
	binder := f.createBinder(t, "Remove")

	updated, err := f.svc.UpsertVariant(ctx, binder.ID, 2, 3, models.BinderCardVariant{
		SetCode: "dmu", CollectorNumber: "10", Quantity: 3,
		Pricing: models.VariantPricing{CurrentValue: floatPtr(2)},
	})
	require.NoError(t, err)
	variantID := updated.Sheets[2].Slots[3].Variants[0].ID

	_, err = f.svc.RemoveVariant(ctx, binder.ID, 2, 3, "not-a-variant")
	assert.ErrorIs(t, err, ErrVariantNotFound)

	removed, err := f.svc.RemoveVariant(ctx, binder.ID, 2, 3, variantID)
	require.NoError(t, err)
	assert.Empty(t, removed.Sheets[2].Slots[3].Variants)
	assert.Equal(t, 0, removed.TotalCards)
	assert.Equal(t, 0.0, removed.TotalValue)
	assert.Len(t, removed.ValueHistory, 2)

	_, err = f.svc.RemoveVariant(ctx, binder.ID, 2, 30, variantID)
	assert.ErrorIs(t, err, ErrSlotOutOfRange)
}

func TestBinderServiceRefreshPrices(t *testing.T) {
	f := newBinderServiceFixture(t)
	ctx := context.Background()
	binder := f.createBinder(t, "Refresh")

	f.lookup.printings["NEO:1"] = &ScryfallPrinting{
		Name:   "Ancestral Katana",
		Prices: map[string]*string{"usd": strPtr("0.50"), "usd_foil": strPtr("4.00")},
	}
	f.lookup.errs["DMU:10"] = errors.New("scryfall API returned status 500")

	placements := []struct {
		sheet, slot int
		variant     models.BinderCardVariant
	}{
		{0, 0, models.BinderCardVariant{SetCode: "neo", CollectorNumber: "1", Quantity: 2}},
		{0, 1, models.BinderCardVariant{SetCode: "neo", CollectorNumber: "1", Finish: models.FinishFoil, Quantity: 1}},
		{0, 2, models.BinderCardVariant{SetCode: "dmu", CollectorNumber: "10", Quantity: 1,
			Pricing: models.VariantPricing{CurrentValue: floatPtr(6)}}},
		{1, 0, models.BinderCardVariant{SetCode: "neo", CollectorNumber: "1", Quantity: 1, Condition: models.ConditionPlayed}},
	}
	for _, p := range placements {
		_, err := f.svc.UpsertVariant(ctx, binder.ID, p.sheet, p.slot, p.variant)
		require.NoError(t, err)
	}

	refreshed, quotes, err := f.svc.RefreshPrices(ctx, binder.ID)
	require.NoError(t, err)

	assert.Len(t, quotes, 3)
	assert.Equal(t, 3, f.lookup.Calls(), "NEO:1 nonfoil is shared by two variants and fetched once")

	nonfoil := refreshed.Sheets[0].Slots[0].Variants[0]
	require.NotNil(t, nonfoil.Pricing.CurrentValue)
	assert.Equal(t, 0.50, *nonfoil.Pricing.CurrentValue)
	assert.Equal(t, "Ancestral Katana", nonfoil.Name)
	assert.NotNil(t, nonfoil.Pricing.LastUpdated)

	foil := refreshed.Sheets[0].Slots[1].Variants[0]
	require.NotNil(t, foil.Pricing.CurrentValue)
	assert.Equal(t, 4.00, *foil.Pricing.CurrentValue)

	failed := refreshed.Sheets[0].Slots[2].Variants[0]
	require.NotNil(t, failed.Pricing.CurrentValue, "a failed quote keeps the last known value")
	assert.Equal(t, 6.0, *failed.Pricing.CurrentValue)
	assert.Contains(t, failed.Pricing.LastError, "500")

	// 2 x 0.50 + 4.00 + 6.00 + 0.50 = 11.50, rounded to whole units
	assert.Equal(t, 12.0, refreshed.TotalValue)
	assert.Equal(t, 5, refreshed.TotalCards)
}

func TestBinderServiceDeleteBinder(t *testing.T) {
	f := newBinderServiceFixture(t)
	ctx := context.Background()
	binder := f.createBinder(t, "Delete")

	require.NoError(t, f.svc.DeleteBinder(ctx, binder.ID))
	assert.ErrorIs(t, f.svc.DeleteBinder(ctx, binder.ID), ErrBinderNotFound)

	_, err := f.svc.GetBinder(ctx, binder.ID)
	assert.ErrorIs(t, err, ErrBinderNotFound)
}

func TestBinderServiceStaleBinderIDs(t *testing.T) {
	f := newBinderServiceFixture(t)
	ctx := context.Background()

	first := f.createBinder(t, "First")
	time.Sleep(5 * time.Millisecond)
	second := f.createBinder(t, "Second")
	time.Sleep(5 * time.Millisecond)

	// Touching the first binder makes the second the stalest
	_, err := f.svc.UpsertVariant(ctx, first.ID, 0, 0, models.BinderCardVariant{SetCode: "neo", CollectorNumber: "1"})
	require.NoError(t, err)

	ids, err := f.svc.StaleBinderIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID, first.ID}, ids)

	ids, err = f.svc.StaleBinderIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, ids)
}

func TestApplyQuotes(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	binder := CreateEmptyBinder("Apply", nil)
	binder.Sheets[0].Slots[0].Variants = []models.BinderCardVariant{
		{ID: "priced", SetCode: "neo", CollectorNumber: "1", Quantity: 1},
		{ID: "missing", SetCode: "neo", CollectorNumber: "2", Quantity: 1, Pricing: models.VariantPricing{CurrentValue: floatPtr(9)}},
		{ID: "cancelled", SetCode: "neo", CollectorNumber: "3", Quantity: 1},
		{ID: "unquoted", SetCode: "neo", CollectorNumber: "4", Quantity: 1},
	}

	price := 1.25
	name := "Kami of Bamboo Groves"
	quotes := map[models.PriceQuoteKey]models.PriceQuoteResult{
		models.NewPriceQuoteKey("neo", "1", ""): {Price: &price, Name: &name, Status: models.QuoteStatusPriced},
		models.NewPriceQuoteKey("neo", "2", ""): {Error: "No card found for NEO #2", Status: models.QuoteStatusNotFound},
		models.NewPriceQuoteKey("neo", "3", ""): {Error: "cancelled", Status: models.QuoteStatusCancelled},
	}

	priced := ApplyQuotes(&binder, quotes, now)
	assert.Equal(t, 1, priced)

	variants := binder.Sheets[0].Slots[0].Variants
	assert.Equal(t, 1.25, *variants[0].Pricing.CurrentValue)
	assert.Equal(t, name, variants[0].Name)
	assert.Equal(t, now, *variants[0].Pricing.LastUpdated)
	assert.Empty(t, variants[0].Pricing.LastError)

	assert.Equal(t, 9.0, *variants[1].Pricing.CurrentValue)
	assert.Equal(t, "No card found for NEO #2", variants[1].Pricing.LastError)
	assert.Equal(t, now, *variants[1].Pricing.LastUpdated)

	assert.Nil(t, variants[2].Pricing.LastUpdated)
	assert.Nil(t, variants[3].Pricing.LastUpdated)
}
