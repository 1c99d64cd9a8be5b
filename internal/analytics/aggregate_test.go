package analytics

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

func intPtr(n int) *int { return &n }

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func tx(id, product string, dir domain.Direction, date string, qty int, total string) domain.Transaction {
	return domain.Transaction{
		ID:            id,
		ProductID:     product,
		ProductName:   "Product " + product,
		InventoryCode: "INV-" + product,
		Quantity:      intPtr(qty),
		TotalPrice:    dec(total),
		Date:          date,
		Direction:     dir,
	}
}

func TestWeekOf(t *testing.T) {
	tests := []struct {
		date string
		want WeekKey
	}{
		{"2024-01-17", WeekKey{2024, 3}},
		{"2024-01-01", WeekKey{2024, 1}},
		{"2021-01-03", WeekKey{2020, 53}},
		{"2024-12-30", WeekKey{2025, 1}},
		{"2026-10-16T23:30:00-03:00", WeekKey{2026, 42}},
		{"2024-01-17T10:00:00", WeekKey{2024, 3}},
		{"2024-01-17 10:00:00", WeekKey{2024, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			d, ok := ParseDate(tt.date)
			require.True(t, ok)
			assert.Equal(t, tt.want, WeekOf(d))
		})
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, s := range []string{"", "   ", "17/01/2024", "not a date", "2024-13-01"} {
		_, ok := ParseDate(s)
		assert.False(t, ok, s)
	}
}

func TestBucketByWeek_SingleExit(t *testing.T) {
	txns := []domain.Transaction{tx("1", "p1", domain.DirectionOut, "2024-01-17", 5, "100.00")}

	buckets, skipped := BucketByWeek(txns, domain.DirectionOut, 0)

	require.Len(t, buckets, 1)
	assert.Zero(t, skipped)
	assert.Equal(t, 2024, buckets[0].Year)
	assert.Equal(t, 3, buckets[0].Week)
	assert.Equal(t, int64(5), buckets[0].ExitQuantity)
	assert.True(t, decimal.RequireFromString("100.00").Equal(buckets[0].ExitValue))
	assert.Zero(t, buckets[0].EntryQuantity)
	assert.True(t, buckets[0].EntryValue.IsZero())
}

func TestBucketByWeek_Empty(t *testing.T) {
	buckets, skipped := BucketByWeek(nil, domain.DirectionBoth, 5)

	assert.NotNil(t, buckets)
	assert.Empty(t, buckets)
	assert.Zero(t, skipped)
}

func TestBucketByWeek_SortedAndSplitByDirection(t *testing.T) {
	txns := []domain.Transaction{
		tx("1", "p1", domain.DirectionIn, "2024-02-07", 10, "50.00"),
		tx("2", "p1", domain.DirectionOut, "2024-01-17", 2, "10.00"),
		tx("3", "p2", domain.DirectionIn, "2024-01-18", 3, "7.50"),
		tx("4", "p2", domain.DirectionOut, "2023-12-29", 1, "2.50"),
	}

	buckets, _ := BucketByWeek(txns, domain.DirectionBoth, 0)

	require.Len(t, buckets, 3)
	assert.Equal(t, WeekKey{2023, 52}, WeekKey{buckets[0].Year, buckets[0].Week})
	assert.Equal(t, WeekKey{2024, 3}, WeekKey{buckets[1].Year, buckets[1].Week})
	assert.Equal(t, WeekKey{2024, 6}, WeekKey{buckets[2].Year, buckets[2].Week})

	assert.Equal(t, int64(3), buckets[1].EntryQuantity)
	assert.Equal(t, int64(2), buckets[1].ExitQuantity)
	assert.Equal(t, "7.50", buckets[1].EntryValue.StringFixed(2))
	assert.Equal(t, "10.00", buckets[1].ExitValue.StringFixed(2))
}

func TestBucketByWeek_DirectionFilter(t *testing.T) {
	txns := []domain.Transaction{
		tx("1", "p1", domain.DirectionIn, "2024-01-17", 10, "50.00"),
		tx("2", "p1", domain.DirectionOut, "2024-01-17", 2, "10.00"),
	}

	in, _ := BucketByWeek(txns, domain.DirectionIn, 0)
	require.Len(t, in, 1)
	assert.Equal(t, int64(10), in[0].EntryQuantity)
	assert.Zero(t, in[0].ExitQuantity)

	out, _ := BucketByWeek(txns, domain.DirectionOut, 0)
	require.Len(t, out, 1)
	assert.Zero(t, out[0].EntryQuantity)
	assert.Equal(t, int64(2), out[0].ExitQuantity)
}

func TestBucketByWeek_LimitKeepsMostRecent(t *testing.T) {
	txns := []domain.Transaction{
		tx("1", "p1", domain.DirectionOut, "2024-01-03", 1, "1"),
		tx("2", "p1", domain.DirectionOut, "2024-01-10", 1, "1"),
		tx("3", "p1", domain.DirectionOut, "2024-01-17", 1, "1"),
		tx("4", "p1", domain.DirectionOut, "2024-01-24", 1, "1"),
	}

	buckets, _ := BucketByWeek(txns, domain.DirectionOut, 2)

	require.Len(t, buckets, 2)
	assert.Equal(t, 3, buckets[0].Week)
	assert.Equal(t, 4, buckets[1].Week)
}

func TestBucketByWeek_UnparsableDatesAreCounted(t *testing.T) {
	txns := []domain.Transaction{
		tx("1", "p1", domain.DirectionOut, "2024-01-17", 4, "8"),
		tx("2", "p1", domain.DirectionOut, "garbage", 6, "12"),
		tx("3", "p1", domain.DirectionOut, "", 1, "2"),
		tx("4", "p1", domain.DirectionIn, "also garbage", 1, "2"),
	}

	buckets, skipped := BucketByWeek(txns, domain.DirectionOut, 0)

	require.Len(t, buckets, 1)
	assert.Equal(t, 2, skipped, "only records of the requested direction are accounted")
	assert.Equal(t, int64(4), buckets[0].ExitQuantity)
}

func TestBucketByWeek_QuantityConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	dates := []string{"2024-01-01", "2024-01-09", "2024-03-15", "2023-12-31", "bad", "2024-07-04T08:00:00Z"}

	var txns []domain.Transaction
	var wantQty int64
	for i := 0; i < 500; i++ {
		dir := domain.DirectionIn
		if rng.Intn(2) == 0 {
			dir = domain.DirectionOut
		}
		date := dates[rng.Intn(len(dates))]
		qty := rng.Intn(50)
		txns = append(txns, tx(fmt.Sprint(i), fmt.Sprint(rng.Intn(7)), dir, date, qty, "1.10"))
		if date != "bad" {
			wantQty += int64(qty)
		}
	}

	buckets, skipped := BucketByWeek(txns, domain.DirectionBoth, 0)

	var gotQty int64
	for _, b := range buckets {
		gotQty += b.EntryQuantity + b.ExitQuantity
	}
	assert.Equal(t, wantQty, gotQty)

	var bad int
	for _, txn := range txns {
		if txn.Date == "bad" {
			bad++
		}
	}
	assert.Equal(t, bad, skipped)
}

func TestBucketByWeek_OrderIndependent(t *testing.T) {
	txns := []domain.Transaction{
		tx("1", "p1", domain.DirectionIn, "2024-02-07", 10, "50.10"),
		tx("2", "p1", domain.DirectionOut, "2024-01-17", 2, "10.20"),
		tx("3", "p2", domain.DirectionIn, "2024-01-18", 3, "7.30"),
		tx("4", "p2", domain.DirectionOut, "2023-12-29", 1, "2.40"),
		tx("5", "p3", domain.DirectionOut, "2024-02-06", 9, "0.10"),
	}
	want, wantSkipped := BucketByWeek(txns, domain.DirectionBoth, 0)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]domain.Transaction(nil), txns...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, gotSkipped := BucketByWeek(shuffled, domain.DirectionBoth, 0)
		require.Len(t, got, len(want))
		assert.Equal(t, wantSkipped, gotSkipped)
		for j := range want {
			assert.Equal(t, want[j].Year, got[j].Year)
			assert.Equal(t, want[j].Week, got[j].Week)
			assert.Equal(t, want[j].EntryQuantity, got[j].EntryQuantity)
			assert.Equal(t, want[j].ExitQuantity, got[j].ExitQuantity)
			assert.True(t, want[j].EntryValue.Equal(got[j].EntryValue))
			assert.True(t, want[j].ExitValue.Equal(got[j].ExitValue))
		}
	}
}

func TestBucketByWeek_DecimalAccumulation(t *testing.T) {
	var txns []domain.Transaction
	for i := 0; i < 1000; i++ {
		txns = append(txns, tx(fmt.Sprint(i), "p1", domain.DirectionOut, "2024-01-17", 1, "0.10"))
	}

	buckets, _ := BucketByWeek(txns, domain.DirectionOut, 0)

	require.Len(t, buckets, 1)
	assert.Equal(t, "100", buckets[0].ExitValue.String())
}

func TestBucketByWeek_DoesNotMutateInput(t *testing.T) {
	txns := []domain.Transaction{
		tx("2", "p1", domain.DirectionOut, "2024-02-17", 2, "10"),
		tx("1", "p1", domain.DirectionOut, "2024-01-17", 1, "5"),
	}
	before := append([]domain.Transaction(nil), txns...)

	_, _ = BucketByWeek(txns, domain.DirectionOut, 1)
	_ = RankProducts(txns, 1)

	assert.Equal(t, before, txns)
}

func TestValue_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		txn  domain.Transaction
		want string
	}{
		{"total trusted over unit price", domain.Transaction{Quantity: intPtr(2), UnitPrice: dec("3"), TotalPrice: dec("7")}, "7"},
		{"total derived when absent", domain.Transaction{Quantity: intPtr(2), UnitPrice: dec("3.25")}, "6.5"},
		{"missing total and unit price is zero", domain.Transaction{Quantity: intPtr(2)}, "0"},
		{"negative quantity derives zero", domain.Transaction{Quantity: intPtr(-4), UnitPrice: dec("3")}, "0"},
		{"missing quantity derives zero", domain.Transaction{UnitPrice: dec("3")}, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Value(tt.txn).String())
		})
	}
}

func TestBucketByWeek_MalformedRecordsContributeZero(t *testing.T) {
	txns := []domain.Transaction{
		{ID: "1", Direction: domain.DirectionOut, Date: "2024-01-17"},
		{ID: "2", Direction: domain.DirectionOut, Date: "2024-01-17", Quantity: intPtr(-3), TotalPrice: dec("4")},
		tx("3", "p1", domain.DirectionOut, "2024-01-17", 2, "6"),
	}

	buckets, skipped := BucketByWeek(txns, domain.DirectionOut, 0)

	require.Len(t, buckets, 1)
	assert.Zero(t, skipped)
	assert.Equal(t, int64(2), buckets[0].ExitQuantity)
	assert.Equal(t, "10", buckets[0].ExitValue.String())
}

func TestRankProducts(t *testing.T) {
	txns := []domain.Transaction{
		tx("1", "b", domain.DirectionOut, "2024-01-17", 5, "50"),
		tx("2", "a", domain.DirectionOut, "2024-01-17", 5, "50"),
		tx("3", "c", domain.DirectionOut, "2024-01-17", 5, "60"),
		tx("4", "d", domain.DirectionOut, "2024-01-17", 9, "9"),
		tx("5", "b", domain.DirectionOut, "2024-01-18", 0, "0"),
		{ID: "6", Direction: domain.DirectionOut, Quantity: intPtr(100)},
	}

	got := RankProducts(txns, 3)

	require.Len(t, got, 3)
	assert.Equal(t, "d", got[0].ProductID)
	assert.Equal(t, "c", got[1].ProductID, "equal quantity ranks by value")
	assert.Equal(t, "a", got[2].ProductID, "equal quantity and value ranks by id")
	assert.Equal(t, int64(9), got[0].TotalQuantity)
	assert.Equal(t, "Product d", got[0].Name)
}

func TestRankProducts_DefaultAndBound(t *testing.T) {
	var txns []domain.Transaction
	for i := 0; i < 25; i++ {
		txns = append(txns, tx(fmt.Sprint(i), fmt.Sprintf("p%02d", i), domain.DirectionOut, "2024-01-17", i, "1"))
	}

	assert.Len(t, RankProducts(txns, 0), DefaultTopN)
	assert.Len(t, RankProducts(txns, 3), 3)
	assert.Len(t, RankProducts(txns, 100), 25)
	assert.Empty(t, RankProducts(nil, 5))
}

func TestRankProducts_Deterministic(t *testing.T) {
	var txns []domain.Transaction
	for i := 0; i < 40; i++ {
		txns = append(txns, tx(fmt.Sprint(i), fmt.Sprintf("p%d", i%6), domain.DirectionOut, "2024-01-17", 3, "3"))
	}

	first := RankProducts(txns, 4)
	second := RankProducts(txns, 4)

	assert.Equal(t, first, second)
}

func TestRankProducts_TotalValueConserved(t *testing.T) {
	txns := []domain.Transaction{
		tx("1", "p1", domain.DirectionOut, "2024-01-17", 1, "0.10"),
		tx("2", "p1", domain.DirectionOut, "2024-01-18", 1, "0.20"),
		{ID: "3", ProductID: "p1", Direction: domain.DirectionOut, Quantity: intPtr(2), UnitPrice: dec("1.05")},
	}

	got := RankProducts(txns, 1)

	require.Len(t, got, 1)
	assert.Equal(t, "2.4", got[0].TotalValue.String())
	assert.Equal(t, int64(4), got[0].TotalQuantity)
	assert.Equal(t, "1.05", got[0].UnitPrice.String(), "unit price is the last one seen")
}

func TestCountByInventoryCode(t *testing.T) {
	txns := []domain.Transaction{
		{InventoryCode: "A1"},
		{InventoryCode: "A1"},
		{InventoryCode: "B2"},
		{InventoryCode: ""},
	}

	got := CountByInventoryCode(txns)

	assert.Equal(t, map[string]int{"A1": 2, "B2": 1}, got)
	assert.Empty(t, CountByInventoryCode(nil))
}

func TestWithoutStatus(t *testing.T) {
	txns := []domain.Transaction{
		{ID: "1", Status: domain.TransactionCompleted},
		{ID: "2", Status: domain.TransactionCanceled},
		{ID: "3"},
	}

	got := WithoutStatus(txns, domain.TransactionCanceled)

	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
	assert.Len(t, txns, 3)
}
