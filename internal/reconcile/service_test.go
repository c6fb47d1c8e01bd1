package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/karat/internal/alert"
	"github.com/MrJamesThe3rd/karat/internal/movement"
	"github.com/MrJamesThe3rd/karat/internal/reconcile"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
	"github.com/MrJamesThe3rd/karat/internal/settlement"
	"github.com/MrJamesThe3rd/karat/internal/shop"
	"github.com/MrJamesThe3rd/karat/internal/storage/memory"
)

const storeID = "main-bazaar"

var ist = time.FixedZone("IST", 5*60*60+30*60)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.March, day, hour, minute, 0, 0, ist)
}

func appendEntry(t *testing.T, m *memory.Store, createdAt time.Time, delta, resulting string) {
	t.Helper()

	_, err := m.Append(context.Background(), &movement.Entry{
		StoreID:             storeID,
		ReserveType:         reserve.TypeLocalGold,
		Delta:               dec(delta),
		ResultingBalance:    dec(resulting),
		Reason:              movement.ReasonAdjustment,
		SourceTransactionID: uuid.New(),
		CreatedAt:           createdAt.UTC(),
	})
	require.NoError(t, err)
}

func TestService_BalancesForDay(t *testing.T) {
	m := memory.New()
	appendEntry(t, m, at(4, 10, 0), "100", "100")
	appendEntry(t, m, at(5, 9, 0), "-30", "70")
	appendEntry(t, m, at(5, 23, 30), "5", "75")
	appendEntry(t, m, at(6, 0, 15), "-10", "65")

	svc := reconcile.NewService(m, m, m, m, ist)

	type testCase struct {
		name        string
		day         time.Time
		wantOpening string
		wantClosing string
		wantCount   int
	}

	tests := []testCase{
		{name: "before any movement", day: at(3, 12, 0), wantOpening: "0", wantClosing: "0"},
		{name: "first day opens at its first entry", day: at(4, 0, 0), wantOpening: "100", wantClosing: "100", wantCount: 1},
		{name: "late evening entry stays in its local day", day: at(5, 18, 0), wantOpening: "100", wantClosing: "75", wantCount: 2},
		{name: "just after midnight", day: at(6, 0, 0), wantOpening: "75", wantClosing: "65", wantCount: 1},
		{name: "quiet day carries the balance", day: at(7, 0, 0), wantOpening: "65", wantClosing: "65"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.BalancesForDay(context.Background(), storeID, reserve.TypeLocalGold, tt.day)
			require.NoError(t, err)

			assert.Equal(t, tt.day.Format(time.DateOnly), got.Day)
			assert.True(t, dec(tt.wantOpening).Equal(got.Opening), "opening %s", got.Opening)
			assert.True(t, dec(tt.wantClosing).Equal(got.Closing), "closing %s", got.Closing)
			assert.Equal(t, tt.wantCount, got.Movements)
		})
	}
}

func TestService_BalancesForDay_PastDayIsStable(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	appendEntry(t, m, at(5, 9, 0), "40", "40")
	appendEntry(t, m, at(5, 11, 0), "-15", "25")

	svc := reconcile.NewService(m, m, m, m, ist)

	first, err := svc.BalancesForDay(ctx, storeID, reserve.TypeLocalGold, at(5, 0, 0))
	require.NoError(t, err)

	second, err := svc.BalancesForDay(ctx, storeID, reserve.TypeLocalGold, at(5, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	appendEntry(t, m, at(8, 10, 0), "100", "125")

	third, err := svc.BalancesForDay(ctx, storeID, reserve.TypeLocalGold, at(5, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestService_BalancesForDay_Mocked(t *testing.T) {
	day := at(5, 15, 0)
	wantFrom := at(5, 0, 0)

	type testCase struct {
		name      string
		rt        reserve.Type
		setupMock func(m *reconcile.MockMovementReader)
		wantErr   error
		wantText  string
	}

	tests := []testCase{
		{
			name: "queries the local calendar day",
			rt:   reserve.TypeBankGold,
			setupMock: func(m *reconcile.MockMovementReader) {
				m.EXPECT().Query(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, f movement.Filter) ([]*movement.Entry, error) {
						assert.True(t, f.From.Equal(wantFrom))
						assert.True(t, f.To.Before(wantFrom.AddDate(0, 0, 1)))
						assert.Equal(t, reserve.TypeBankGold, f.ReserveType)

						return nil, nil
					})
				m.EXPECT().LastBefore(gomock.Any(), storeID, reserve.TypeBankGold, gomock.Any()).Return(nil, movement.ErrNotFound)
			},
		},
		{
			name:      "unknown reserve type",
			rt:        "PLATINUM",
			setupMock: func(m *reconcile.MockMovementReader) {},
			wantErr:   reconcile.ErrInvalidRequest,
		},
		{
			name: "query failure",
			rt:   reserve.TypeBankGold,
			setupMock: func(m *reconcile.MockMovementReader) {
				m.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, errors.New("statement timeout"))
			},
			wantText: "statement timeout",
		},
		{
			name: "opening lookup failure",
			rt:   reserve.TypeBankGold,
			setupMock: func(m *reconcile.MockMovementReader) {
				m.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, nil)
				m.EXPECT().LastBefore(gomock.Any(), storeID, reserve.TypeBankGold, gomock.Any()).Return(nil, errors.New("statement timeout"))
			},
			wantText: "reading balance before 2026-03-05",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			movements := reconcile.NewMockMovementReader(ctrl)
			tt.setupMock(movements)

			svc := reconcile.NewService(movements, nil, nil, nil, ist)

			got, err := svc.BalancesForDay(context.Background(), storeID, tt.rt, day)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantText != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantText)
			default:
				require.NoError(t, err)
				assert.True(t, got.Opening.IsZero())
				assert.True(t, got.Closing.IsZero())
			}
		})
	}
}

func TestService_DailyCashSummary(t *testing.T) {
	ctrl := gomock.NewController(t)
	movements := reconcile.NewMockMovementReader(ctrl)
	transactions := reconcile.NewMockTransactionLister(ctrl)

	transactions.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).Return([]*settlement.Transaction{
		{Kind: settlement.KindSale, ReserveType: reserve.TypeCashLedger, Amount: dec("5000")},
		{Kind: settlement.KindToken, ReserveType: reserve.TypeCashOnline, Amount: dec("1000")},
		{Kind: settlement.KindPurchase, ReserveType: reserve.TypeCashLedger, Amount: dec("2500")},
		{Kind: settlement.KindCashOut, ReserveType: reserve.TypeCashLedger, Amount: dec("300")},
		{Kind: settlement.KindSale, ReserveType: reserve.TypeLocalGold, Amount: dec("60000")},
		{Kind: settlement.KindPurchase, ReserveType: reserve.TypeBankGold, Amount: dec("9000")},
	}, nil)

	before := map[reserve.Type]string{reserve.TypeCashLedger: "10000", reserve.TypeCashOnline: "2000"}
	closing := map[reserve.Type]string{reserve.TypeCashLedger: "12200", reserve.TypeCashOnline: "3000"}

	movements.EXPECT().Query(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, f movement.Filter) ([]*movement.Entry, error) {
			return []*movement.Entry{{ResultingBalance: dec(closing[f.ReserveType])}}, nil
		}).Times(2)
	movements.EXPECT().LastBefore(gomock.Any(), storeID, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, rt reserve.Type, _ time.Time) (*movement.Entry, error) {
			return &movement.Entry{ResultingBalance: dec(before[rt])}, nil
		}).Times(2)

	svc := reconcile.NewService(movements, nil, transactions, nil, ist)

	sum, err := svc.DailyCashSummary(context.Background(), storeID, at(5, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, "2026-03-05", sum.Day)
	assert.True(t, dec("12000").Equal(sum.Opening))
	assert.True(t, dec("6000").Equal(sum.Inflow))
	assert.True(t, dec("2500").Equal(sum.Outflow))
	assert.True(t, dec("15500").Equal(sum.Expected))
	assert.True(t, dec("15200").Equal(sum.Closing))
	assert.True(t, dec("-300").Equal(sum.Discrepancy))
}

func newLedger(t *testing.T) (*settlement.Engine, *reconcile.Service, *memory.Store) {
	t.Helper()

	m := memory.New()
	require.NoError(t, m.CreateShop(context.Background(), &shop.Shop{ID: storeID, Name: "Main Bazaar"}))

	engine := settlement.NewEngine(m, m, m, m, alert.NewPolicy(m, nil), settlement.Options{})

	return engine, reconcile.NewService(m, m, m, m, ist), m
}

func TestService_DailyCashSummary_FirstTradingDay(t *testing.T) {
	ctx := context.Background()
	engine, svc, _ := newLedger(t)

	_, err := engine.Settle(ctx, settlement.Transaction{
		Kind: settlement.KindAdjustment, StoreID: storeID, Delta: dec("100"),
	}, reserve.TypeLocalGold)
	require.NoError(t, err)

	gold, err := engine.Settle(ctx, settlement.Transaction{
		Kind: settlement.KindSale, StoreID: storeID, Weight: dec("10"), Touch: dec("100"), Rate: dec("6000"),
	}, reserve.TypeLocalGold)
	require.NoError(t, err)
	require.True(t, dec("60000").Equal(gold.Transaction.Amount))

	_, err = engine.Settle(ctx, settlement.Transaction{
		Kind: settlement.KindSale, StoreID: storeID, Amount: dec("60000"),
	}, reserve.TypeCashLedger)
	require.NoError(t, err)

	_, err = engine.Settle(ctx, settlement.Transaction{
		Kind: settlement.KindPurchase, StoreID: storeID, Weight: dec("2"), Touch: dec("91.6"), Rate: dec("6000"),
	}, reserve.TypeLocalGold)
	require.NoError(t, err)

	sum, err := svc.DailyCashSummary(ctx, storeID, time.Now().In(ist))
	require.NoError(t, err)

	assert.True(t, decimal.Zero.Equal(sum.Opening), "opening %s", sum.Opening)
	assert.True(t, dec("60000").Equal(sum.Inflow), "inflow %s", sum.Inflow)
	assert.True(t, decimal.Zero.Equal(sum.Outflow), "outflow %s", sum.Outflow)
	assert.True(t, dec("60000").Equal(sum.Expected))
	assert.True(t, dec("60000").Equal(sum.Closing))
	assert.True(t, sum.Discrepancy.IsZero(), "discrepancy %s", sum.Discrepancy)

	day, err := svc.BalancesForDay(ctx, storeID, reserve.TypeCashLedger, time.Now().In(ist))
	require.NoError(t, err)
	assert.True(t, dec("60000").Equal(day.Opening))
}

func TestService_ReconcileAndRealign(t *testing.T) {
	ctx := context.Background()
	engine, svc, m := newLedger(t)

	_, err := engine.Settle(ctx, settlement.Transaction{
		Kind: settlement.KindAdjustment, StoreID: storeID, Delta: dec("100"),
	}, reserve.TypeLocalGold)
	require.NoError(t, err)

	reports, err := svc.ReconcileStore(ctx, storeID)
	require.NoError(t, err)
	require.Len(t, reports, len(reserve.Types))

	for _, r := range reports {
		assert.True(t, r.Consistent, "%s", r.ReserveType)
	}

	acc, err := m.GetAccount(ctx, storeID, reserve.TypeLocalGold)
	require.NoError(t, err)

	_, err = m.ApplyDelta(ctx, storeID, reserve.TypeLocalGold, dec("5"), acc.Version)
	require.NoError(t, err)

	report, err := svc.Reconcile(ctx, storeID, reserve.TypeLocalGold)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.True(t, dec("105").Equal(report.Live))
	assert.True(t, dec("100").Equal(report.Derived))
	assert.True(t, dec("5").Equal(report.Drift))

	_, err = engine.Settle(ctx, settlement.Transaction{
		Kind: settlement.KindSale, StoreID: storeID, Weight: dec("1"), Touch: dec("100"),
	}, reserve.TypeLocalGold)
	require.ErrorIs(t, err, settlement.ErrIntegrityViolation)

	realigned, err := svc.Realign(ctx, storeID, reserve.TypeLocalGold, "ravi")
	require.NoError(t, err)
	assert.True(t, realigned.Consistent)
	assert.True(t, dec("100").Equal(realigned.Live))
	assert.Equal(t, report.Version+1, realigned.Version)

	entries, err := m.Query(ctx, movement.Filter{StoreID: storeID, ReserveType: reserve.TypeLocalGold})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	res, err := engine.Settle(ctx, settlement.Transaction{
		Kind: settlement.KindSale, StoreID: storeID, Weight: dec("1"), Touch: dec("100"),
	}, reserve.TypeLocalGold)
	require.NoError(t, err)
	assert.True(t, dec("99").Equal(res.Balance))
}

func TestService_Realign_Mocked(t *testing.T) {
	drifted := &reserve.Account{StoreID: storeID, Type: reserve.TypeCashLedger, Balance: dec("520"), Version: 7}
	latest := &movement.Entry{ResultingBalance: dec("500")}

	type testCase struct {
		name      string
		setupMock func(mv *reconcile.MockMovementReader, acc *reconcile.MockAccountReader, b *reconcile.MockTxBeginner, tx *settlement.MockTx)
		wantErr   error
		check     func(t *testing.T, r *reconcile.Report)
	}

	tests := []testCase{
		{
			name: "consistent reserve is left alone",
			setupMock: func(mv *reconcile.MockMovementReader, acc *reconcile.MockAccountReader, _ *reconcile.MockTxBeginner, _ *settlement.MockTx) {
				acc.EXPECT().GetAccount(gomock.Any(), storeID, reserve.TypeCashLedger).
					Return(&reserve.Account{Balance: dec("500"), Version: 7}, nil)
				mv.EXPECT().Latest(gomock.Any(), storeID, reserve.TypeCashLedger).Return(latest, nil)
			},
			check: func(t *testing.T, r *reconcile.Report) {
				assert.True(t, r.Consistent)
			},
		},
		{
			name: "applies the negated drift at the read version",
			setupMock: func(mv *reconcile.MockMovementReader, acc *reconcile.MockAccountReader, b *reconcile.MockTxBeginner, tx *settlement.MockTx) {
				acc.EXPECT().GetAccount(gomock.Any(), storeID, reserve.TypeCashLedger).Return(drifted, nil)
				mv.EXPECT().Latest(gomock.Any(), storeID, reserve.TypeCashLedger).Return(latest, nil)
				b.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().ApplyDelta(gomock.Any(), storeID, reserve.TypeCashLedger, gomock.Any(), int64(7)).DoAndReturn(
					func(_ context.Context, _ string, _ reserve.Type, delta decimal.Decimal, _ int64) (*reserve.Account, error) {
						assert.True(t, dec("-20").Equal(delta))
						return &reserve.Account{Balance: dec("500"), Version: 8}, nil
					})
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil).AnyTimes()
			},
			check: func(t *testing.T, r *reconcile.Report) {
				assert.True(t, r.Consistent)
				assert.Equal(t, int64(8), r.Version)
			},
		},
		{
			name: "racing settlement makes realignment fail",
			setupMock: func(mv *reconcile.MockMovementReader, acc *reconcile.MockAccountReader, b *reconcile.MockTxBeginner, tx *settlement.MockTx) {
				acc.EXPECT().GetAccount(gomock.Any(), storeID, reserve.TypeCashLedger).Return(drifted, nil)
				mv.EXPECT().Latest(gomock.Any(), storeID, reserve.TypeCashLedger).Return(latest, nil)
				b.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().ApplyDelta(gomock.Any(), storeID, reserve.TypeCashLedger, gomock.Any(), int64(7)).
					Return(nil, reserve.ErrVersionConflict)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: reserve.ErrVersionConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mv := reconcile.NewMockMovementReader(ctrl)
			acc := reconcile.NewMockAccountReader(ctrl)
			b := reconcile.NewMockTxBeginner(ctrl)
			tx := settlement.NewMockTx(ctrl)
			tt.setupMock(mv, acc, b, tx)

			svc := reconcile.NewService(mv, acc, nil, b, ist)

			got, err := svc.Realign(context.Background(), storeID, reserve.TypeCashLedger, "ravi")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}
