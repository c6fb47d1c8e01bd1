package importer_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/karat/internal/alias"
	"github.com/MrJamesThe3rd/karat/internal/importer"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
	"github.com/MrJamesThe3rd/karat/internal/settlement"
)

const storeID = "main-bazaar"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func account(t reserve.Type, balance string, version int64) *reserve.Account {
	return &reserve.Account{StoreID: storeID, Type: t, Balance: dec(balance), Version: version}
}

const countSheet = "reserve;quantity;note\n" +
	"Local Gold;120,5;counted by meena\n" +
	"Bank Gold;40;\n" +
	"Kamal silver;15;\n" +
	"Mystery;3;\n"

func TestService_Import(t *testing.T) {
	type testCase struct {
		name      string
		sheet     string
		setupMock func(r *importer.MockResolver, b *importer.MockAccountReader, s *importer.MockSettler)
		wantErr   string
		check     func(t *testing.T, rep *importer.Report)
	}

	tests := []testCase{
		{
			name:  "count sheet settles the difference per row",
			sheet: countSheet,
			setupMock: func(r *importer.MockResolver, b *importer.MockAccountReader, s *importer.MockSettler) {
				r.EXPECT().Resolve(gomock.Any(), "Local Gold").Return(reserve.TypeLocalGold, nil)
				r.EXPECT().Resolve(gomock.Any(), "Bank Gold").Return(reserve.TypeBankGold, nil)
				r.EXPECT().Resolve(gomock.Any(), "Kamal silver").Return(reserve.TypeKamalSilver, nil)
				r.EXPECT().Resolve(gomock.Any(), "Mystery").Return(reserve.Type(""), fmt.Errorf("%w: %q", alias.ErrUnresolved, "Mystery"))

				b.EXPECT().Get(gomock.Any(), storeID, reserve.TypeLocalGold).Return(account(reserve.TypeLocalGold, "100", 4), nil)
				b.EXPECT().Get(gomock.Any(), storeID, reserve.TypeBankGold).Return(account(reserve.TypeBankGold, "40", 2), nil)
				b.EXPECT().Get(gomock.Any(), storeID, reserve.TypeKamalSilver).Return(account(reserve.TypeKamalSilver, "10", 1), nil)

				s.EXPECT().Settle(gomock.Any(), gomock.Any(), reserve.TypeLocalGold).DoAndReturn(
					func(_ context.Context, tx settlement.Transaction, _ reserve.Type) (*settlement.Result, error) {
						assert.Equal(t, settlement.KindAdjustment, tx.Kind)
						assert.Equal(t, storeID, tx.StoreID)
						assert.Equal(t, "ravi", tx.Employee)
						assert.Equal(t, "counted by meena", tx.Note)
						assert.True(t, dec("20.5").Equal(tx.Delta))
						require.NotNil(t, tx.ExpectedVersion)
						assert.Equal(t, int64(4), *tx.ExpectedVersion)

						return &settlement.Result{Balance: dec("120.5")}, nil
					})
				s.EXPECT().Settle(gomock.Any(), gomock.Any(), reserve.TypeKamalSilver).
					Return(nil, fmt.Errorf("%w: 7d1c", settlement.ErrAlreadySettled))
			},
			check: func(t *testing.T, rep *importer.Report) {
				require.Len(t, rep.Outcomes, 4)

				assert.Equal(t, importer.StatusApplied, rep.Outcomes[0].Status)
				assert.True(t, dec("120.5").Equal(rep.Outcomes[0].Balance))
				assert.Equal(t, 2, rep.Outcomes[0].Line)

				assert.Equal(t, importer.StatusUnchanged, rep.Outcomes[1].Status)
				assert.Equal(t, importer.StatusDuplicate, rep.Outcomes[2].Status)

				assert.Equal(t, importer.StatusRejected, rep.Outcomes[3].Status)
				assert.Contains(t, rep.Outcomes[3].Reason, "Mystery")

				assert.Equal(t, 1, rep.Count(importer.StatusApplied))
				assert.Equal(t, 1, rep.Count(importer.StatusRejected))
			},
		},
		{
			name:  "delta row that would go negative is rejected",
			sheet: "reserve,delta\nLOCAL_SILVER,-50\nLOCAL_SILVER,5\n",
			setupMock: func(r *importer.MockResolver, b *importer.MockAccountReader, s *importer.MockSettler) {
				r.EXPECT().Resolve(gomock.Any(), "LOCAL_SILVER").Return(reserve.TypeLocalSilver, nil).Times(2)

				s.EXPECT().Settle(gomock.Any(), gomock.Any(), reserve.TypeLocalSilver).
					Return(nil, &settlement.InsufficientError{Balance: dec("20"), Delta: dec("-50"), Shortfall: dec("30")})
				s.EXPECT().Settle(gomock.Any(), gomock.Any(), reserve.TypeLocalSilver).DoAndReturn(
					func(_ context.Context, tx settlement.Transaction, _ reserve.Type) (*settlement.Result, error) {
						assert.Nil(t, tx.ExpectedVersion)
						return &settlement.Result{Balance: dec("25")}, nil
					})
			},
			check: func(t *testing.T, rep *importer.Report) {
				require.Len(t, rep.Outcomes, 2)
				assert.Equal(t, importer.StatusRejected, rep.Outcomes[0].Status)
				assert.Contains(t, rep.Outcomes[0].Reason, "insufficient")
				assert.Equal(t, importer.StatusApplied, rep.Outcomes[1].Status)
			},
		},
		{
			name:  "count row is rejected when the reserve moved after it was read",
			sheet: "reserve;quantity\nLOCAL_GOLD;50\nBANK_GOLD;12\n",
			setupMock: func(r *importer.MockResolver, b *importer.MockAccountReader, s *importer.MockSettler) {
				r.EXPECT().Resolve(gomock.Any(), "LOCAL_GOLD").Return(reserve.TypeLocalGold, nil)
				r.EXPECT().Resolve(gomock.Any(), "BANK_GOLD").Return(reserve.TypeBankGold, nil)

				b.EXPECT().Get(gomock.Any(), storeID, reserve.TypeLocalGold).Return(account(reserve.TypeLocalGold, "48", 9), nil)
				b.EXPECT().Get(gomock.Any(), storeID, reserve.TypeBankGold).Return(account(reserve.TypeBankGold, "10", 3), nil)

				s.EXPECT().Settle(gomock.Any(), gomock.Any(), reserve.TypeLocalGold).
					Return(nil, fmt.Errorf("%w: LOCAL_GOLD at main-bazaar is at version 10", settlement.ErrReserveChanged))
				s.EXPECT().Settle(gomock.Any(), gomock.Any(), reserve.TypeBankGold).
					Return(&settlement.Result{Balance: dec("12")}, nil)
			},
			check: func(t *testing.T, rep *importer.Report) {
				require.Len(t, rep.Outcomes, 2)
				assert.Equal(t, importer.StatusRejected, rep.Outcomes[0].Status)
				assert.Contains(t, rep.Outcomes[0].Reason, "changed since it was read")
				assert.Equal(t, importer.StatusApplied, rep.Outcomes[1].Status)
			},
		},
		{
			name:  "storage error stops the import",
			sheet: "reserve,delta\nLOCAL_GOLD,1\nBANK_GOLD,1\n",
			setupMock: func(r *importer.MockResolver, b *importer.MockAccountReader, s *importer.MockSettler) {
				r.EXPECT().Resolve(gomock.Any(), "LOCAL_GOLD").Return(reserve.TypeLocalGold, nil)
				r.EXPECT().Resolve(gomock.Any(), "BANK_GOLD").Return(reserve.TypeBankGold, nil)

				s.EXPECT().Settle(gomock.Any(), gomock.Any(), reserve.TypeLocalGold).Return(&settlement.Result{Balance: dec("1")}, nil)
				s.EXPECT().Settle(gomock.Any(), gomock.Any(), reserve.TypeBankGold).Return(nil, errors.New("connection reset"))
			},
			wantErr: "row 3: connection reset",
			check: func(t *testing.T, rep *importer.Report) {
				require.Len(t, rep.Outcomes, 1)
				assert.Equal(t, importer.StatusApplied, rep.Outcomes[0].Status)
			},
		},
		{
			name:      "unparseable sheet",
			sheet:     "date;amount\n2026-03-05;100\n",
			setupMock: func(r *importer.MockResolver, b *importer.MockAccountReader, s *importer.MockSettler) {},
			wantErr:   "parsing sheet",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			resolver := importer.NewMockResolver(ctrl)
			balances := importer.NewMockAccountReader(ctrl)
			settler := importer.NewMockSettler(ctrl)
			tt.setupMock(resolver, balances, settler)

			svc := importer.NewService(resolver, balances, settler)

			rep, err := svc.Import(context.Background(), storeID, "ravi", strings.NewReader(tt.sheet))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			if tt.check != nil {
				tt.check(t, rep)
			}
		})
	}
}

func TestService_Import_StableTransactionIDs(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := importer.NewMockResolver(ctrl)
	balances := importer.NewMockAccountReader(ctrl)
	settler := importer.NewMockSettler(ctrl)

	resolver.EXPECT().Resolve(gomock.Any(), "CASH_LEDGER").Return(reserve.TypeCashLedger, nil).AnyTimes()

	var ids []string

	settler.EXPECT().Settle(gomock.Any(), gomock.Any(), reserve.TypeCashLedger).DoAndReturn(
		func(_ context.Context, tx settlement.Transaction, _ reserve.Type) (*settlement.Result, error) {
			ids = append(ids, tx.ID.String())
			return &settlement.Result{Balance: tx.Delta}, nil
		}).Times(4)

	svc := importer.NewService(resolver, balances, settler)

	sheet := "reserve,delta\nCASH_LEDGER,100\nCASH_LEDGER,100\n"

	for range 2 {
		_, err := svc.Import(context.Background(), storeID, "ravi", strings.NewReader(sheet))
		require.NoError(t, err)
	}

	require.Len(t, ids, 4)
	assert.NotEqual(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])
	assert.Equal(t, ids[1], ids[3])
}
