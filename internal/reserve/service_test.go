package reserve_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

func TestService_List(t *testing.T) {
	type testCase struct {
		name      string
		setupMock func(m *reserve.MockRepository)
		wantErr   bool
	}

	tests := []testCase{
		{
			name: "FillsUnwrittenReserves",
			setupMock: func(m *reserve.MockRepository) {
				m.EXPECT().ListAccounts(gomock.Any(), "main-bazaar").Return([]*reserve.Account{
					{StoreID: "main-bazaar", Type: reserve.TypeCashLedger, Balance: decimal.NewFromInt(500), Version: 3},
				}, nil)
			},
		},
		{
			name: "RepoError",
			setupMock: func(m *reserve.MockRepository) {
				m.EXPECT().ListAccounts(gomock.Any(), "main-bazaar").Return(nil, errors.New("db error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := reserve.NewMockRepository(ctrl)
			tt.setupMock(repo)

			got, err := reserve.NewService(repo).List(context.Background(), "main-bazaar")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Len(t, got, len(reserve.Types))

			for i, acc := range got {
				assert.Equal(t, reserve.Types[i], acc.Type)

				if acc.Type == reserve.TypeCashLedger {
					assert.True(t, decimal.NewFromInt(500).Equal(acc.Balance))
					assert.Equal(t, int64(3), acc.Version)
				} else {
					assert.True(t, acc.Balance.IsZero())
					assert.Zero(t, acc.Version)
				}
			}
		})
	}
}

func TestService_GetBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := reserve.NewMockRepository(ctrl)
	repo.EXPECT().GetAccount(gomock.Any(), "main-bazaar", reserve.TypeBankGold).
		Return(&reserve.Account{Balance: decimal.RequireFromString("41.25")}, nil)

	svc := reserve.NewService(repo)

	got, err := svc.GetBalance(context.Background(), "main-bazaar", reserve.TypeBankGold)
	require.NoError(t, err)
	assert.Equal(t, "41.25", got.String())

	_, err = svc.GetBalance(context.Background(), "main-bazaar", "PLATINUM")
	assert.Error(t, err)
}

func TestParseType(t *testing.T) {
	got, err := reserve.ParseType("KAMAL_SILVER")
	require.NoError(t, err)
	assert.Equal(t, reserve.TypeKamalSilver, got)
	assert.True(t, got.IsMetal())
	assert.Equal(t, reserve.MetalSilver, got.Metal())

	assert.True(t, reserve.TypeCashOnline.IsCash())
	assert.False(t, reserve.TypeCashOnline.IsMetal())

	_, err = reserve.ParseType("PLATINUM")
	assert.Error(t, err)
}
