package alert_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/karat/internal/alert"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

const storeID = "main-bazaar"

func TestPolicy_Evaluate(t *testing.T) {
	threshold := decimal.NewFromInt(10)

	type testCase struct {
		name        string
		balance     decimal.Decimal
		setupMock   func(r *alert.MockRepository, d *alert.MockDispatcher)
		wantRaised  bool
		wantMessage string
		wantErr     bool
	}

	tests := []testCase{
		{
			name:      "healthy balance raises nothing",
			balance:   decimal.NewFromInt(10),
			setupMock: func(r *alert.MockRepository, d *alert.MockDispatcher) {},
		},
		{
			name:    "low stock raises and dispatches",
			balance: decimal.RequireFromString("9.5"),
			setupMock: func(r *alert.MockRepository, d *alert.MockDispatcher) {
				r.EXPECT().FindActive(gomock.Any(), storeID, reserve.TypeLocalGold).Return(nil, alert.ErrNotFound)
				r.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).Return(true, nil)
				d.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil)
			},
			wantRaised:  true,
			wantMessage: "Low stock: LOCAL_GOLD at main-bazaar is 9.5, below 10",
		},
		{
			name:    "negative balance is reported as insufficient",
			balance: decimal.NewFromInt(-2),
			setupMock: func(r *alert.MockRepository, d *alert.MockDispatcher) {
				r.EXPECT().FindActive(gomock.Any(), storeID, reserve.TypeLocalGold).Return(nil, alert.ErrNotFound)
				r.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).Return(true, nil)
				d.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil)
			},
			wantRaised:  true,
			wantMessage: "Insufficient balance: LOCAL_GOLD at main-bazaar is -2",
		},
		{
			name:    "unseen notification suppresses a new one",
			balance: decimal.NewFromInt(3),
			setupMock: func(r *alert.MockRepository, d *alert.MockDispatcher) {
				r.EXPECT().FindActive(gomock.Any(), storeID, reserve.TypeLocalGold).
					Return(&alert.Notification{ID: uuid.New()}, nil)
			},
		},
		{
			name:    "losing the create race raises nothing",
			balance: decimal.NewFromInt(3),
			setupMock: func(r *alert.MockRepository, d *alert.MockDispatcher) {
				r.EXPECT().FindActive(gomock.Any(), storeID, reserve.TypeLocalGold).Return(nil, alert.ErrNotFound)
				r.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).Return(false, nil)
			},
		},
		{
			name:    "dispatch failure is only logged",
			balance: decimal.NewFromInt(3),
			setupMock: func(r *alert.MockRepository, d *alert.MockDispatcher) {
				r.EXPECT().FindActive(gomock.Any(), storeID, reserve.TypeLocalGold).Return(nil, alert.ErrNotFound)
				r.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).Return(true, nil)
				d.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(errors.New("redis unavailable"))
			},
			wantRaised:  true,
			wantMessage: "Low stock: LOCAL_GOLD at main-bazaar is 3, below 10",
		},
		{
			name:    "repository failure",
			balance: decimal.NewFromInt(3),
			setupMock: func(r *alert.MockRepository, d *alert.MockDispatcher) {
				r.EXPECT().FindActive(gomock.Any(), storeID, reserve.TypeLocalGold).Return(nil, errors.New("connection reset"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := alert.NewMockRepository(ctrl)
			dispatcher := alert.NewMockDispatcher(ctrl)
			tt.setupMock(repo, dispatcher)

			policy := alert.NewPolicy(repo, dispatcher)

			n, err := policy.Evaluate(context.Background(), storeID, reserve.TypeLocalGold, tt.balance, threshold)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)

			if !tt.wantRaised {
				assert.Nil(t, n)
				return
			}

			require.NotNil(t, n)
			assert.Equal(t, tt.wantMessage, n.Message)
			assert.Equal(t, "/stores/main-bazaar/reserves/LOCAL_GOLD", n.Link)
			assert.False(t, n.Seen)
		})
	}
}

func TestPolicy_Acknowledge(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := alert.NewMockRepository(ctrl)

	id := uuid.New()
	repo.EXPECT().Acknowledge(gomock.Any(), id).Return(nil)

	policy := alert.NewPolicy(repo, nil)
	assert.NoError(t, policy.Acknowledge(context.Background(), id))
}
