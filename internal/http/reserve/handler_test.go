package reserve_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	reserveHandler "github.com/MrJamesThe3rd/karat/internal/http/reserve"
	"github.com/MrJamesThe3rd/karat/internal/movement"
)

func TestHandler_ListMovements(t *testing.T) {
	type testCase struct {
		name       string
		query      string
		setupMock  func(m *movement.MockRepository)
		wantStatus int
		wantBody   string
		hiddenBody string
	}

	tests := []testCase{
		{
			name: "Success",
			setupMock: func(m *movement.MockRepository) {
				m.EXPECT().Query(gomock.Any(), gomock.Any()).Return([]*movement.Entry{{ID: "01JAK9Z5M7X3Q8R2T4V6W8Y0ZA"}}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   "01JAK9Z5M7X3Q8R2T4V6W8Y0ZA",
		},
		{
			name:       "InvertedRange",
			query:      "?from=2026-03-06T00:00:00Z&to=2026-03-05T00:00:00Z",
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid movement filter",
		},
		{
			name: "RepoError",
			setupMock: func(m *movement.MockRepository) {
				m.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, errors.New("pq: relation movements does not exist"))
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "internal error",
			hiddenBody: "relation movements",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := movement.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			h := reserveHandler.NewHandler(nil, movement.NewService(repo), nil, nil)

			r := chi.NewRouter()
			r.Route("/stores/{storeID}/reserves", h.Routes)

			req := httptest.NewRequest(http.MethodGet, "/stores/main-bazaar/reserves/local_gold/movements"+tt.query, nil)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)

			if tt.hiddenBody != "" {
				assert.NotContains(t, rec.Body.String(), tt.hiddenBody)
			}
		})
	}
}
