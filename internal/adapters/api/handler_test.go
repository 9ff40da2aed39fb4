package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lelang/item-service/internal/domain/items"
)

type MockItemService struct {
	mock.Mock
}

func (m *MockItemService) CreateItem(ctx context.Context, cmd items.ItemCommand) (*items.Item, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*items.Item), args.Error(1)
}

func (m *MockItemService) ListItems(ctx context.Context) ([]*items.Item, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*items.Item), args.Error(1)
}

func (m *MockItemService) GetItem(ctx context.Context, itemID int64) (*items.Item, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*items.Item), args.Error(1)
}

func (m *MockItemService) UpdateItem(ctx context.Context, itemID int64, cmd items.ItemCommand) (*items.Item, error) {
	args := m.Called(ctx, itemID, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*items.Item), args.Error(1)
}

func (m *MockItemService) DeleteItem(ctx context.Context, itemID int64) error {
	args := m.Called(ctx, itemID)
	return args.Error(0)
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error { return p.err }

const vaseBody = `{"nama_barang":"Vase","deskripsi":"Antique","harga_awal":150000,"owner_id":7,"end_time":"2025-01-31T12:00:00"}`

func vaseItem(id int64) *items.Item {
	endTime := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)
	return &items.Item{
		ID:          id,
		Name:        "Vase",
		Description: "Antique",
		StartPrice:  150000,
		OwnerID:     7,
		EndTime:     &endTime,
	}
}

func newTestRouter(service ItemService, db Pinger) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(NewItemHandler(service, db, logger), logger)
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestItemHandler_Root(t *testing.T) {
	rec := doRequest(t, newTestRouter(new(MockItemService), stubPinger{}), http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Item Service with Timer & Image is Running!"}`, rec.Body.String())
}

func TestItemHandler_Health(t *testing.T) {
	t.Run("database reachable", func(t *testing.T) {
		rec := doRequest(t, newTestRouter(new(MockItemService), stubPinger{}), http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
	})

	t.Run("database down", func(t *testing.T) {
		rec := doRequest(t, newTestRouter(new(MockItemService), stubPinger{err: errors.New("refused")}), http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestItemHandler_CreateItem(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		service := new(MockItemService)
		service.On("CreateItem", mock.Anything, mock.MatchedBy(func(cmd items.ItemCommand) bool {
			return cmd.Name == "Vase" && cmd.StartPrice == 150000 && cmd.OwnerID == 7 && cmd.ImageURL == nil
		})).Return(vaseItem(1), nil)

		rec := doRequest(t, newTestRouter(service, stubPinger{}), http.MethodPost, "/items", vaseBody)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{
			"message": "Barang lelang berhasil dipublikasikan!",
			"data": {
				"id": 1,
				"nama_barang": "Vase",
				"deskripsi": "Antique",
				"harga_awal": 150000,
				"owner_id": 7,
				"image_url": null,
				"end_time": "2025-01-31T12:00:00"
			}
		}`, rec.Body.String())
		service.AssertExpectations(t)
	})

	t.Run("missing field is rejected before the service", func(t *testing.T) {
		service := new(MockItemService)

		rec := doRequest(t, newTestRouter(service, stubPinger{}), http.MethodPost, "/items",
			`{"nama_barang":"Vase","deskripsi":"Antique","harga_awal":150000,"owner_id":7}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		res := decodeBody[ValidationErrorResponse](t, rec)
		require.Len(t, res.Detail, 1)
		assert.Equal(t, []string{"body", "end_time"}, res.Detail[0].Loc)
		service.AssertNotCalled(t, "CreateItem", mock.Anything, mock.Anything)
	})

	t.Run("storage failure", func(t *testing.T) {
		service := new(MockItemService)
		service.On("CreateItem", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

		rec := doRequest(t, newTestRouter(service, stubPinger{}), http.MethodPost, "/items", vaseBody)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"detail":"Internal Server Error"}`, rec.Body.String())
	})
}

func TestItemHandler_ListItems(t *testing.T) {
	t.Run("newest first as returned by the service", func(t *testing.T) {
		service := new(MockItemService)
		service.On("ListItems", mock.Anything).Return([]*items.Item{vaseItem(2), vaseItem(1)}, nil)

		rec := doRequest(t, newTestRouter(service, stubPinger{}), http.MethodGet, "/items", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		res := decodeBody[[]ItemResponse](t, rec)
		require.Len(t, res, 2)
		assert.Equal(t, int64(2), res[0].ID)
		assert.Equal(t, int64(1), res[1].ID)
	})

	t.Run("empty list is an empty array", func(t *testing.T) {
		service := new(MockItemService)
		service.On("ListItems", mock.Anything).Return([]*items.Item{}, nil)

		rec := doRequest(t, newTestRouter(service, stubPinger{}), http.MethodGet, "/items", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}

func TestItemHandler_GetItem(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		setup    func(*MockItemService)
		wantCode int
		wantBody string
	}{
		{
			name: "found",
			path: "/items/1",
			setup: func(s *MockItemService) {
				s.On("GetItem", mock.Anything, int64(1)).Return(vaseItem(1), nil)
			},
			wantCode: http.StatusOK,
		},
		{
			name: "not found",
			path: "/items/99",
			setup: func(s *MockItemService) {
				s.On("GetItem", mock.Anything, int64(99)).Return(nil, fmt.Errorf("failed to get item 99: %w", items.ErrItemNotFound))
			},
			wantCode: http.StatusNotFound,
			wantBody: `{"detail":"Barang tidak ditemukan"}`,
		},
		{
			name:     "non-integer id",
			path:     "/items/abc",
			setup:    func(*MockItemService) {},
			wantCode: http.StatusUnprocessableEntity,
			wantBody: `{"detail":[{"loc":["path","item_id"],"msg":"value is not a valid integer","type":"type_error.integer"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockItemService)
			tt.setup(service)

			rec := doRequest(t, newTestRouter(service, stubPinger{}), http.MethodGet, tt.path, "")

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
			service.AssertExpectations(t)
		})
	}
}

func TestItemHandler_UpdateItem(t *testing.T) {
	t.Run("replaced", func(t *testing.T) {
		updated := vaseItem(1)
		updated.Name = "Vase2"
		imageURL := "https://img.example/vase.png"
		updated.ImageURL = &imageURL

		service := new(MockItemService)
		service.On("UpdateItem", mock.Anything, int64(1), mock.MatchedBy(func(cmd items.ItemCommand) bool {
			return cmd.Name == "Vase2" && cmd.ImageURL != nil && *cmd.ImageURL == imageURL
		})).Return(updated, nil)

		body := `{"nama_barang":"Vase2","deskripsi":"Antique","harga_awal":150000,"owner_id":7,` +
			`"image_url":"https://img.example/vase.png","end_time":"2025-01-31T12:00:00"}`
		rec := doRequest(t, newTestRouter(service, stubPinger{}), http.MethodPut, "/items/1", body)

		assert.Equal(t, http.StatusOK, rec.Code)
		res := decodeBody[MessageResponse](t, rec)
		assert.Equal(t, "Data lelang diperbarui", res.Message)
		require.NotNil(t, res.Data)
		assert.Equal(t, "Vase2", res.Data.Name)
		require.NotNil(t, res.Data.ImageURL)
		assert.Equal(t, imageURL, *res.Data.ImageURL)
		service.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		service := new(MockItemService)
		service.On("UpdateItem", mock.Anything, int64(99), mock.Anything).Return(nil, items.ErrItemNotFound)

		rec := doRequest(t, newTestRouter(service, stubPinger{}), http.MethodPut, "/items/99", vaseBody)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"detail":"Barang tidak ditemukan"}`, rec.Body.String())
	})

	t.Run("trailing data after the body", func(t *testing.T) {
		service := new(MockItemService)

		rec := doRequest(t, newTestRouter(service, stubPinger{}), http.MethodPut, "/items/1", vaseBody+"garbage")

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		service.AssertNotCalled(t, "UpdateItem", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid body", func(t *testing.T) {
		service := new(MockItemService)

		rec := doRequest(t, newTestRouter(service, stubPinger{}), http.MethodPut, "/items/1",
			`{"nama_barang":"Vase","deskripsi":"Antique","harga_awal":1,"owner_id":7,"end_time":"soon"}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		service.AssertNotCalled(t, "UpdateItem", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestItemHandler_DeleteItem(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		service := new(MockItemService)
		service.On("DeleteItem", mock.Anything, int64(1)).Return(nil)

		rec := doRequest(t, newTestRouter(service, stubPinger{}), http.MethodDelete, "/items/1", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"Barang dihapus dari lelang"}`, rec.Body.String())
	})

	t.Run("not found", func(t *testing.T) {
		service := new(MockItemService)
		service.On("DeleteItem", mock.Anything, int64(1)).Return(items.ErrItemNotFound)

		rec := doRequest(t, newTestRouter(service, stubPinger{}), http.MethodDelete, "/items/1", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"detail":"Barang tidak ditemukan"}`, rec.Body.String())
	})
}
