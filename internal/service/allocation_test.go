package service

import (
	"testing"

	"marketplace/internal/apperror"
	"marketplace/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestAllocateRestock(t *testing.T) {
	tests := []struct {
		name    string
		current model.StockSnapshot
		in      RestockAllocation
		want    model.StockSnapshot
	}{
		{
			name:    "proportional split keeps ratio",
			current: model.StockSnapshot{Total: 100, Online: 60, Offline: 40},
			in:      RestockAllocation{Quantity: 50, StockType: model.StockTypeTotal},
			want:    model.StockSnapshot{Total: 150, Online: 90, Offline: 60},
		},
		{
			name:    "empty stock uses default ratio",
			current: model.StockSnapshot{},
			in:      RestockAllocation{Quantity: 10, StockType: model.StockTypeTotal},
			want:    model.StockSnapshot{Total: 10, Online: 6, Offline: 4},
		},
		{
			name:    "rounding remainder goes offline",
			current: model.StockSnapshot{},
			in:      RestockAllocation{Quantity: 7, StockType: model.StockTypeTotal},
			want:    model.StockSnapshot{Total: 7, Online: 4, Offline: 3},
		},
		{
			name:    "online bucket",
			current: model.StockSnapshot{Total: 10, Online: 5, Offline: 5},
			in:      RestockAllocation{Quantity: 4, StockType: model.StockTypeOnline},
			want:    model.StockSnapshot{Total: 14, Online: 9, Offline: 5},
		},
		{
			name:    "offline bucket",
			current: model.StockSnapshot{Total: 10, Online: 5, Offline: 5},
			in:      RestockAllocation{Quantity: 4, StockType: model.StockTypeOffline},
			want:    model.StockSnapshot{Total: 14, Online: 5, Offline: 9},
		},
		{
			name:    "explicit targets as increment",
			current: model.StockSnapshot{Total: 10, Online: 5, Offline: 5},
			in:      RestockAllocation{Quantity: 6, StockType: model.StockTypeOnline, OnlineStock: intPtr(1), OfflineStock: intPtr(5)},
			want:    model.StockSnapshot{Total: 16, Online: 6, Offline: 10},
		},
		{
			name:    "explicit targets as absolute values",
			current: model.StockSnapshot{Total: 10, Online: 5, Offline: 5},
			in:      RestockAllocation{Quantity: 6, OnlineStock: intPtr(12), OfflineStock: intPtr(4)},
			want:    model.StockSnapshot{Total: 16, Online: 12, Offline: 4},
		},
		{
			name:    "increment wins when both readings match",
			current: model.StockSnapshot{},
			in:      RestockAllocation{Quantity: 10, OnlineStock: intPtr(2), OfflineStock: intPtr(8)},
			want:    model.StockSnapshot{Total: 10, Online: 2, Offline: 8},
		},
		{
			name:    "unmatched targets fall back to stock type",
			current: model.StockSnapshot{Total: 10, Online: 5, Offline: 5},
			in:      RestockAllocation{Quantity: 6, StockType: model.StockTypeOffline, OnlineStock: intPtr(1), OfflineStock: intPtr(1)},
			want:    model.StockSnapshot{Total: 16, Online: 5, Offline: 11},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := allocateRestock(tt.current, tt.in, 0.6)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.Total, got.Online+got.Offline)
		})
	}
}

func TestAllocateRestockRejects(t *testing.T) {
	tests := []struct {
		name string
		in   RestockAllocation
	}{
		{name: "zero quantity", in: RestockAllocation{Quantity: 0}},
		{name: "negative quantity", in: RestockAllocation{Quantity: -3}},
		{name: "half an explicit allocation", in: RestockAllocation{Quantity: 5, OnlineStock: intPtr(5)}},
		{name: "increment drives bucket negative", in: RestockAllocation{Quantity: 5, OnlineStock: intPtr(10), OfflineStock: intPtr(-5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := allocateRestock(model.StockSnapshot{Total: 2, Online: 1, Offline: 1}, tt.in, 0.6)
			require.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
}
