package service

import (
	"marketplace/internal/apperror"
	"marketplace/internal/model"

	"github.com/shopspring/decimal"
)

// RestockAllocation describes how a restock of Quantity units is spread over
// the online and offline buckets.
type RestockAllocation struct {
	Quantity     int
	StockType    string
	OnlineStock  *int
	OfflineStock *int
}

// allocateRestock computes the stock after a restock. Explicit targets are
// read first as an increment, then as absolute values for the new total.
// Failing both, stockType picks a bucket, and "total" splits by the current
// ratio (defaultOnlineRatio when the row is empty) with the rounding
// remainder going offline.
func allocateRestock(current model.StockSnapshot, in RestockAllocation, defaultOnlineRatio float64) (model.StockSnapshot, error) {
	if in.Quantity <= 0 {
		return model.StockSnapshot{}, apperror.Validation("quantity must be greater than 0")
	}
	if (in.OnlineStock == nil) != (in.OfflineStock == nil) {
		return model.StockSnapshot{}, apperror.Validation("online_stock and offline_stock must be provided together")
	}

	next := model.StockSnapshot{Total: current.Total + in.Quantity}
	explicit := in.OnlineStock != nil && in.OfflineStock != nil

	switch {
	case explicit && *in.OnlineStock+*in.OfflineStock == in.Quantity:
		next.Online = current.Online + *in.OnlineStock
		next.Offline = current.Offline + *in.OfflineStock
	case explicit && *in.OnlineStock+*in.OfflineStock == next.Total:
		next.Online = *in.OnlineStock
		next.Offline = *in.OfflineStock
	case in.StockType == model.StockTypeOnline:
		next.Online = current.Online + in.Quantity
		next.Offline = current.Offline
	case in.StockType == model.StockTypeOffline:
		next.Online = current.Online
		next.Offline = current.Offline + in.Quantity
	default:
		onlineAdd := proportionalShare(current, in.Quantity, defaultOnlineRatio)
		next.Online = current.Online + onlineAdd
		next.Offline = current.Offline + (in.Quantity - onlineAdd)
	}

	if err := checkStock(next); err != nil {
		return model.StockSnapshot{}, err
	}
	return next, nil
}

// proportionalShare is the online part of quantity, rounded half away from zero.
func proportionalShare(current model.StockSnapshot, quantity int, defaultOnlineRatio float64) int {
	qty := decimal.NewFromInt(int64(quantity))
	var share decimal.Decimal
	if current.Total > 0 {
		share = qty.Mul(decimal.NewFromInt(int64(current.Online))).Div(decimal.NewFromInt(int64(current.Total)))
	} else {
		share = qty.Mul(decimal.NewFromFloat(defaultOnlineRatio))
	}
	return int(share.Round(0).IntPart())
}

// checkStock enforces total = online + offline with no negative bucket.
func checkStock(s model.StockSnapshot) error {
	if s.Total < 0 || s.Online < 0 || s.Offline < 0 {
		return apperror.Validation("stock values cannot be negative (total=%d, online=%d, offline=%d)", s.Total, s.Online, s.Offline)
	}
	if s.Online+s.Offline != s.Total {
		return apperror.Validation("online (%d) + offline (%d) must equal total (%d)", s.Online, s.Offline, s.Total)
	}
	return nil
}
