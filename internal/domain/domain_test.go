package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrder_IsLive(t *testing.T) {
	tests := []struct {
		status OrderStatus
		live   bool
	}{
		{OrderStatusNew, true},
		{OrderStatusUntriggered, true},
		{OrderStatusPartiallyFilled, true},
		{OrderStatusFilled, false},
		{OrderStatusCanceled, false},
		{OrderStatusExpired, false},
		{OrderStatusRejected, false},
		{OrderStatus("SOMETHING_NEW"), false}, // unknown statuses are terminal
	}

	for _, tt := range tests {
		o := Order{Status: tt.status}
		if got := o.IsLive(); got != tt.live {
			t.Errorf("IsLive(%s) = %v, want %v", tt.status, got, tt.live)
		}
	}
}

func TestPosition_IsOpen(t *testing.T) {
	tests := []struct {
		status PositionStatus
		open   bool
	}{
		{PositionStatusOpen, true},
		{PositionStatusLiquidating, true},
		{PositionStatusClosed, false},
	}

	for _, tt := range tests {
		p := Position{Status: tt.status}
		if got := p.IsOpen(); got != tt.open {
			t.Errorf("IsOpen(%s) = %v, want %v", tt.status, got, tt.open)
		}
	}
}

func TestPriceLevel_Key(t *testing.T) {
	// The key is the exact decimal rendering: distinct strings for the same
	// numeric value stay distinct only if decimal normalizes them identically.
	tests := []struct {
		in   string
		want string
	}{
		{"100", "100"},
		{"100.50", "100.5"},
		{"0.00000001", "0.00000001"},
	}

	for _, tt := range tests {
		lv := PriceLevel{Price: decimal.RequireFromString(tt.in)}
		if got := lv.Key(); got != tt.want {
			t.Errorf("Key(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
