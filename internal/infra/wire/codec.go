package wire

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"statefeed/internal/domain"
	"statefeed/internal/event"
	"statefeed/pkg/quant"
)

// Codec turns raw venue frames into envelopes. Control frames (pong,
// subscribe acks, errors) decode to ok=false. A recognized data frame always
// yields an envelope so sequencing metadata keeps flowing, even when its
// payload fails to parse; the payload is simply left nil and skipped by the
// reducer downstream.
//
// Frames that carry no venue sequence number are stamped from a local
// counter, keeping envelopes monotonic per connection.
type Codec struct {
	seq uint64
}

// NewCodec creates a codec with a fresh sequence counter.
func NewCodec() *Codec {
	return &Codec{}
}

// Decode parses one raw frame.
func (c *Codec) Decode(msg []byte) (event.Envelope, bool) {
	if string(msg) == "pong" {
		return event.Envelope{}, false
	}

	var f frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return event.Envelope{}, false
	}

	if f.Event != "" {
		if f.Event == "error" {
			slog.Warn("venue error frame",
				slog.Int("code", f.Code),
				slog.String("msg", f.Msg))
		}
		return event.Envelope{}, false
	}

	typ, ok := frameType(f.Arg.Channel, f.Action)
	if !ok {
		return event.Envelope{}, false
	}

	env := event.Envelope{
		Type: typ,
		Seq:  f.Seq,
		Ts:   quant.FromMillis(f.Ts),
	}
	if env.Seq == 0 {
		env.Seq = quant.NextSeq(&c.seq)
	}

	switch f.Arg.Channel {
	case ChannelBooks:
		env.Book = parseBook(f.Arg.InstID, f.Data)
	case ChannelOrders:
		env.Orders = parseOrders(f.Data)
	case ChannelPositions:
		env.Positions = parsePositions(f.Data)
	case ChannelAccount:
		env.Balance = parseBalance(f.Data, env.Ts)
	}

	return env, true
}

func frameType(channel, action string) (event.Type, bool) {
	snapshot := action == ActionSnapshot
	if !snapshot && action != ActionUpdate {
		return 0, false
	}
	switch channel {
	case ChannelBooks:
		if snapshot {
			return event.EvBookSnapshot, true
		}
		return event.EvBookDelta, true
	case ChannelOrders:
		if snapshot {
			return event.EvOrderSnapshot, true
		}
		return event.EvOrderDelta, true
	case ChannelPositions:
		if snapshot {
			return event.EvPositionSnapshot, true
		}
		return event.EvPositionDelta, true
	case ChannelAccount:
		if snapshot {
			return event.EvBalanceSnapshot, true
		}
		return event.EvBalanceDelta, true
	default:
		return 0, false
	}
}

func parseBook(instID string, data json.RawMessage) *event.BookPayload {
	var rows []bookData
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return nil
	}
	bids, err := parseLevels(rows[0].Bids)
	if err != nil {
		return nil
	}
	asks, err := parseLevels(rows[0].Asks)
	if err != nil {
		return nil
	}
	return &event.BookPayload{Market: instID, Bids: bids, Asks: asks}
}

func parseLevels(rows [][2]string) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(rows))
	for _, row := range rows {
		price, err := decimal.NewFromString(row[0])
		if err != nil {
			return nil, err
		}
		qty, err := decimal.NewFromString(row[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, domain.PriceLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}

func parseOrders(data json.RawMessage) []domain.Order {
	var rows []wireOrder
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil
	}
	orders := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		price, err := decimal.NewFromString(row.Price)
		if err != nil {
			return nil
		}
		size, err := decimal.NewFromString(row.Size)
		if err != nil {
			return nil
		}
		remaining := size
		if row.Remaining != "" {
			remaining, err = decimal.NewFromString(row.Remaining)
			if err != nil {
				return nil
			}
		}
		orders = append(orders, domain.Order{
			ID:            row.OrderID,
			Market:        row.InstID,
			Side:          strings.ToUpper(row.Side),
			Status:        domain.OrderStatus(strings.ToUpper(row.Status)),
			Price:         price,
			Size:          size,
			RemainingSize: remaining,
			CreatedAt:     quant.FromMillis(row.CTime),
		})
	}
	return orders
}

func parsePositions(data json.RawMessage) []domain.Position {
	var rows []wirePosition
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil
	}
	positions := make([]domain.Position, 0, len(rows))
	for _, row := range rows {
		size, err := decimal.NewFromString(row.Total)
		if err != nil {
			return nil
		}
		entry, err := decimal.NewFromString(row.OpenPriceAvg)
		if err != nil {
			return nil
		}
		margin := parseOrZero(row.MarginSize)
		upl := parseOrZero(row.UnrealizedPL)
		rpl := parseOrZero(row.AchievedProfits)

		side := domain.PositionSideLong
		if strings.EqualFold(row.HoldSide, "short") {
			side = domain.PositionSideShort
		}
		positions = append(positions, domain.Position{
			ID:            row.PosID,
			Market:        row.InstID,
			Side:          side,
			Status:        domain.PositionStatus(strings.ToUpper(row.Status)),
			Size:          size,
			EntryPrice:    entry,
			Margin:        margin,
			UnrealizedPnL: upl,
			RealizedPnL:   rpl,
			UpdatedAt:     quant.FromMillis(row.UTime),
		})
	}
	return positions
}

func parseBalance(data json.RawMessage, ts quant.TimeStamp) *domain.Balance {
	var rows []wireBalance
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return nil
	}
	equity, err := decimal.NewFromString(rows[0].Equity)
	if err != nil {
		return nil
	}
	free, err := decimal.NewFromString(rows[0].Available)
	if err != nil {
		return nil
	}
	return &domain.Balance{
		Equity:         equity,
		FreeCollateral: free,
		QuoteBalance:   parseOrZero(rows[0].QuoteBalance),
		UpdatedAt:      ts,
	}
}

func parseOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
