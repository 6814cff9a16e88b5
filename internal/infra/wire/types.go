package wire

import (
	"encoding/json"
)

// Channel names on the venue stream.
const (
	ChannelBooks     = "books"
	ChannelOrders    = "orders"
	ChannelPositions = "positions"
	ChannelAccount   = "account"
)

// Frame actions.
const (
	ActionSnapshot = "snapshot"
	ActionUpdate   = "update"
)

// Ping is the literal keepalive payload; the venue answers with "pong".
const Ping = "ping"

// SubscribeArg identifies one channel subscription.
type SubscribeArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

// subscribeRequest is the outbound subscribe frame.
type subscribeRequest struct {
	Op   string         `json:"op"`
	Args []SubscribeArg `json:"args"`
}

// loginRequest carries the pre-built signed auth payload. The payload is
// opaque here; signing happens entirely outside this package.
type loginRequest struct {
	Op   string `json:"op"`
	Auth string `json:"auth"`
}

// EncodeSubscribe builds the subscribe frame for the given channels.
func EncodeSubscribe(args ...SubscribeArg) ([]byte, error) {
	return json.Marshal(subscribeRequest{Op: "subscribe", Args: args})
}

// EncodeLogin builds the auth frame from a pre-built signed payload.
func EncodeLogin(signedPayload string) ([]byte, error) {
	return json.Marshal(loginRequest{Op: "login", Auth: signedPayload})
}

// frame is the inbound message shape. Data stays raw until the channel is
// known.
type frame struct {
	Event  string          `json:"event,omitempty"`
	Code   int             `json:"code,omitempty"`
	Msg    string          `json:"msg,omitempty"`
	Action string          `json:"action,omitempty"`
	Arg    SubscribeArg    `json:"arg"`
	Seq    uint64          `json:"seq,omitempty"`
	Ts     int64           `json:"ts,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// bookData is one book payload entry: rows of [price, quantity] strings.
type bookData struct {
	Bids [][2]string `json:"bids"`
	Asks [][2]string `json:"asks"`
}

type wireOrder struct {
	OrderID   int64  `json:"orderId"`
	InstID    string `json:"instId"`
	Side      string `json:"side"`
	Status    string `json:"status"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Remaining string `json:"remaining"`
	CTime     int64  `json:"cTime"`
}

type wirePosition struct {
	PosID           int64  `json:"posId"`
	InstID          string `json:"instId"`
	HoldSide        string `json:"holdSide"`
	Status          string `json:"status"`
	Total           string `json:"total"`
	OpenPriceAvg    string `json:"openPriceAvg"`
	MarginSize      string `json:"marginSize"`
	UnrealizedPL    string `json:"unrealizedPL"`
	AchievedProfits string `json:"achievedProfits"`
	UTime           int64  `json:"uTime"`
}

type wireBalance struct {
	Equity       string `json:"equity"`
	Available    string `json:"available"`
	QuoteBalance string `json:"quoteBalance"`
}
