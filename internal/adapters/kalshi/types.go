package kalshi

import "encoding/json"

// Wire types for the Kalshi trade API. Only the fields we read are
// declared.

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	MemberID string `json:"member_id"`
}

type orderRequest struct {
	Action        string `json:"action"`
	Ticker        string `json:"ticker"`
	Side          string `json:"side"`
	Count         int    `json:"count"`
	ClientOrderID string `json:"client_order_id"`
	Type          string `json:"type"`
	YesPrice      *int   `json:"yes_price,omitempty"`
	NoPrice       *int   `json:"no_price,omitempty"`
}

type orderResponse struct {
	Order struct {
		OrderID string `json:"order_id"`
	} `json:"order"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ordersResponse struct {
	Orders []struct {
		OrderID       string `json:"order_id"`
		ClientOrderID string `json:"client_order_id"`
	} `json:"orders"`
}

// Websocket frames.

type wsCommand struct {
	ID     int      `json:"id"`
	Cmd    string   `json:"cmd"`
	Params wsParams `json:"params"`
}

type wsParams struct {
	Channels     []string `json:"channels"`
	MarketTicker string   `json:"market_ticker"`
}

type wsEnvelope struct {
	Type string          `json:"type"`
	Seq  int64           `json:"seq"`
	SID  int64           `json:"sid"`
	Msg  json.RawMessage `json:"msg"`
}

// wsSnapshot carries full depth per outcome side as [price, qty] pairs.
type wsSnapshot struct {
	Yes [][2]int `json:"yes"`
	No  [][2]int `json:"no"`
}

type wsDelta struct {
	Price int    `json:"price"`
	Delta int    `json:"delta"`
	Side  string `json:"side"`
}

type wsFill struct {
	Side     string `json:"side"`
	Count    int    `json:"count"`
	YesPrice int    `json:"yes_price"`
	NoPrice  int    `json:"no_price"`
}

type wsSubscribed struct {
	SID int64 `json:"sid"`
}
