package kalshi

// Wire types for the venue API. Prices are integer cents (1-99); order books
// list resting bids per side as [price, contracts] pairs.

type orderBookResponse struct {
	OrderBook struct {
		Yes [][2]int `json:"yes"`
		No  [][2]int `json:"no"`
	} `json:"orderbook"`
}

type orderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	Count         int    `json:"count"`
	Type          string `json:"type"` // always "limit": maker orders only
	YesPrice      *int   `json:"yes_price,omitempty"`
	NoPrice       *int   `json:"no_price,omitempty"`
}

type orderResponse struct {
	Order struct {
		OrderID string `json:"order_id"`
		Ticker  string `json:"ticker"`
		Status  string `json:"status"`
	} `json:"order"`
}

type batchOrderRequest struct {
	Orders []orderRequest `json:"orders"`
}

type batchOrderResponse struct {
	Orders []struct {
		Order struct {
			OrderID string `json:"order_id"`
			Ticker  string `json:"ticker"`
			Status  string `json:"status"`
		} `json:"order"`
	} `json:"orders"`
}

type marketResponse struct {
	Market struct {
		Ticker string `json:"ticker"`
		Status string `json:"status"` // active | closed | settled
		Result string `json:"result"` // yes | no, set once settled
	} `json:"market"`
}
