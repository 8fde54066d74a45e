package types

// SignedOrder 已签名的订单（POST /order 的 order 字段）
type SignedOrder struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          Side   `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// NewOrder 下单请求载荷
type NewOrder struct {
	Order     SignedOrder `json:"order"`
	Owner     string      `json:"owner"`
	OrderType OrderType   `json:"orderType"`
}

// OrderResponse 下单/撤单响应
type OrderResponse struct {
	Success           bool     `json:"success"`
	ErrorMsg          string   `json:"errorMsg"`
	OrderID           string   `json:"orderID"`
	TransactionHashes []string `json:"transactionsHashes"`
	Status            string   `json:"status"`
	TakingAmount      string   `json:"takingAmount"`
	MakingAmount      string   `json:"makingAmount"`
}

// OpenOrder 订单簿中的未结订单
type OpenOrder struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Owner        string `json:"owner"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
	Outcome      string `json:"outcome"`
	CreatedAt    int64  `json:"created_at"`
	OrderType    string `json:"order_type"`
}

// OpenOrdersResponse 未结订单列表响应
type OpenOrdersResponse struct {
	Data       []OpenOrder `json:"data"`
	NextCursor string      `json:"next_cursor"`
	Limit      int         `json:"limit"`
	Count      int         `json:"count"`
}
