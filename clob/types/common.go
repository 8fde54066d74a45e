// Package types 定义 CLOB API 的公共类型。
package types

// Side 订单方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType 订单执行类型
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good Till Cancel - 一直有效直到取消
	OrderTypeFOK OrderType = "FOK" // Fill or Kill - 全部成交或全部取消
	OrderTypeFAK OrderType = "FAK" // Fill and Kill - 部分成交，剩余取消
)

// Chain 区块链网络
type Chain int

const (
	ChainPolygon Chain = 137
	ChainAmoy    Chain = 80002
)

// SignatureType 签名类型
type SignatureType int

const (
	SignatureTypeBrowser    SignatureType = 0 // EOA - 标准以太坊钱包
	SignatureTypeMagic      SignatureType = 1 // POLY_PROXY - Magic Link 登录
	SignatureTypeGnosisSafe SignatureType = 2 // GNOSIS_SAFE - 代理多签钱包
)

// ApiKeyCreds API 密钥凭证
type ApiKeyCreds struct {
	Key        string
	Secret     string
	Passphrase string
}

// ApiKeyRaw 原始 API 密钥（API 返回格式）
type ApiKeyRaw struct {
	ApiKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Creds 转换为凭证结构
func (r ApiKeyRaw) Creds() *ApiKeyCreds {
	return &ApiKeyCreds{Key: r.ApiKey, Secret: r.Secret, Passphrase: r.Passphrase}
}
