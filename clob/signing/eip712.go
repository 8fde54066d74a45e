package signing

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/betbot/updown/clob/types"
)

// BuildClobEip712Signature 构建 Polymarket CLOB 的 ClobAuth EIP712 签名。
// 用于 L1 认证（创建/派生 API 密钥）。
func BuildClobEip712Signature(
	privateKey *ecdsa.PrivateKey,
	chainID types.Chain,
	timestamp int64,
	nonce int64,
) (string, error) {
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	domain := apitypes.TypedDataDomain{
		Name:    ClobDomainName,
		Version: ClobVersion,
		ChainId: math.NewHexOrDecimal256(int64(chainID)),
	}

	typedTypes := apitypes.Types{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
		},
		"ClobAuth": {
			{Name: "address", Type: "address"},
			{Name: "timestamp", Type: "string"},
			{Name: "nonce", Type: "uint256"},
			{Name: "message", Type: "string"},
		},
	}

	message := map[string]interface{}{
		"address":   address.Hex(),
		"timestamp": fmt.Sprintf("%d", timestamp),
		"nonce":     big.NewInt(nonce),
		"message":   MsgToSign,
	}

	typedData := apitypes.TypedData{
		Types:       typedTypes,
		PrimaryType: "ClobAuth",
		Domain:      domain,
		Message:     message,
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return "", fmt.Errorf("计算域分隔符失败: %w", err)
	}
	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return "", fmt.Errorf("计算消息哈希失败: %w", err)
	}

	// \x19\x01 + domainSeparator + typedDataHash
	rawData := []byte("\x19\x01")
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, typedDataHash...)
	hash := crypto.Keccak256Hash(rawData)

	// crypto.Sign 返回 r(32) + s(32) + v(1)
	signature, err := crypto.Sign(hash.Bytes(), privateKey)
	if err != nil {
		return "", fmt.Errorf("签名失败: %w", err)
	}

	return "0x" + common.Bytes2Hex(signature), nil
}

// GetAddressFromPrivateKey 从私钥获取地址
func GetAddressFromPrivateKey(privateKey *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(privateKey.PublicKey)
}

// PrivateKeyFromHex 从十六进制字符串解析私钥
func PrivateKeyFromHex(hexKey string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(hexKey)
}
