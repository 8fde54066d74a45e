package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// BuildPolyHmacSignature 构建 L2 请求的 HMAC-SHA256 签名。
// secret 为 base64url 编码；返回值同样是 base64url（保留 = 填充）。
func BuildPolyHmacSignature(
	secret string,
	timestamp int64,
	method string,
	requestPath string,
	body *string,
) (string, error) {
	message := strconv.FormatInt(timestamp, 10) + method + requestPath
	if body != nil {
		message += *body
	}

	keyData, err := base64.URLEncoding.DecodeString(secret)
	if err != nil {
		// 部分密钥以标准 base64 下发
		keyData, err = base64.StdEncoding.DecodeString(secret)
		if err != nil {
			return "", fmt.Errorf("解码 secret 失败: %w", err)
		}
	}

	mac := hmac.New(sha256.New, keyData)
	mac.Write([]byte(message))

	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	sig = strings.ReplaceAll(sig, "+", "-")
	sig = strings.ReplaceAll(sig, "/", "_")
	return sig, nil
}
