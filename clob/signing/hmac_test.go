package signing

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPolyHmacSignature(t *testing.T) {
	secret := base64.URLEncoding.EncodeToString([]byte("test-hmac-secret"))
	body := `{"order":{}}`

	sig1, err := BuildPolyHmacSignature(secret, 1700000000, "POST", "/order", &body)
	require.NoError(t, err)
	require.NotEmpty(t, sig1)

	// base64url：不包含 + 和 /
	assert.NotContains(t, sig1, "+")
	assert.NotContains(t, sig1, "/")

	// 相同输入结果稳定
	sig2, err := BuildPolyHmacSignature(secret, 1700000000, "POST", "/order", &body)
	require.NoError(t, err)
	assert.Equal(t, sig1, sig2)

	// 任一输入变化签名即变化
	sig3, err := BuildPolyHmacSignature(secret, 1700000001, "POST", "/order", &body)
	require.NoError(t, err)
	assert.NotEqual(t, sig1, sig3)

	sig4, err := BuildPolyHmacSignature(secret, 1700000000, "DELETE", "/order", nil)
	require.NoError(t, err)
	assert.NotEqual(t, sig1, sig4)
}

func TestBuildPolyHmacSignatureStdBase64Secret(t *testing.T) {
	// 标准 base64（带 + /）的 secret 也能解码
	raw := []byte{0xfb, 0xef, 0xbe, 0xff, 0x01, 0x02, 0x03, 0x04}
	secret := base64.StdEncoding.EncodeToString(raw)
	require.True(t, strings.ContainsAny(secret, "+/"))

	_, err := BuildPolyHmacSignature(secret, 1700000000, "GET", "/orders", nil)
	assert.NoError(t, err)
}

func TestBuildPolyHmacSignatureInvalidSecret(t *testing.T) {
	_, err := BuildPolyHmacSignature("%%%not-base64%%%", 1700000000, "GET", "/orders", nil)
	assert.Error(t, err)
}
