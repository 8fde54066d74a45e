package client

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/updown/clob/signing"
	"github.com/betbot/updown/clob/types"
)

const testPrivateKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func newSigningTestClient(t *testing.T, funder string, sigType types.SignatureType) *Client {
	t.Helper()
	pk, err := signing.PrivateKeyFromHex(testPrivateKeyHex)
	require.NoError(t, err)

	c, err := New(Config{
		PrivateKey:    pk,
		FunderAddress: funder,
		SignatureType: sigType,
	})
	require.NoError(t, err)
	return c
}

func TestBuildSignedOrderBuy(t *testing.T) {
	c := newSigningTestClient(t, "", types.SignatureTypeBrowser)

	// 0.55 * 10 份 = 5.50 USDC，按 6 位精度放大
	signed, err := c.buildSignedOrder("123456", types.SideBuy,
		decimal.NewFromFloat(0.55), decimal.NewFromInt(10))
	require.NoError(t, err)

	assert.Equal(t, "5500000", signed.MakerAmount)
	assert.Equal(t, "10000000", signed.TakerAmount)
	assert.Equal(t, "123456", signed.TokenID)
	assert.Equal(t, types.SideBuy, signed.Side)
	assert.Equal(t, int(types.SignatureTypeBrowser), signed.SignatureType)

	// 无代理钱包时 maker 即签名地址
	pk, err := signing.PrivateKeyFromHex(testPrivateKeyHex)
	require.NoError(t, err)
	eoa := signing.GetAddressFromPrivateKey(pk).Hex()
	assert.Equal(t, eoa, signed.Maker)
	assert.Equal(t, eoa, signed.Signer)

	// 65 字节签名的 hex 形式
	require.True(t, strings.HasPrefix(signed.Signature, "0x"))
	assert.Len(t, signed.Signature, 2+65*2)
}

func TestBuildSignedOrderFunderAndSell(t *testing.T) {
	funder := "0x00000000000000000000000000000000DeaDBeef"
	c := newSigningTestClient(t, funder, types.SignatureTypeGnosisSafe)

	signed, err := c.buildSignedOrder("789", types.SideSell,
		decimal.NewFromFloat(0.40), decimal.NewFromFloat(2.5))
	require.NoError(t, err)

	// SELL：付出代币换取 USDC
	assert.Equal(t, "2500000", signed.MakerAmount)
	assert.Equal(t, "1000000", signed.TakerAmount)
	assert.Equal(t, int(types.SignatureTypeGnosisSafe), signed.SignatureType)

	// 代理钱包：maker 是 funder，signer 仍是 EOA（Hex() 输出为校验和大小写）
	pk, err := signing.PrivateKeyFromHex(testPrivateKeyHex)
	require.NoError(t, err)
	assert.True(t, strings.EqualFold(funder, signed.Maker))
	assert.Equal(t, signing.GetAddressFromPrivateKey(pk).Hex(), signed.Signer)
}

func TestBuildSignedOrderRequiresKey(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)

	_, err = c.buildSignedOrder("1", types.SideBuy, decimal.NewFromFloat(0.5), decimal.NewFromInt(1))
	assert.Error(t, err)
}
