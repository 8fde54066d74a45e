package signing

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
)

// DefaultDerivationPath 标准以太坊首个账户路径
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

// DerivedWallet 助记词派生出的钱包
type DerivedWallet struct {
	PrivateKey    *ecdsa.PrivateKey
	PrivateKeyHex string
	EOAAddress    string
}

// DeriveWalletFromMnemonic 按派生路径从助记词导出私钥。
// derivationPath 为空时使用 DefaultDerivationPath。
func DeriveWalletFromMnemonic(mnemonic, derivationPath string) (*DerivedWallet, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	derivationPath = strings.TrimSpace(derivationPath)
	if mnemonic == "" {
		return nil, fmt.Errorf("mnemonic 不能为空")
	}
	if derivationPath == "" {
		derivationPath = DefaultDerivationPath
	}

	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("无效的助记词: %w", err)
	}

	path, err := hdwallet.ParseDerivationPath(derivationPath)
	if err != nil {
		return nil, fmt.Errorf("无效的派生路径 %q: %w", derivationPath, err)
	}

	acct, err := w.Derive(path, false)
	if err != nil {
		return nil, fmt.Errorf("派生账户失败: %w", err)
	}

	pkHex, err := w.PrivateKeyHex(acct)
	if err != nil {
		return nil, fmt.Errorf("导出私钥失败: %w", err)
	}
	pk, err := PrivateKeyFromHex(pkHex)
	if err != nil {
		return nil, fmt.Errorf("解析派生私钥失败: %w", err)
	}

	return &DerivedWallet{
		PrivateKey:    pk,
		PrivateKeyHex: pkHex,
		EOAAddress:    strings.ToLower(acct.Address.Hex()),
	}, nil
}
