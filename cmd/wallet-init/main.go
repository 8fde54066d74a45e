// wallet-init 将钱包凭证写入 badger 凭证库：
// 从终端读取助记词（或用 -private-key 直接写入私钥 hex），
// 派生一次地址做校验后落库，供 bot 启动时读取。
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/betbot/updown/clob/signing"
	"github.com/betbot/updown/pkg/secretstore"
)

func main() {
	_ = godotenv.Load()

	var (
		dbPath     = flag.String("store", getenv("UPDOWN_SECRET_DB", "data/secrets.badger"), "badger 凭证库路径")
		secretKey  = flag.String("secret-key", getenv("UPDOWN_SECRET_KEY", ""), "凭证库加密密钥（32 字节 base64/hex，为空时明文存储）")
		derivPath  = flag.String("derivation-path", "", "HD 派生路径（为空时使用默认路径）")
		privateKey = flag.String("private-key", "", "直接写入私钥 hex（跳过助记词输入）")
	)
	flag.Parse()

	keyBytes, err := secretstore.ParseKey(*secretKey)
	if err != nil {
		fatal(err)
	}
	if keyBytes == nil {
		fmt.Fprintln(os.Stderr, "⚠️ 未设置加密密钥，凭证将明文存储")
	}

	store, err := secretstore.Open(secretstore.OpenOptions{
		Path:          *dbPath,
		EncryptionKey: keyBytes,
	})
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	if *privateKey != "" {
		hexKey := strings.TrimPrefix(strings.TrimSpace(*privateKey), "0x")
		pk, err := signing.PrivateKeyFromHex(hexKey)
		if err != nil {
			fatal(fmt.Errorf("私钥无效: %w", err))
		}
		if err := store.SetString(secretstore.KeyPrivateKeyHex, hexKey); err != nil {
			fatal(err)
		}
		fmt.Fprintf(os.Stderr, "已写入私钥，地址: %s\n", signing.GetAddressFromPrivateKey(pk))
		return
	}

	fmt.Fprintln(os.Stderr, "请输入助记词（12/15/18/21/24 个单词），回车结束：")
	mnemonic := readLine()
	if mnemonic == "" {
		fatal(fmt.Errorf("助记词为空"))
	}

	// 先派生一次确认助记词有效，同时把地址打给操作者核对
	w, err := signing.DeriveWalletFromMnemonic(mnemonic, *derivPath)
	if err != nil {
		fatal(fmt.Errorf("助记词无效: %w", err))
	}

	if err := store.SetString(secretstore.KeyMnemonic, mnemonic); err != nil {
		fatal(err)
	}
	if *derivPath != "" {
		if err := store.SetString(secretstore.KeyDerivationPath, *derivPath); err != nil {
			fatal(err)
		}
	}
	fmt.Fprintf(os.Stderr, "已写入助记词到 %s，地址: %s\n", *dbPath, w.EOAAddress)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func readLine() string {
	br := bufio.NewReader(os.Stdin)
	s, _ := br.ReadString('\n')
	return strings.TrimSpace(s)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
