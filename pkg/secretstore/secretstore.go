// Package secretstore 保存交易凭证（助记词、私钥、CLOB API 密钥）。
// 加密由 Badger 的 value log + key registry 提供，本包只做封装。
package secretstore

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/betbot/updown/clob/types"
)

// 固定键名
const (
	KeyMnemonic       = "wallet/mnemonic"
	KeyDerivationPath = "wallet/derivation_path"
	KeyPrivateKeyHex  = "wallet/private_key_hex"
	KeyAPICreds       = "clob/api_creds"
)

// Store 凭证存储
type Store struct {
	db *badger.DB
}

type OpenOptions struct {
	Path          string
	EncryptionKey []byte // 32 字节；为 nil 时明文存储（仅限本地开发）
	ReadOnly      bool
}

func Open(opts OpenOptions) (*Store, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("secretstore: path 不能为空")
	}
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(nil).
		WithReadOnly(opts.ReadOnly)
	if len(opts.EncryptionKey) > 0 {
		// 加密模式下 Badger 要求启用索引缓存
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(100 << 20)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetString 读取字符串值；不存在时返回 found=false
func (s *Store) GetString(key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, errors.New("secretstore: 未打开")
	}
	k := []byte(strings.TrimSpace(key))
	if len(k) == 0 {
		return "", false, errors.New("secretstore: key 为空")
	}
	var out string
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			out = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, err
	}
	return out, found, nil
}

func (s *Store) SetString(key, val string) error {
	if s == nil || s.db == nil {
		return errors.New("secretstore: 未打开")
	}
	k := []byte(strings.TrimSpace(key))
	if len(k) == 0 {
		return errors.New("secretstore: key 为空")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, []byte(val))
	})
}

// SaveAPICreds 持久化 CLOB API 密钥（JSON 序列化）
func (s *Store) SaveAPICreds(creds *types.ApiKeyCreds) error {
	if creds == nil {
		return errors.New("secretstore: creds 为空")
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("序列化凭证失败: %w", err)
	}
	return s.SetString(KeyAPICreds, string(data))
}

// LoadAPICreds 读取 CLOB API 密钥；不存在时返回 (nil, false, nil)
func (s *Store) LoadAPICreds() (*types.ApiKeyCreds, bool, error) {
	raw, found, err := s.GetString(KeyAPICreds)
	if err != nil || !found {
		return nil, found, err
	}
	var creds types.ApiKeyCreds
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, true, fmt.Errorf("解析凭证失败: %w", err)
	}
	return &creds, true, nil
}

// ParseKey 解析 32 字节加密密钥（hex 或 base64）。空输入返回 nil。
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	rawHex := strings.TrimPrefix(raw, "0x")
	if b, err := hex.DecodeString(rawHex); err == nil {
		if len(b) == 32 {
			return b, nil
		}
		return nil, fmt.Errorf("密钥长度必须为 32 字节，实际 %d", len(b))
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("密钥长度必须为 32 字节，实际 %d", len(b))
		}
		return b, nil
	}
	return nil, errors.New("密钥必须是 32 字节的 hex 或 base64")
}
