package main

import (
	"context"
	"crypto/ecdsa"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/betbot/updown/clob/client"
	"github.com/betbot/updown/clob/signing"
	"github.com/betbot/updown/clob/types"
	"github.com/betbot/updown/internal/archive"
	"github.com/betbot/updown/internal/coinprice"
	"github.com/betbot/updown/internal/controlplane"
	"github.com/betbot/updown/internal/feed"
	"github.com/betbot/updown/internal/lifecycle"
	"github.com/betbot/updown/internal/risk"
	"github.com/betbot/updown/internal/services/openprice"
	"github.com/betbot/updown/internal/strategies"
	"github.com/betbot/updown/pkg/config"
	"github.com/betbot/updown/pkg/logger"
	"github.com/betbot/updown/pkg/marketspec"
	"github.com/betbot/updown/pkg/secretstore"

	// 导入策略集合以触发 init() 注册
	_ "github.com/betbot/updown/internal/strategies/all"
)

func main() {
	configPath := flag.String("config", "yml/config.yaml", "配置文件路径")
	flag.Parse()

	// .env 可选：环境变量里放代理等本机配置
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   true,
		LogByCycle: cfg.Log.ByCycle,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	spec, err := marketspec.New(cfg.Market.Symbol, cfg.Market.Timeframe)
	if err != nil {
		logrus.Errorf("market 配置无效: %v", err)
		os.Exit(1)
	}

	strategyList, err := buildStrategies(cfg)
	if err != nil {
		logrus.Errorf("加载策略失败: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logrus.Infof("🚀 启动 %s/%s 机器人, 策略: %v", cfg.Market.Symbol, cfg.Market.Timeframe, cfg.Enabled)

	var store *secretstore.Store
	if cfg.SecretStore.Path != "" {
		key, err := secretstore.ParseKey(cfg.SecretStore.EncryptionKey)
		if err != nil {
			logrus.Errorf("解析凭证库加密密钥失败: %v", err)
			os.Exit(1)
		}
		store, err = secretstore.Open(secretstore.OpenOptions{Path: cfg.SecretStore.Path, EncryptionKey: key})
		if err != nil {
			logrus.Errorf("打开凭证库失败: %v", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	privateKey, err := resolvePrivateKey(cfg, store)
	if err != nil {
		logrus.Errorf("解析钱包私钥失败: %v", err)
		os.Exit(1)
	}
	if privateKey == nil && !cfg.DryRun {
		logrus.Warn("⚠️ 未配置钱包密钥，强制切换到纸交易模式")
		cfg.DryRun = true
	}

	// 下单端：纸交易模式不创建（引擎对 nil Placer 只记录意图日志）
	var placer lifecycle.OrderPlacer
	if !cfg.DryRun {
		clobClient, err := buildCLOBClient(ctx, cfg, store, privateKey)
		if err != nil {
			logrus.Errorf("初始化 CLOB 客户端失败: %v", err)
			os.Exit(1)
		}
		placer = clobClient
	} else {
		logrus.Warn("📝 纸交易模式：不会发送真实订单")
	}

	// 市场描述符仍走真实 Gamma 接口（无需签名）
	gammaClient, err := client.New(client.Config{ProxyURL: cfg.Proxy})
	if err != nil {
		logrus.Errorf("初始化 Gamma 客户端失败: %v", err)
		os.Exit(1)
	}

	var tickStore *archive.Store
	if cfg.Archive.Path != "" {
		tickStore, err = archive.Open(cfg.Archive.Path)
		if err != nil {
			logrus.Errorf("打开归档数据库失败: %v", err)
			os.Exit(1)
		}
		defer tickStore.Close()
	}

	feedCfg := feed.Config{
		PingInterval:   cfg.Feed.PingInterval,
		LivenessFactor: cfg.Feed.LivenessFactor,
		BackoffBase:    cfg.Feed.BackoffBase,
		BackoffMax:     cfg.Feed.BackoffMax,
		MaxAttempts:    cfg.Feed.MaxAttempts,
	}

	tracker := coinprice.New(coinprice.Config{
		Symbol:   strings.ToLower(cfg.Market.Symbol) + "usdt",
		ProxyURL: cfg.Proxy,
		Feed:     feedCfg,
	})
	if err := tracker.Start(ctx); err != nil {
		logrus.Warnf("⚠️ 参考价格流启动失败（回退到开盘价查询）: %v", err)
	}
	defer tracker.Stop()

	// 熔断器只约束真实下单；未配置阈值时也保留人工 halt/resume 能力
	var breaker *risk.Breaker
	if placer != nil {
		breaker = risk.New(risk.Config{
			MaxConsecutiveErrors: cfg.Risk.MaxConsecutiveErrors,
			DailyLossLimitCents:  cfg.Risk.DailyLossLimitCents,
		})
	}

	mgr := lifecycle.New(lifecycle.Config{
		Spec:          spec,
		ProxyURL:      cfg.Proxy,
		Feed:          feedCfg,
		BinanceSymbol: cfg.BinanceSymbol(),
	}, lifecycle.Deps{
		Markets:    gammaClient,
		OpenPrice:  openprice.New("", cfg.Proxy),
		Placer:     placer,
		Archive:    tickStore,
		Refs:       tracker,
		Breaker:    breaker,
		Strategies: strategyList,
	})

	if cfg.Server.Listen != "" {
		srv := controlplane.New(controlplane.Config{Listen: cfg.Server.Listen}, mgr, tickStore, breaker)
		go func() {
			if err := srv.Run(ctx); err != nil {
				logrus.Errorf("状态接口退出: %v", err)
			}
		}()
	}

	if cfg.Log.ByCycle {
		go rotateLogByCycle(ctx, spec)
	}

	if err := mgr.Run(ctx); err != nil && ctx.Err() == nil {
		logrus.Errorf("引擎退出: %v", err)
		os.Exit(1)
	}
	logrus.Info("✅ 机器人已停止")
}

// buildStrategies 按配置实例化并初始化启用的策略
func buildStrategies(cfg *config.Config) ([]strategies.Strategy, error) {
	var list []strategies.Strategy
	for _, id := range cfg.Enabled {
		s, err := strategies.New(id)
		if err != nil {
			return nil, err
		}
		if err := s.Defaults(); err != nil {
			return nil, fmt.Errorf("策略 %s 默认值: %w", id, err)
		}
		if _, err := cfg.DecodeStrategy(id, s); err != nil {
			return nil, err
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("策略 %s 配置无效: %w", id, err)
		}
		list = append(list, s)
		logrus.Infof("✅ 策略 %s 已加载", id)
	}
	return list, nil
}

// resolvePrivateKey 私钥来源优先级：配置 hex > 配置助记词 > 凭证库
func resolvePrivateKey(cfg *config.Config, store *secretstore.Store) (*ecdsa.PrivateKey, error) {
	if cfg.Wallet.PrivateKey != "" {
		return signing.PrivateKeyFromHex(strings.TrimPrefix(cfg.Wallet.PrivateKey, "0x"))
	}
	if cfg.Wallet.Mnemonic != "" {
		w, err := signing.DeriveWalletFromMnemonic(cfg.Wallet.Mnemonic, cfg.Wallet.DerivationPath)
		if err != nil {
			return nil, err
		}
		return w.PrivateKey, nil
	}
	if store != nil {
		if hexKey, found, err := store.GetString(secretstore.KeyPrivateKeyHex); err != nil {
			return nil, err
		} else if found {
			return signing.PrivateKeyFromHex(strings.TrimPrefix(hexKey, "0x"))
		}
		if mnemonic, found, err := store.GetString(secretstore.KeyMnemonic); err != nil {
			return nil, err
		} else if found {
			path, _, err := store.GetString(secretstore.KeyDerivationPath)
			if err != nil {
				return nil, err
			}
			w, err := signing.DeriveWalletFromMnemonic(mnemonic, path)
			if err != nil {
				return nil, err
			}
			return w.PrivateKey, nil
		}
	}
	return nil, nil
}

// buildCLOBClient 初始化带 L2 凭证的下单客户端；凭证优先从凭证库恢复
func buildCLOBClient(ctx context.Context, cfg *config.Config, store *secretstore.Store, key *ecdsa.PrivateKey) (*client.Client, error) {
	ccfg := client.Config{
		ChainID:       types.ChainPolygon,
		ProxyURL:      cfg.Proxy,
		PrivateKey:    key,
		FunderAddress: cfg.Wallet.FunderAddress,
	}
	if cfg.Wallet.FunderAddress != "" {
		ccfg.SignatureType = types.SignatureTypeGnosisSafe
		logrus.Infof("已配置代理钱包: funder=%s", cfg.Wallet.FunderAddress)
	}
	if store != nil {
		if creds, found, err := store.LoadAPICreds(); err != nil {
			return nil, err
		} else if found {
			ccfg.Creds = creds
		}
	}

	c, err := client.New(ccfg)
	if err != nil {
		return nil, err
	}

	creds, err := c.EnsureCreds(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("获取 API 凭证: %w", err)
	}
	logrus.Infof("API 凭证已就绪: key=%s...", head(creds.Key, 8))
	if store != nil && ccfg.Creds == nil {
		if err := store.SaveAPICreds(creds); err != nil {
			logrus.Warnf("保存 API 凭证失败: %v", err)
		}
	}
	return c, nil
}

// rotateLogByCycle 周期边界时切换日志文件（文件名即周期 slug）
func rotateLogByCycle(ctx context.Context, spec marketspec.MarketSpec) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			slug := spec.Slug(spec.CurrentPeriodStartUnix(now))
			if err := logger.SetCycleSlug(slug); err != nil {
				logrus.Warnf("切换周期日志失败: %v", err)
			}
		}
	}
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
