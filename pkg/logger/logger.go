// Package logger 初始化全局 logrus 输出：控制台 + lumberjack 轮转文件，
// 支持按市场周期切分日志文件（每个周期一个文件，文件名即周期 slug）。
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日志配置
type Config struct {
	Level      string // debug / info / warn / error
	OutputFile string // 为空时只输出到控制台
	MaxSize    int    // 单文件最大 MB
	MaxBackups int    // 保留的旧文件数
	MaxAge     int    // 保留天数
	Compress   bool
	LogByCycle bool // 按市场周期切分日志文件
}

var (
	mu             sync.Mutex
	savedConfig    Config
	currentLogFile string
	currentSlug    string
)

// Init 初始化全局日志输出
func Init(config Config) error {
	mu.Lock()
	defer mu.Unlock()
	savedConfig = config
	return applyOutput(config, cycleFileName(config.OutputFile, currentSlug))
}

// SetCycleSlug 进入新周期时调用：按 slug 切换日志文件。
// 未启用 LogByCycle 或未配置文件输出时为空操作。
func SetCycleSlug(slug string) error {
	mu.Lock()
	defer mu.Unlock()
	if !savedConfig.LogByCycle || savedConfig.OutputFile == "" || slug == currentSlug {
		return nil
	}
	currentSlug = slug
	path := cycleFileName(savedConfig.OutputFile, slug)
	if path == currentLogFile {
		return nil
	}
	if currentLogFile != "" {
		fmt.Printf("[日志切换] %s -> %s\n", currentLogFile, path)
	}
	return applyOutput(savedConfig, path)
}

// cycleFileName 周期日志文件名：{dir}/{slug}.log；slug 为空时用原始路径
func cycleFileName(basePath, slug string) string {
	if basePath == "" || slug == "" {
		return basePath
	}
	dir := filepath.Dir(basePath)
	ext := filepath.Ext(basePath)
	if ext == "" {
		ext = ".log"
	}
	return filepath.Join(dir, slug+ext)
}

func applyOutput(config Config, logFilePath string) error {
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	formatter := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05",
		ForceColors:     true,
	}

	writers := []io.Writer{os.Stdout}
	if logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
			return err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   logFilePath,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		})
		currentLogFile = logFilePath
	}

	// 设置全局 logrus：各包 logrus.WithField 创建的 entry 统一写入这里
	out := io.MultiWriter(writers...)
	logrus.SetOutput(out)
	logrus.SetLevel(level)
	logrus.SetFormatter(formatter)
	return nil
}

// InitDefault 默认配置：info 级别、logs/ 下按周期切分
func InitDefault() error {
	return Init(Config{
		Level:      "info",
		OutputFile: "logs/combined.log",
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
		LogByCycle: true,
	})
}

// CurrentLogFile 返回当前日志文件路径
func CurrentLogFile() string {
	mu.Lock()
	defer mu.Unlock()
	return currentLogFile
}

// 保留一个便捷入口给不方便引入 logrus 的调用方
func Infof(format string, args ...interface{}) { logrus.Infof(format, args...) }
