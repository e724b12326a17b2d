package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "06-01-02 15:04:05" // yy-mm-dd HH:MM:ss

var (
	// Logger 全局日志实例
	Logger *logrus.Logger
	// currentLogFile 当前运行日志文件路径
	currentLogFile string
	// fileWriter 运行日志写入器（Close 时关闭）
	fileWriter *lumberjack.Logger
	logMu      sync.Mutex
)

// Config 日志配置
type Config struct {
	Level      string    // 日志级别: debug, info, warn, error
	OutputFile string    // 运行日志文件路径（可选，为空则只输出到控制台）
	MaxSize    int       // 日志文件最大大小（MB）
	MaxBackups int       // 保留的旧日志文件数量
	MaxAge     int       // 保留旧日志文件的天数
	Compress   bool      // 是否压缩旧日志文件
	Console    io.Writer // 控制台输出，默认 os.Stdout
}

func newFormatter() logrus.Formatter {
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: timestampFormat,
	}
}

// Init 初始化日志系统
// 同时设置全局 logrus，使 logrus.WithField() 创建的组件日志也写入运行日志文件。
func Init(config Config) error {
	logMu.Lock()
	defer logMu.Unlock()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}

	console := config.Console
	if console == nil {
		console = os.Stdout
	}
	writers := []io.Writer{console}

	closeFileLocked()
	if config.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0755); err != nil {
			return err
		}
		fileWriter = &lumberjack.Logger{
			Filename:   config.OutputFile,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		}
		writers = append(writers, fileWriter)
		currentLogFile = config.OutputFile
	}

	out := io.MultiWriter(writers...)

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(newFormatter())
	logger.SetOutput(out)

	logrus.SetOutput(out)
	logrus.SetLevel(level)
	logrus.SetFormatter(newFormatter())

	Logger = logger
	return nil
}

// InitDefault 只输出到控制台
func InitDefault() error {
	return Init(Config{Level: "info"})
}

// Close 关闭运行日志文件（全局 logrus 回退到控制台）
func Close() error {
	logMu.Lock()
	defer logMu.Unlock()

	err := closeFileLocked()
	logrus.SetOutput(os.Stdout)
	if Logger != nil {
		Logger.SetOutput(os.Stdout)
	}
	return err
}

func closeFileLocked() error {
	if fileWriter == nil {
		return nil
	}
	err := fileWriter.Close()
	fileWriter = nil
	currentLogFile = ""
	return err
}

// Debugf 记录格式化的 DEBUG 级别日志
func Debugf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Debugf(format, args...)
	}
}

// Infof 记录格式化的 INFO 级别日志
func Infof(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Infof(format, args...)
	}
}

// Warnf 记录格式化的 WARN 级别日志
func Warnf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Warnf(format, args...)
	}
}

// Errorf 记录格式化的 ERROR 级别日志
func Errorf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Errorf(format, args...)
	}
}

// WithField 添加字段到日志上下文
func WithField(key string, value interface{}) *logrus.Entry {
	if Logger != nil {
		return Logger.WithField(key, value)
	}
	return logrus.WithField(key, value)
}

// WithFields 添加多个字段到日志上下文
func WithFields(fields logrus.Fields) *logrus.Entry {
	if Logger != nil {
		return Logger.WithFields(fields)
	}
	return logrus.WithFields(fields)
}

// GetCurrentLogFile 获取当前日志文件路径
func GetCurrentLogFile() string {
	logMu.Lock()
	defer logMu.Unlock()
	return currentLogFile
}
