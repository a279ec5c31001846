package logging

import (
	"github.com/sirupsen/logrus"
)

// NewLogger は JSON 形式で出力するロガーを作成します
func NewLogger(level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(level)
	return logger
}

// NewLoggerWithService は全エントリに service フィールドを付けたロガーを作成します
func NewLoggerWithService(serviceName string, level logrus.Level) *logrus.Entry {
	return NewLogger(level).WithField("service", serviceName)
}
