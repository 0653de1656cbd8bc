package utils

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the service logger. Production logs JSON at info level,
// development logs to the console at debug level. When logDir is set the
// output goes to a dated file in that directory instead of stderr.
func NewLogger(production bool, logDir string) (*zap.Logger, error) {

	var config zap.Config

	prefix := "development_"

	if production {

		config = zap.NewProductionConfig()

		config.Level.SetLevel(zapcore.InfoLevel)

		prefix = "production_"

	} else {

		config = zap.NewDevelopmentConfig()

		config.Level.SetLevel(zapcore.DebugLevel)
	}

	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if logDir != "" {

		if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
			return nil, err
		}

		config.OutputPaths = []string{

			filepath.Join(logDir, prefix+time.Now().Format("2006_01_02")+".log"),
		}
	}

	return config.Build()
}
