package logging

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// New builds the console logger of a run. Debug switches to the development
// config, otherwise only INFO and above are written.
func New(debug bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Encoding = "console"
	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}
	return logger.Sugar(), nil
}
