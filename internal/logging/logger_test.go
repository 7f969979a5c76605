package logging

import (
	"testing"

	"github.com/maxatome/go-testdeep/td"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	logger, err := New("WARN", "json")
	td.Require(t).CmpNoError(err)
	td.CmpFalse(t, logger.Core().Enabled(zapcore.InfoLevel))
	td.CmpTrue(t, logger.Core().Enabled(zapcore.ErrorLevel))

	logger, err = New("debug", "console")
	td.Require(t).CmpNoError(err)
	td.CmpTrue(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = New("loud", "json")
	td.CmpContains(t, err, "parse log level")

	_, err = New("info", "xml")
	td.CmpString(t, err, `unknown log format "xml"`)
}
