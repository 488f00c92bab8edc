package observability

import (
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"camera-kingdom/internal/config"
)

// NewLogger builds the JSON console logger. With exportToOtel the console
// core is teed into the OpenTelemetry log bridge.
func NewLogger(exportToOtel bool) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		zap.InfoLevel,
	)

	if exportToOtel {
		otelCore := otelzap.NewCore(config.ServiceName,
			otelzap.WithLoggerProvider(global.GetLoggerProvider()),
		)
		core = zapcore.NewTee(otelCore, core)
	}

	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service.name", config.ServiceName)),
	)
}
