package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.SugaredLogger
}

// NewLogger builds a production zap logger. format is "json" or "console".
func NewLogger(level, format string) (*Logger, error) {
	cfg := zap.NewProductionConfig()

	// 设置日志格式
	if strings.EqualFold(format, "console") || strings.EqualFold(format, "text") {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	// 设置日志级别
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return New(z), nil
}

// New wraps an existing zap logger, e.g. one from zaptest.
func New(z *zap.Logger) *Logger {
	return &Logger{SugaredLogger: z.Sugar()}
}

func Nop() *Logger {
	return New(zap.NewNop())
}

func (l *Logger) Zap() *zap.Logger {
	return l.Desugar()
}

func (l *Logger) SSHConnectionAttempt(connType, target string) {
	l.Infow("ssh connection attempt",
		"type", "ssh_connection",
		"method", connType,
		"target", target,
	)
}

func (l *Logger) DeploymentStep(step, node string) {
	l.Infow("deployment step",
		"type", "deployment",
		"step", step,
		"node", node,
	)
}

func (l *Logger) DeploymentError(step string, err error) {
	l.Errorw("deployment step failed",
		"type", "deployment",
		"step", step,
		"error", err,
	)
}

func (l *Logger) DeploymentSuccess(step string) {
	l.Infow("deployment step succeeded",
		"type", "deployment",
		"step", step,
	)
}

func (l *Logger) NodeState(cluster, ip, state string) {
	l.Infow("node state",
		"type", "restart",
		"cluster", cluster,
		"ip", ip,
		"state", state,
	)
}
