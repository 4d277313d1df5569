package logging

import (
	"context"
	"os"
	"strings"

	"github.com/shinyyama/campus-exchange/internal/reqctx"
	"github.com/sirupsen/logrus"
)

// Setup configures the process-wide logrus logger.
func Setup(level, format string) {
	logrus.SetOutput(os.Stdout)
	if strings.EqualFold(format, "text") {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

// FromContext returns an entry carrying the request id and uid found in ctx.
func FromContext(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(logrus.StandardLogger())
	if ctx == nil {
		return entry
	}
	if rid := reqctx.RequestID(ctx); rid != "" {
		entry = entry.WithField("rid", rid)
	}
	if uid := reqctx.UID(ctx); uid != "" {
		entry = entry.WithField("uid", uid)
	}
	return entry
}
