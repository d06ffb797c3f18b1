// Package xlog provides the leveled logger used throughout the coordinator,
// shaped after the 3rdparty/glog call sites used across the teacher
// (glog.Infof, glog.Warningf, glog.Errorf, glog.FastV(4, ...)) but backed by
// logrus, since no 3rdparty/glog source made it into the retrieval pack.
package xlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = logrus.New()

func init() {
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	base.SetLevel(logrus.InfoLevel)
}

// SetVerbose raises the logger to debug level, the rough equivalent of
// glog's -v flag.
func SetVerbose(v bool) {
	if v {
		base.SetLevel(logrus.DebugLevel)
	} else {
		base.SetLevel(logrus.InfoLevel)
	}
}

func Infof(format string, args ...interface{})    { base.Infof(format, args...) }
func Warningf(format string, args ...interface{}) { base.Warnf(format, args...) }
func Errorf(format string, args ...interface{})   { base.Errorf(format, args...) }
func Error(args ...interface{})                   { base.Error(args...) }
func Infoln(args ...interface{})                  { base.Infoln(args...) }

// Level is a fake V-level handle, mirroring glog.FastV(n, module) call sites
// (e.g. reb/global.go's glog.FastV(4, glog.SmoduleReb)) with a single global
// verbosity instead of per-module verbosity - this subsystem has exactly one
// module worth logging at debug granularity.
type Level bool

func V(_ int) Level {
	return Level(base.IsLevelEnabled(logrus.DebugLevel))
}

func (l Level) Infof(format string, args ...interface{}) {
	if l {
		base.Debugf(format, args...)
	}
}
