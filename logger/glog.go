package logger

import "github.com/golang/glog"

// GlogLogger implements Logger on top of glog.
type GlogLogger struct{}

func NewGlogLogger() Logger {
	return &GlogLogger{}
}

func (l *GlogLogger) Debugf(msg string, args ...any) { glog.Infof(msg, args...) }
func (l *GlogLogger) Infof(msg string, args ...any)  { glog.Infof(msg, args...) }
func (l *GlogLogger) Warnf(msg string, args ...any)  { glog.Warningf(msg, args...) }
func (l *GlogLogger) Errorf(msg string, args ...any) { glog.Errorf(msg, args...) }
func (l *GlogLogger) Fatalf(msg string, args ...any) { glog.Fatalf(msg, args...) }
