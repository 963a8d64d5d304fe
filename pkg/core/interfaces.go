package core

// Logger interface for estimator logging
type Logger interface {
	Printf(format string, args ...interface{})
}
