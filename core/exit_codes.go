package core

import (
	"os"
	"syscall"
)

// Process exit codes. Signal exits follow the shell's 128+n convention.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
	ExitCodeConfig  = 2
	ExitCodeSIGINT  = 128 + int(syscall.SIGINT)
	ExitCodeSIGTERM = 128 + int(syscall.SIGTERM)
)

// ExitCodeForSignal returns 128 plus the signal number, or ExitCodeSIGINT
// for signals without one.
func ExitCodeForSignal(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok && s > 0 {
		return 128 + int(s)
	}
	return ExitCodeSIGINT
}

// ExitCode maps the outcome of a run to its exit code. A received signal
// wins over err, and configuration errors are told apart from run failures.
//
// Usage:
//
//	summary, err := runExperiment(ctx, cfg, corpus, logger)
//	return core.ExitCode(err, handler.Signal())
func ExitCode(err error, sig os.Signal) int {
	switch {
	case sig != nil:
		return ExitCodeForSignal(sig)
	case err == nil:
		return ExitCodeSuccess
	}
	if _, ok := IsConfigError(err); ok {
		return ExitCodeConfig
	}
	return ExitCodeError
}
