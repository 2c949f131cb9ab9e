// Package nlog is hoplite-go's thin logging facade: a handful of leveled
// helpers over github.com/golang/glog, plus an FastV-style verbose-tracing
// gate so call sites in hot paths (the bulk transport send/receive loops)
// can skip formatting work when verbose logging isn't enabled.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"github.com/golang/glog"
)

// SmoduleTransport, SmoduleControl, SmoduleDirectory name the subsystem
// a FastV call site belongs to. FastV does not filter on them.
const (
	SmoduleTransport = "transport"
	SmoduleControl   = "control"
	SmoduleDirectory = "directory"
)

func Infof(format string, args ...any)    { glog.Infof(format, args...) }
func Infoln(args ...any)                  { glog.Infoln(args...) }
func Warningf(format string, args ...any) { glog.Warningf(format, args...) }
func Warningln(args ...any)               { glog.Warningln(args...) }
func Errorf(format string, args ...any)   { glog.Errorf(format, args...) }
func Errorln(args ...any)                 { glog.Errorln(args...) }
func Fatalf(format string, args ...any)   { glog.Fatalf(format, args...) }
func Fatalln(args ...any)                 { glog.Fatalln(args...) }

// FastV reports whether verbose logging at or above level is enabled. The
// module argument is accepted for call-site symmetry with glog's own
// FastV(level, module) idiom and is otherwise unused. glog.V is called from
// this file, so a -vmodule pattern matches nlog.go, not the call site.
func FastV(level glog.Level, _module string) bool {
	return bool(glog.V(level))
}
