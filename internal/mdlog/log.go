// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mdlog provides leveled logging for the middleware core.
//
// Time/Date are not logged by default because systemd adds them for
// us (change with SetLogDateTime). Uses these prefixes:
// https://www.freedesktop.org/software/systemd/man/sd-daemon.html
package mdlog

import (
	"fmt"
	"io"
	"log"
	"os"
)

var logDateTime bool

var (
	DebugWriter io.Writer = os.Stderr
	NoteWriter  io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
	CritWriter  io.Writer = os.Stderr
)

var (
	DebugPrefix string = "<7>[DEBUG]    "
	InfoPrefix  string = "<6>[INFO]     "
	NotePrefix  string = "<5>[NOTICE]   "
	WarnPrefix  string = "<4>[WARNING]  "
	ErrPrefix   string = "<3>[ERROR]    "
	CritPrefix  string = "<2>[CRITICAL] "
)

var (
	debugLog = log.New(DebugWriter, DebugPrefix, 0)
	infoLog  = log.New(InfoWriter, InfoPrefix, 0)
	noteLog  = log.New(NoteWriter, NotePrefix, log.Lshortfile)
	warnLog  = log.New(WarnWriter, WarnPrefix, log.Lshortfile)
	errLog   = log.New(ErrWriter, ErrPrefix, log.Llongfile)
	critLog  = log.New(CritWriter, CritPrefix, log.Llongfile)

	debugTimeLog = log.New(DebugWriter, DebugPrefix, log.LstdFlags)
	infoTimeLog  = log.New(InfoWriter, InfoPrefix, log.LstdFlags)
	noteTimeLog  = log.New(NoteWriter, NotePrefix, log.LstdFlags|log.Lshortfile)
	warnTimeLog  = log.New(WarnWriter, WarnPrefix, log.LstdFlags|log.Lshortfile)
	errTimeLog   = log.New(ErrWriter, ErrPrefix, log.LstdFlags|log.Llongfile)
	critTimeLog  = log.New(CritWriter, CritPrefix, log.LstdFlags|log.Llongfile)
)

// SetLevel gates writers below the requested level to io.Discard.
func SetLevel(lvl string) {
	switch lvl {
	case "crit":
		ErrWriter = io.Discard
		fallthrough
	case "err", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		NoteWriter = io.Discard
		fallthrough
	case "notice":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
		// nothing to do
	default:
		fmt.Fprintf(os.Stderr, "mdlog: invalid loglevel %#v, using 'debug'\n", lvl)
		SetLevel("debug")
	}
}

// SetLogDateTime toggles the LstdFlags date/time prefix.
func SetLogDateTime(v bool) {
	logDateTime = v
}

func printStr(v ...interface{}) string { return fmt.Sprint(v...) }

func Debug(v ...interface{}) {
	if DebugWriter != io.Discard {
		out := printStr(v...)
		if logDateTime {
			debugTimeLog.Output(2, out)
		} else {
			debugLog.Output(2, out)
		}
	}
}

func Info(v ...interface{}) {
	if InfoWriter != io.Discard {
		out := printStr(v...)
		if logDateTime {
			infoTimeLog.Output(2, out)
		} else {
			infoLog.Output(2, out)
		}
	}
}

func Note(v ...interface{}) {
	if NoteWriter != io.Discard {
		out := printStr(v...)
		if logDateTime {
			noteTimeLog.Output(2, out)
		} else {
			noteLog.Output(2, out)
		}
	}
}

func Warn(v ...interface{}) {
	if WarnWriter != io.Discard {
		out := printStr(v...)
		if logDateTime {
			warnTimeLog.Output(2, out)
		} else {
			warnLog.Output(2, out)
		}
	}
}

func Err(v ...interface{}) {
	if ErrWriter != io.Discard {
		out := printStr(v...)
		if logDateTime {
			errTimeLog.Output(2, out)
		} else {
			errLog.Output(2, out)
		}
	}
}

func Crit(v ...interface{}) {
	if CritWriter != io.Discard {
		out := printStr(v...)
		if logDateTime {
			critTimeLog.Output(2, out)
		} else {
			critLog.Output(2, out)
		}
	}
}

// Fatal logs at error level and terminates the process.
func Fatal(v ...interface{}) {
	Err(v...)
	os.Exit(1)
}

func printfStr(format string, v ...interface{}) string { return fmt.Sprintf(format, v...) }

func Debugf(format string, v ...interface{}) {
	if DebugWriter != io.Discard {
		out := printfStr(format, v...)
		if logDateTime {
			debugTimeLog.Output(2, out)
		} else {
			debugLog.Output(2, out)
		}
	}
}

func Infof(format string, v ...interface{}) {
	if InfoWriter != io.Discard {
		out := printfStr(format, v...)
		if logDateTime {
			infoTimeLog.Output(2, out)
		} else {
			infoLog.Output(2, out)
		}
	}
}

func Notef(format string, v ...interface{}) {
	if NoteWriter != io.Discard {
		out := printfStr(format, v...)
		if logDateTime {
			noteTimeLog.Output(2, out)
		} else {
			noteLog.Output(2, out)
		}
	}
}

func Warnf(format string, v ...interface{}) {
	if WarnWriter != io.Discard {
		out := printfStr(format, v...)
		if logDateTime {
			warnTimeLog.Output(2, out)
		} else {
			warnLog.Output(2, out)
		}
	}
}

func Errf(format string, v ...interface{}) {
	if ErrWriter != io.Discard {
		out := printfStr(format, v...)
		if logDateTime {
			errTimeLog.Output(2, out)
		} else {
			errLog.Output(2, out)
		}
	}
}

func Fatalf(format string, v ...interface{}) {
	Errf(format, v...)
	os.Exit(1)
}
