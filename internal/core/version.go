package eradio

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
)

var version = ""
var builddate = ""

func appVersion() string {
	if version == "" {
		if build, ok := debug.ReadBuildInfo(); ok {
			version = build.Main.Version
		}
	}
	return version
}

// LogVersion print version to log
func LogVersion() {
	slog.Info("eRadio", "version", appVersion(), "built", builddate)
}

// Banner Print Version on w, or stdout when w is nil
func Banner(w io.Writer, station string) {
	if w == nil {
		w = os.Stdout
	}
	banner := []string{
		"\n        ____            _ _       \n",
		"   ___ |  _ \\ __ _  __| (_) ___  \n",
		"  / _ \\| |_) / _` |/ _` | |/ _ \\ \n",
		" |  __/|  _ < (_| | (_| | | (_) |\n",
		"  \\___||_| \\_\\__,_|\\__,_|_|\\___/  %s\n(%s)\n\n",
	}

	if !strings.Contains(builddate, runtime.Version()) {
		builddate += " using " + runtime.Version()
	}

	for _, v := range banner {
		if !strings.Contains(v, "%s") {
			fmt.Fprint(w, v)
		} else {
			fmt.Fprintf(w, v, appVersion(), builddate)
		}
	}

	if station != "" {
		fmt.Fprintf(w, "Default Station: %s\n", station)
	}
}
