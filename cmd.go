// Copyright (C) The SimBA-hap Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package simbahap

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// version is overridden at build time via -ldflags.
var version = "development"

func Main() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		logrus.StandardLogger().Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	}
	args := os.Args[1:]
	if len(args) == 1 {
		switch args[0] {
		case "version", "-version", "--version":
			fmt.Println(version)
			os.Exit(0)
		}
	}
	os.Exit((&simulator{}).RunCommand(os.Args[0], args, os.Stdin, os.Stdout, os.Stderr))
}
