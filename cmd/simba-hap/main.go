// Copyright (C) The SimBA-hap Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	simbahap "github.com/computationalgenomics/simba-hap"
)

func main() {
	simbahap.Main()
}
