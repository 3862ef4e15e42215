// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// solarperf is the fleet performance service and its companion CLI.
//
//	solarperf serve            run the dashboard API
//	solarperf report --site X  print a one-shot performance report
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
