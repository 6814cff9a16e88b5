package infra

import (
	"fmt"
	"strings"
)

// ANSI Color Codes
const (
	ColorReset  = "\033[0m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
)

// PrintBanner displays the startup banner with the feed mode.
func PrintBanner(cfg *Config, mode string) {
	mode = strings.ToUpper(mode)
	version := cfg.App.Version

	color := ColorGreen
	modeDesc := "LIVE EXCHANGE FEED"

	switch mode {
	case "REPLAY":
		color = ColorCyan
		modeDesc = "JOURNAL REPLAY"
	case "DRY":
		color = ColorYellow
		modeDesc = "DECODE ONLY (NO JOURNAL)"
	}

	fmt.Println()
	fmt.Printf("%s###########################################################%s\n", color, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s#               📡 StateFeed Mirror Engine                #%s\n", color, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s#   MODE:    %-36s #%s\n", color, mode, ColorReset)
	fmt.Printf("%s#   TYPE:    %-36s #%s\n", color, modeDesc, ColorReset)
	fmt.Printf("%s#   VERSION: %-36s #%s\n", color, version, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s###########################################################%s\n", color, ColorReset)
	fmt.Println()
}
