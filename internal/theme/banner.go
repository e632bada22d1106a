package theme

import (
	"fmt"
)

// Banner returns the startup banner.
func Banner() string {
	const blue = "\033[34m"
	const cyan = "\033[36m"
	const reset = "\033[0m"

	art := "" +
		blue + "  ☁☁  " + cyan + "SKEETSTATS" + reset + blue + "  ☁☁\n" + reset +
		cyan + "   track your posting stats!\n" + reset +
		blue + "   ───────────────────────\n" + reset
	return art
}

// PrintBanner prints the banner to stdout.
func PrintBanner() {
	fmt.Print(Banner())
}
