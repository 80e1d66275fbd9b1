package ux

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Confirm prompts for approval of a destructive operation, listing what would
// be overwritten. Returns true on "y"/"yes".
func Confirm(prompt string, overwrites []int) bool {
	if len(overwrites) > 0 {
		fmt.Printf("\n  %s⚠ This will overwrite existing chapters: %v%s\n", Yellow, overwrites, Reset)
	}
	fmt.Printf("  %s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
