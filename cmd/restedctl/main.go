// restedctl reads and writes REST resources through the rested cache.
//
// Usage:
//
//	restedctl get users/12
//	restedctl list users --param limit=10
//	restedctl save users '{"name":"Ann"}'
//	restedctl delete users/12
//	restedctl cache ls
//	restedctl login auth/token --user alice
//	restedctl monitor --metrics-addr :9090
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
