// Command server は旅行予約APIのエントリーポイント。
//
//	server [serve|migrate|bootstrap-admin|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/travelbook/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "travelbook: %v\n", err)
		os.Exit(1)
	}
}
