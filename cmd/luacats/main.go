// Command luacats checks, documents, indexes and serves LuaCATS stub
// libraries.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dshills/luacats-mcp/internal/cli"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	err := cli.Execute(context.Background(), cli.BuildInfo{
		Version:   version,
		BuildTime: buildTime,
	})
	if errors.Is(err, cli.ErrProblemsFound) {
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "luacats: %v\n", err)
		os.Exit(1)
	}
}
