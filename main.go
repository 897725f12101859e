// Command authprobe replays fixed auth and REST requests against a hosted
// backend and the operator's website, and prints what came back.
//
// Usage: authprobe [-config file] [-plan name|file.yaml] [-report out.json] [-analyze] [-v]
//
//	authprobe -list
//	authprobe -diff old.json,new.json
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/raysh454/authprobe/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := app.Main(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
