// ./main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/ssobridge/cmd"
)

func main() {
	// A signal cancels the sign-on attempt, which still releases the browser.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		stop()
		code := 1
		if errors.Is(err, context.Canceled) {
			code = 130
		}
		os.Exit(code)
	}
}
