// Command pricer 为欧式期权定价并打印结果。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/wyfcoding/quant/xerrors"
)

// version 在构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode 参数错误返回 2，被中断返回 130，其余返回 1。
func exitCode(err error) int {
	xe, ok := xerrors.FromError(err)
	if !ok {
		return 1
	}
	switch {
	case xe.HTTPStatus() == http.StatusBadRequest:
		return 2
	case xe.Type == xerrors.ErrCanceled:
		return 130
	default:
		return 1
	}
}
