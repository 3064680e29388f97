// Command claimdesk は保険金請求の審査ダッシュボード向けBFFサーバーを起動する。
package main

import (
	"log/slog"
	"os"

	"github.com/insurai/claimdesk/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("claimdesk exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
