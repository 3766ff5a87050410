// Command tbookers はtbookersクライアントのCLIとローカルエージェントを提供する。
package main

import (
	"fmt"
	"os"

	"github.com/kojeffi/tbookers/internal/app"
	"github.com/kojeffi/tbookers/internal/model"
)

func main() {
	if err := app.Run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		msg := model.UserMessage(err)
		if model.Classify(err) == model.CategorySystem {
			msg = err.Error()
		}
		fmt.Fprintln(os.Stderr, msg)
		os.Exit(1)
	}
}
