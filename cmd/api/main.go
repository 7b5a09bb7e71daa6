package main

import (
	"go.uber.org/fx"

	"pasarlive/internal/app"
)

func main() {
	fx.New(
		app.Module(),
		app.Logger(),
	).Run()
}
