package main

import (
	"context"
)

func main() {
	Execute(context.Background(), nil)
}
