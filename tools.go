//go:build tools

// Package lookingglass records development tools in go.mod so every checkout
// formats with the same version:
//
//	go run golang.org/x/tools/cmd/goimports -w .
package lookingglass

import (
	_ "golang.org/x/tools/cmd/goimports"
)
