//go:build tools

package tools

// Tool dependencies pinned in go.mod. Regenerate mocks with:
//
//	go run github.com/vektra/mockery/v2
import (
	_ "github.com/vektra/mockery/v2"
)
