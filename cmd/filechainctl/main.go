// SPDX-License-Identifier: MIT

// Command filechainctl inspects and maintains a filechain ledger offline.
package main

import (
	"context"
	"os"

	"github.com/ManuGH/filechain/internal/log"
)

func main() {
	ctx := log.WithSurface(context.Background(), log.SurfaceCLI)
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
