// Package printer is the thin shell between the dispatch engine and the
// host print system. Anything beyond handing the document to CUPS lives on
// the other side of the PrintExecutor interface.
package printer

import (
	"context"
	"fmt"
	"os/exec"
)

// LP submits documents through the CUPS lp command. Resolve maps a stored
// document id to its on-disk path.
type LP struct {
	Resolve func(fileID string) string
}

func NewLP(resolve func(string) string) *LP {
	return &LP{Resolve: resolve}
}

func (p *LP) Print(ctx context.Context, fileID, printerName string) error {
	path := p.Resolve(fileID)

	cmd := exec.CommandContext(ctx, "lp", "-d", printerName, path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("lp failed for %s on %s: %v: %s", fileID, printerName, err, output)
	}
	return nil
}
