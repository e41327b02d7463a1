package main

import (
    "log"

    "github.com/spf13/cobra"

    forgecli "github.com/amirimatin/go-forgewatch/pkg/cli"
)

func main() {
    if err := newRoot().Execute(); err != nil {
        log.Fatal(err)
    }
}

func newRoot() *cobra.Command {
    root := &cobra.Command{
        Use:           "forgewatchctl",
        Short:         "go-forgewatch delegate monitor CLI",
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    // Attach all monitor commands from pkg/cli for reuse in services
    forgecli.AddAll(root)
    return root
}
