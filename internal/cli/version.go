package cli

import (
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version is overridden at link time with -ldflags "-X".
var Version = "0.1.0"

func GetVersionString() string {
	v := Version
	if info, ok := debug.ReadBuildInfo(); ok {
		v += "+" + info.GoVersion
	}
	return v
}

// NewVersionCmd returns the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version of the qsync CLI",
		Run: func(cc *cobra.Command, _ []string) {
			cc.Println(GetVersionString())
		},
	}
}
