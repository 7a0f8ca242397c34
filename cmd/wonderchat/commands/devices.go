package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/wonderchat/pkg/audio/portaudio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		var devs []portaudio.DeviceInfo
		err := portaudio.Using(func() (err error) {
			devs, err = portaudio.Devices()
			return err
		})
		if err != nil {
			return err
		}
		if outputJSON || jqQuery != "" || outputFile != "" {
			return outputResult(devs)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tNAME\tIN\tOUT\tRATE\tDEFAULT")
		for _, d := range devs {
			def := ""
			switch {
			case d.DefaultInput && d.DefaultOutput:
				def = "in,out"
			case d.DefaultInput:
				def = "in"
			case d.DefaultOutput:
				def = "out"
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.0f\t%s\n", d.Index, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, def)
		}
		return w.Flush()
	},
}
