package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hed1ad/ghostml/pkg/ensemble"
)

type detectorInfo struct {
	Name        string  `json:"name"`
	Default     bool    `json:"default"`
	Anchor      bool    `json:"anchor"`
	Factor      float64 `json:"sensitivity_factor"`
	Description string  `json:"description"`
}

var detectorsCmd = &cobra.Command{
	Use:   "detectors",
	Short: "List the available detectors",
	RunE:  runDetectors,
}

func init() {
	rootCmd.AddCommand(detectorsCmd)
}

func runDetectors(cmd *cobra.Command, args []string) error {
	defaults := ensemble.DefaultRegistry().Names()
	factors := ensemble.DefaultSensitivityFactors()

	var infos []detectorInfo
	for _, e := range ensemble.Catalog().Entries() {
		infos = append(infos, detectorInfo{
			Name:        e.Name,
			Default:     slices.Contains(defaults, e.Name),
			Anchor:      e.Name == ensemble.DefaultAnchor,
			Factor:      factors[e.Name],
			Description: e.Description,
		})
	}

	w := cmd.OutOrStdout()
	if strings.EqualFold(flagFormat, "json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	return printDetectorTable(w, infos)
}

func printDetectorTable(w io.Writer, infos []detectorInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "NAME\tDEFAULT\tFACTOR\tDESCRIPTION\n")
	fmt.Fprintf(tw, "----\t-------\t------\t-----------\n")
	for _, d := range infos {
		def := "no"
		if d.Default {
			def = "yes"
		}
		if d.Anchor {
			def += " (anchor)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%g\t%s\n", d.Name, def, d.Factor, d.Description)
	}
	return tw.Flush()
}
