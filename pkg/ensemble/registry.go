package ensemble

import (
	"github.com/hed1ad/ghostml/pkg/detectors"
	"github.com/hed1ad/ghostml/pkg/detectors/cof"
	"github.com/hed1ad/ghostml/pkg/detectors/copod"
	"github.com/hed1ad/ghostml/pkg/detectors/iforest"
	"github.com/hed1ad/ghostml/pkg/detectors/loci"
)

// LOCIRowLimit is the largest dataset LOCI runs on. Above it the quadratic
// proximity comparisons are not worth their cost.
const LOCIRowLimit = 1000

// DefaultAnchor is the detector whose median score anchors the threshold floor.
const DefaultAnchor = "copod"

// Catalog returns every detector the ensemble knows about.
func Catalog() *detectors.Registry {
	r, err := detectors.NewRegistry(
		detectors.Entry{
			Name:        "cof",
			Detector:    cof.New(),
			Sweep:       true,
			Description: "Connectivity-based Outlier Factor, swept over n_neighbors",
		},
		detectors.Entry{
			Name:          "loci",
			Detector:      loci.New(),
			Contamination: 0.1,
			Applies:       detectors.AtMostRows(LOCIRowLimit),
			Description:   "Local Correlation Integral, skipped above 1000 records",
		},
		detectors.Entry{
			Name:          "copod",
			Detector:      copod.New(),
			Contamination: 0.1,
			Description:   "Copula-based outlier detection, threshold anchor",
		},
		detectors.Entry{
			Name:        "iforest",
			Detector:    iforest.New(),
			Description: "Isolation Forest (opt-in)",
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRegistry returns the detectors run when none are selected
// explicitly: cof, loci and copod.
func DefaultRegistry() *detectors.Registry {
	r, err := Catalog().Select("cof", "loci", "copod")
	if err != nil {
		panic(err)
	}
	return r
}
