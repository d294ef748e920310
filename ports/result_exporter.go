package ports

import (
	"gorisk/domain/simulation"
)

// ResultExporter writes a finished result to an external report format
type ResultExporter interface {
	Export(result *simulation.Result, path string) error
}
