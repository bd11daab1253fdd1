package profiler

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// ProcessorReport holds what one executive observed.
type ProcessorReport struct {
	Processor    int            `json:"processor"`
	CTAs         int            `json:"ctas"`
	Warps        uint64         `json:"warps"`
	Barriers     uint64         `json:"barrier_releases"`
	Compilations int            `json:"compilations"`
	Entries      []EntryStat    `json:"entries"`
	Liveness     []LivenessStat `json:"liveness"`
	Walltime     float64        `json:"walltime"`
	Successful   bool           `json:"successful"`
}

// Report is the result of one kernel launch.
type Report struct {
	Kernel     string            `json:"kernel"`
	Launch     string            `json:"launch"`
	Mode       string            `json:"mode"`
	Walltime   float64           `json:"walltime"`
	Processors []ProcessorReport `json:"processors"`
	Entries    []EntryStat       `json:"entries"`
}

// Write stores the report as indented JSON.
func (r *Report) Write(path string) error {
	jsonStr, err := json.MarshalIndent(r, "", " ")
	if err != nil {
		return errors.Wrap(err, "encoding report")
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating report %s", path)
	}
	defer file.Close()

	_, err = file.Write(jsonStr)
	return errors.Wrapf(err, "writing report %s", path)
}
