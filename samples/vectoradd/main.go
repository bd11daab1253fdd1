package main

import (
	"flag"

	"gitlab.com/akita/simtexec/benchmarks/vectoradd"
	"gitlab.com/akita/simtexec/samples/runner"
)

var width = flag.Int("width", 4096, "The number of elements in each vector.")
var blockDim = flag.Int("block-dim", 64, "The number of threads per CTA.")

func main() {
	flag.Parse()

	runner := new(runner.Runner).ParseFlag().Init()

	benchmark := vectoradd.NewBenchmark()
	benchmark.Width = *width
	benchmark.BlockDim = *blockDim

	runner.AddBenchmark(benchmark)

	runner.Run()
}
