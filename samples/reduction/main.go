package main

import (
	"flag"

	"gitlab.com/akita/simtexec/benchmarks/reduction"
	"gitlab.com/akita/simtexec/samples/runner"
)

var numBlocks = flag.Int("blocks", 64, "The number of CTAs.")
var blockDim = flag.Int("block-dim", 128,
	"The number of threads per CTA, a power of two.")

func main() {
	flag.Parse()

	runner := new(runner.Runner).ParseFlag().Init()

	benchmark := reduction.NewBenchmark()
	benchmark.NumBlocks = *numBlocks
	benchmark.BlockDim = *blockDim

	runner.AddBenchmark(benchmark)

	runner.Run()
}
