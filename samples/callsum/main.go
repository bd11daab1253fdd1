package main

import (
	"flag"

	"gitlab.com/akita/simtexec/benchmarks/callsum"
	"gitlab.com/akita/simtexec/samples/runner"
)

var numBlocks = flag.Int("blocks", 16, "The number of CTAs.")
var blockDim = flag.Int("block-dim", 64, "The number of threads per CTA.")
var depth = flag.Int("depth", 16, "The deepest call chain of a thread.")

func main() {
	flag.Parse()

	runner := new(runner.Runner).ParseFlag().Init()

	benchmark := callsum.NewBenchmark()
	benchmark.NumBlocks = *numBlocks
	benchmark.BlockDim = *blockDim
	benchmark.MaxDepth = *depth

	runner.AddBenchmark(benchmark)

	runner.Run()
}
