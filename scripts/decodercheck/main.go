// Decoder sweep: samples the 32-bit word space, asserting that every
// word decodes to some class and that re-encoding a decoded word
// reproduces the fields the format defines.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/sarchlab/axpsim/insts"
)

func main() {
	const samples = 1 << 24

	decoder := insts.NewDecoder()
	rng := rand.New(rand.NewSource(1))

	classCounts := make(map[insts.Class]uint64)
	var roundTripFailures, checked uint64

	start := time.Now()
	for i := 0; i < samples; i++ {
		word := rng.Uint32()
		inst := decoder.Decode(word)
		classCounts[inst.Class]++

		// Illegal words carry no encodable payload; everything else
		// must re-encode bit-exactly.
		if inst.Class == insts.ClassIllegal {
			continue
		}
		checked++
		if insts.Encode(inst) != word {
			roundTripFailures++
			if roundTripFailures <= 10 {
				fmt.Printf("round-trip failure: %08x -> %s -> %08x\n",
					word, inst.String(), insts.Encode(inst))
			}
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("decoded %d sampled words in %v (%.0f/s)\n",
		samples, elapsed, float64(samples)/elapsed.Seconds())
	fmt.Println("class distribution:")
	for class := insts.Class(0); int(class) < insts.ClassCount; class++ {
		if n := classCounts[class]; n > 0 {
			fmt.Printf("  %-12s %10d (%.2f%%)\n",
				class, n, 100*float64(n)/float64(samples))
		}
	}
	fmt.Printf("re-encoded %d words, %d mismatches\n", checked, roundTripFailures)

	if roundTripFailures > 0 {
		os.Exit(1)
	}
}
