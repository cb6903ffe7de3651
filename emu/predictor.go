package emu

// Predictor sizes. Both must stay powers of two.
const (
	bhtSize = 1024
	btbSize = 256

	historyBits = 16
)

// PredictorStats holds statistics for one branch predictor.
type PredictorStats struct {
	// Predictions is the total number of branch predictions made.
	Predictions uint64
	// Correct is the number of correct predictions.
	Correct uint64
	// Mispredictions is the number of incorrect predictions.
	Mispredictions uint64
	// BTBHits is the number of BTB hits.
	BTBHits uint64
	// BTBMisses is the number of BTB misses.
	BTBMisses uint64
}

// Accuracy returns the prediction accuracy as a percentage.
func (s PredictorStats) Accuracy() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Predictions) * 100
}

// MispredictionRate returns the misprediction rate as a percentage.
func (s PredictorStats) MispredictionRate() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Mispredictions) / float64(s.Predictions) * 100
}

// BTBHitRate returns the BTB hit rate as a percentage.
func (s PredictorStats) BTBHitRate() float64 {
	total := s.BTBHits + s.BTBMisses
	if total == 0 {
		return 0
	}
	return float64(s.BTBHits) / float64(total) * 100
}

// Prediction represents a branch prediction result.
type Prediction struct {
	// Taken indicates whether the branch is predicted to be taken.
	Taken bool
	// Target is the predicted target address (if known from BTB).
	Target uint64
	// TargetKnown indicates whether the target address is known.
	TargetKnown bool
}

// Predictor is a gshare direction predictor with a branch target
// buffer: a table of 2-bit saturating counters indexed by the PC
// hashed with a 16-bit global history register.
type Predictor struct {
	// Counter states: 0=strongly not taken, 1=weakly not taken,
	// 2=weakly taken, 3=strongly taken.
	bht []uint8

	btb      []btbEntry
	btbValid []bool

	// Global history of recent branch outcomes, most recent in bit 0.
	history uint64

	stats PredictorStats
}

// btbEntry represents an entry in the branch target buffer.
type btbEntry struct {
	pc     uint64 // the PC of the branch instruction
	target uint64 // the target address
}

// NewPredictor creates a predictor with every counter weakly taken, a
// bias that favors the backward loop branches dominating most code.
func NewPredictor() *Predictor {
	p := &Predictor{
		bht:      make([]uint8, bhtSize),
		btb:      make([]btbEntry, btbSize),
		btbValid: make([]bool, btbSize),
	}
	for i := range p.bht {
		p.bht[i] = 2
	}
	return p
}

// bhtIndex hashes the PC with the global history. Instruction words
// are 4-byte aligned, so the low two PC bits carry nothing.
func (p *Predictor) bhtIndex(pc uint64) uint32 {
	return uint32((pc>>2 ^ p.history) & (bhtSize - 1))
}

// btbIndex computes the BTB index for a given PC.
func (p *Predictor) btbIndex(pc uint64) uint32 {
	return uint32((pc >> 2) & (btbSize - 1))
}

// Predict makes a branch prediction for the given PC.
func (p *Predictor) Predict(pc uint64) Prediction {
	pred := Prediction{}

	counter := p.bht[p.bhtIndex(pc)]
	pred.Taken = counter >= 2

	btbIdx := p.btbIndex(pc)
	if p.btbValid[btbIdx] && p.btb[btbIdx].pc == pc {
		pred.Target = p.btb[btbIdx].target
		pred.TargetKnown = true
		p.stats.BTBHits++
	} else {
		p.stats.BTBMisses++
	}

	p.stats.Predictions++
	return pred
}

// Update trains the predictor with the actual branch outcome. The
// counter index is computed with the history as it stood at Predict
// time, so Update must run before the history shifts — which it does,
// as the final step here.
func (p *Predictor) Update(pc uint64, taken bool, target uint64) {
	idx := p.bhtIndex(pc)
	counter := p.bht[idx]

	predicted := counter >= 2
	if predicted == taken {
		p.stats.Correct++
	} else {
		p.stats.Mispredictions++
	}

	if taken {
		if counter < 3 {
			p.bht[idx] = counter + 1
		}
	} else {
		if counter > 0 {
			p.bht[idx] = counter - 1
		}
	}

	if taken {
		btbIdx := p.btbIndex(pc)
		p.btb[btbIdx] = btbEntry{pc: pc, target: target}
		p.btbValid[btbIdx] = true
	}

	p.history = p.history << 1 & (1<<historyBits - 1)
	if taken {
		p.history |= 1
	}
}

// Stats returns the predictor statistics.
func (p *Predictor) Stats() PredictorStats {
	return p.stats
}

// Reset clears all predictor state and statistics.
func (p *Predictor) Reset() {
	for i := range p.bht {
		p.bht[i] = 2
	}
	for i := range p.btbValid {
		p.btbValid[i] = false
	}
	p.history = 0
	p.stats = PredictorStats{}
}
