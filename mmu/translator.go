// Package mmu models Alpha virtual-address translation: the translator
// that splits and validates virtual addresses, the TLB holding the
// mapping entries, and the pipeline tracking outstanding translations.
package mmu

import (
	"sync/atomic"

	"github.com/sarchlab/axpsim/emu"
)

// Architectural page geometry. Pages are 8 KiB, so the page offset is
// the low 13 bits of every address.
const (
	PageShift = 13
	PageBytes = 1 << PageShift
	PageMask  = PageBytes - 1
)

// Access identifies what a translation will be used for.
type Access uint8

// Access kinds.
const (
	AccessLoad Access = iota
	AccessStore
	AccessIFetch
	AccessPrefetch
)

var accessNames = map[Access]string{
	AccessLoad:     "load",
	AccessStore:    "store",
	AccessIFetch:   "ifetch",
	AccessPrefetch: "prefetch",
}

func (a Access) String() string {
	if s, ok := accessNames[a]; ok {
		return s
	}
	return "access?"
}

// Result classifies one translation attempt.
type Result uint8

// Translation results.
const (
	// Hit means the TLB held a valid, permitted mapping.
	Hit Result = iota
	// Miss means no entry covers the page; the caller refills and retries.
	Miss
	// Fault means an entry covers the page but its valid bit is clear.
	Fault
	// ProtectionViolation means the mapping forbids the requested access.
	ProtectionViolation
	// InvalidAddress means the address is not in canonical form.
	InvalidAddress
)

var resultNames = map[Result]string{
	Hit:                 "hit",
	Miss:                "miss",
	Fault:               "fault",
	ProtectionViolation: "protection violation",
	InvalidAddress:      "invalid address",
}

func (r Result) String() string {
	if s, ok := resultNames[r]; ok {
		return s
	}
	return "result?"
}

// Request asks for one virtual address to be translated.
type Request struct {
	VA   uint64
	ASN  uint64
	Kind Access
	Mode emu.Mode

	// Now is the caller's logical clock, echoed into the response
	// timestamp.
	Now uint64
}

// Response reports where a translation landed. Flags carries the
// winning entry's protection bits on a hit.
type Response struct {
	Result     Result
	PA         uint64
	Flags      Flag
	Index      int
	VirtualTag uint64
	Timestamp  uint64
}

// Lookup is the entry store the translator consults. The TLB implements
// it; the translator itself holds no entries.
type Lookup interface {
	Lookup(asn, va uint64) LookupResult
}

// LookupResult reports where a TLB probe landed and what it found.
type LookupResult struct {
	Entry      Entry
	Index      int
	VirtualTag uint64
	Found      bool
}

// Recorder observes translation outcomes.
type Recorder interface {
	Hit(req Request)
	Miss(req Request)
	Fault(req Request, result Result)
}

// TranslationStats is a snapshot of a counting recorder.
type TranslationStats struct {
	Hits                 uint64
	Misses               uint64
	Faults               uint64
	ProtectionViolations uint64
	InvalidAddresses     uint64
}

// CountingRecorder tallies translation outcomes per kind. It is safe for
// concurrent use.
type CountingRecorder struct {
	hits    atomic.Uint64
	misses  atomic.Uint64
	faults  atomic.Uint64
	prot    atomic.Uint64
	invalid atomic.Uint64
}

// NewCountingRecorder creates a recorder with all counters at zero.
func NewCountingRecorder() *CountingRecorder {
	return &CountingRecorder{}
}

// Hit implements Recorder.
func (r *CountingRecorder) Hit(Request) { r.hits.Add(1) }

// Miss implements Recorder.
func (r *CountingRecorder) Miss(Request) { r.misses.Add(1) }

// Fault implements Recorder.
func (r *CountingRecorder) Fault(req Request, result Result) {
	switch result {
	case ProtectionViolation:
		r.prot.Add(1)
	case InvalidAddress:
		r.invalid.Add(1)
	default:
		r.faults.Add(1)
	}
}

// Stats returns a snapshot of the counters.
func (r *CountingRecorder) Stats() TranslationStats {
	return TranslationStats{
		Hits:                 r.hits.Load(),
		Misses:               r.misses.Load(),
		Faults:               r.faults.Load(),
		ProtectionViolations: r.prot.Load(),
		InvalidAddresses:     r.invalid.Load(),
	}
}

// Translator turns virtual addresses into physical ones. It validates the
// canonical form, consults the entry store, checks permissions, and
// assembles the physical address. Outcomes go to the recorder when one is
// bound.
type Translator struct {
	lookup   Lookup
	recorder Recorder
}

// NewTranslator creates a translator over the given entry store. The
// recorder may be nil.
func NewTranslator(lookup Lookup, recorder Recorder) *Translator {
	return &Translator{lookup: lookup, recorder: recorder}
}

// Canonical reports whether bits 63:48 of va replicate bit 47.
func Canonical(va uint64) bool {
	return uint64(int64(va)<<16>>16) == va
}

// Translate resolves one request.
func (t *Translator) Translate(req Request) Response {
	resp := Response{Timestamp: req.Now}

	if !Canonical(req.VA) {
		resp.Result = InvalidAddress
		t.fault(req, InvalidAddress)
		return resp
	}

	lr := t.lookup.Lookup(req.ASN, req.VA)
	resp.Index = lr.Index
	resp.VirtualTag = lr.VirtualTag

	switch {
	case !lr.Found:
		resp.Result = Miss
		if t.recorder != nil {
			t.recorder.Miss(req)
		}
	case lr.Entry.Flags&FlagValid == 0:
		resp.Result = Fault
		t.fault(req, Fault)
	case !lr.Entry.Flags.Permits(req.Kind, req.Mode):
		resp.Result = ProtectionViolation
		t.fault(req, ProtectionViolation)
	default:
		resp.Result = Hit
		resp.PA = lr.Entry.PhysicalPage&^uint64(PageMask) | req.VA&uint64(PageMask)
		resp.Flags = lr.Entry.Flags
		if t.recorder != nil {
			t.recorder.Hit(req)
		}
	}
	return resp
}

func (t *Translator) fault(req Request, result Result) {
	if t.recorder != nil {
		t.recorder.Fault(req, result)
	}
}

// Permits checks the protection flags against the access kind and
// privilege mode. Prefetches probe like loads; the caller discards their
// failures.
func (f Flag) Permits(kind Access, mode emu.Mode) bool {
	if mode == emu.ModeUser {
		if f&FlagUser == 0 {
			return false
		}
	} else if f&FlagKernel == 0 {
		return false
	}

	switch kind {
	case AccessStore:
		return f&FlagWrite != 0
	case AccessIFetch:
		return f&FlagExec != 0
	}
	return true
}
