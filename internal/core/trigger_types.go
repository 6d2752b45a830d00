package core

import "fmt"

// TriggerTypeBits is a bit-packed set of trigger candidate types.
// Bit N set means candidate type N contributed to the decision.
type TriggerTypeBits uint64

// TriggerCandidateType is a single trigger candidate type (a bit position
// in TriggerTypeBits).
type TriggerCandidateType uint8

const (
	TriggerTypeUnknown TriggerCandidateType = iota
	TriggerTypeTiming
	TriggerTypeTPCLowE
	TriggerTypeSupernova
	TriggerTypeRandom
	TriggerTypePrescale
	TriggerTypeADCSimpleWindow
	TriggerTypeHorizontalMuon
	TriggerTypeMichelElectron
	TriggerTypePlaneCoincidence
)

var triggerCandidateTypeNames = map[TriggerCandidateType]string{
	TriggerTypeUnknown:          "kUnknown",
	TriggerTypeTiming:           "kTiming",
	TriggerTypeTPCLowE:          "kTPCLowE",
	TriggerTypeSupernova:        "kSupernova",
	TriggerTypeRandom:           "kRandom",
	TriggerTypePrescale:         "kPrescale",
	TriggerTypeADCSimpleWindow:  "kADCSimpleWindow",
	TriggerTypeHorizontalMuon:   "kHorizontalMuon",
	TriggerTypeMichelElectron:   "kMichelElectron",
	TriggerTypePlaneCoincidence: "kPlaneCoincidence",
}

// String returns the candidate type name used as the metrics label.
func (t TriggerCandidateType) String() string {
	if name, ok := triggerCandidateTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("kType%d", uint8(t))
}

// Bit returns the bitmask with only this candidate type set.
func (t TriggerCandidateType) Bit() TriggerTypeBits {
	return TriggerTypeBits(1) << uint(t)
}

// Unpack returns the candidate types whose bits are set, in ascending order.
func (b TriggerTypeBits) Unpack() []TriggerCandidateType {
	var types []TriggerCandidateType
	for i := 0; i < 64; i++ {
		if b&(TriggerTypeBits(1)<<uint(i)) != 0 {
			types = append(types, TriggerCandidateType(i))
		}
	}
	return types
}

// Has reports whether the candidate type bit is set.
func (b TriggerTypeBits) Has(t TriggerCandidateType) bool {
	return b&t.Bit() != 0
}
