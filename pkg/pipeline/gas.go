package pipeline

// CallClass selects the gas multiplier for a call. The estimator itself
// never applies multipliers.
type CallClass int

const (
	// ClassDeterministic covers setters, role changes and other calls whose
	// gas does not depend on randomness: estimate plus 20%.
	ClassDeterministic CallClass = iota
	// ClassRoll covers rolls and any call that invokes the randomness
	// source or iterates a variable-size prize set. Gas varies with how
	// many wins occur and how many prize legs pay out, so the estimate is
	// doubled and then given the same 20% margin on top.
	ClassRoll
)

// ApplyMultiplier converts a mirror gas estimate into a submission limit.
func ApplyMultiplier(class CallClass, estimate uint64) uint64 {
	switch class {
	case ClassRoll:
		return estimate * 2 * 12 / 10
	default:
		return estimate * 12 / 10
	}
}
