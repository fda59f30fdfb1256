package billing

import "math/rand"

// UsageSimulator supplies the consumption quantities the Usage Meter applies
// between billing checks. Production metering would aggregate real usage
// events; the simulator keeps the same contract (non-negative quantities,
// postpaid accrual monotonic) while staying injectable for tests.
type UsageSimulator interface {
	// PrepaidConsumption is the number of units to deduct from a prepaid
	// balance on one metering pass.
	PrepaidConsumption() int64

	// PostpaidUsage is the number of units to add to a postpaid counter on
	// one metering pass. Always in [100, 500], a multiple of 5.
	PostpaidUsage() int64
}

type randomUsage struct {
	rng *rand.Rand
}

// NewRandomUsage builds the default simulator over the given source.
func NewRandomUsage(rng *rand.Rand) UsageSimulator {
	return &randomUsage{rng: rng}
}

func (u *randomUsage) PrepaidConsumption() int64 {
	return int64(u.rng.Intn(100)) + 1
}

func (u *randomUsage) PostpaidUsage() int64 {
	return int64(u.rng.Intn(81))*5 + 100
}
