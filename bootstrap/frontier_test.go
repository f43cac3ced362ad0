package bootstrap

import "testing"

func TestClassifyInSync(t *testing.T) {
	if got := classify(3, 3, 3, 3, 3, 3); got != inSync {
		t.Fatalf("classify: got %d, want inSync", got)
	}
}

func TestClassifyBehindOnBatchOnly(t *testing.T) {
	// Equal epoch/micro, one batch block behind: behind per the
	// non-strict epoch/micro, strict-batch rule.
	if got := classify(3, 3, 4, 3, 3, 5); got != needPull {
		t.Fatalf("classify: got %d, want needPull", got)
	}
}

func TestClassifyAheadOnBatchOnly(t *testing.T) {
	if got := classify(3, 3, 5, 3, 3, 4); got != needPush {
		t.Fatalf("classify: got %d, want needPush", got)
	}
}

func TestClassifyInconsistentWhenEpochAheadButBatchBehind(t *testing.T) {
	// epoch ahead, batch behind: neither the behind nor the ahead
	// predicate holds, so this is the spec's inconsistent case.
	if got := classify(4, 3, 2, 3, 3, 5); got != inconsistent {
		t.Fatalf("classify: got %d, want inconsistent", got)
	}
}

func TestEndTransmissionPrefersEpochThenMicroThenBatch(t *testing.T) {
	pr := &PullRequest{}
	pr.BEnd.Digest[0] = 1
	if got := endTransmission(pr); got != pr.BEnd.Digest {
		t.Fatalf("endTransmission with only batch set: got %v", got)
	}
	pr.MEnd.Digest[0] = 2
	if got := endTransmission(pr); got != pr.MEnd.Digest {
		t.Fatalf("endTransmission should prefer micro over batch")
	}
	pr.EEnd.Digest[0] = 3
	if got := endTransmission(pr); got != pr.EEnd.Digest {
		t.Fatalf("endTransmission should prefer epoch over micro")
	}
}
