package core_test

import (
	"testing"

	"github.com/logos-network/blockcore/core"
)

func TestResultCodeGroups(t *testing.T) {
	cases := []struct {
		code              core.ResultCode
		gapLike, fatal, transient bool
	}{
		{core.Progress, false, false, false},
		{core.GapPrevious, true, false, false},
		{core.GapSource, true, false, false},
		{core.InvalidRequestGap, true, false, false},
		{core.BadSignature, false, true, false},
		{core.Fork, false, true, false},
		{core.Initializing, false, false, true},
		{core.Pending, false, false, true},
		{core.AlreadyReserved, false, false, true},
	}
	for _, c := range cases {
		if got := c.code.IsGapLike(); got != c.gapLike {
			t.Errorf("%v.IsGapLike() = %v, want %v", c.code, got, c.gapLike)
		}
		if got := c.code.IsFatal(); got != c.fatal {
			t.Errorf("%v.IsFatal() = %v, want %v", c.code, got, c.fatal)
		}
		if got := c.code.IsTransient(); got != c.transient {
			t.Errorf("%v.IsTransient() = %v, want %v", c.code, got, c.transient)
		}
	}
}

func TestResultCodeGroupsAreMutuallyExclusive(t *testing.T) {
	all := []core.ResultCode{
		core.Progress, core.Exists, core.Old,
		core.GapPrevious, core.GapSource, core.InvalidRequestGap,
		core.BadSignature, core.InvalidBlockType, core.BlockPosition,
		core.BalanceMismatch, core.Fork, core.NegativeSpend,
		core.Initializing, core.Pending, core.AlreadyReserved,
	}
	for _, c := range all {
		groups := 0
		if c.IsGapLike() {
			groups++
		}
		if c.IsFatal() {
			groups++
		}
		if c.IsTransient() {
			groups++
		}
		if groups > 1 {
			t.Errorf("%v belongs to %d propagation-policy groups, want at most 1", c, groups)
		}
	}
}
