package timing

import (
	"math"
	"testing"

	"scriptgen-api/internal/domain/entity"
)

func TestAllocateTenMinutes(t *testing.T) {
	got := Allocate(10)
	want := entity.TimingWindows{
		HookStart: 0, HookEnd: 24,
		IntroStart: 24, IntroEnd: 72,
		MainStart: 72, MainEnd: 420,
		DemoStart: 420, DemoEnd: 528,
		OutroStart: 528, OutroEnd: 600,
	}
	if got != want {
		t.Fatalf("Allocate(10) = %+v, want %+v", got, want)
	}
}

func TestAllocateInvariants(t *testing.T) {
	durations := []float64{0.1, 0.5, 1, 1.3, 2.75, 3, 7.2, 10, 12.5, 33.3, 59.99, 90, 180}
	for _, d := range durations {
		w := Allocate(d)
		if w.HookStart != 0 {
			t.Fatalf("d=%v: hook must start at 0, got %d", d, w.HookStart)
		}
		if w.HookEnd != w.IntroStart || w.IntroEnd != w.MainStart || w.MainEnd != w.DemoStart || w.DemoEnd != w.OutroStart {
			t.Fatalf("d=%v: windows not contiguous: %+v", d, w)
		}
		if want := int(math.Round(d * 60)); w.OutroEnd != want {
			t.Fatalf("d=%v: outro end %d, want %d", d, w.OutroEnd, want)
		}
		bounds := []int{w.HookStart, w.HookEnd, w.IntroEnd, w.MainEnd, w.DemoEnd, w.OutroEnd}
		for i := 1; i < len(bounds); i++ {
			if bounds[i] < bounds[i-1] {
				t.Fatalf("d=%v: boundaries decrease: %v", d, bounds)
			}
		}
	}
}

func TestAllocateKeepsIndependentRounding(t *testing.T) {
	// 0.6 分钟 = 36 秒：1.44 -> 1，4.32 -> 4，25.2 -> 25，31.68 -> 32
	w := Allocate(0.6)
	if w.HookEnd != 1 || w.IntroEnd != 4 || w.MainEnd != 25 || w.DemoEnd != 32 || w.OutroEnd != 36 {
		t.Fatalf("unexpected boundaries: %+v", w)
	}

	// 1.04 分钟 = 62.4 秒：边界按 62.4 计算，而非取整后的 62
	w = Allocate(1.04)
	if w.HookEnd != 2 || w.IntroEnd != 7 || w.MainEnd != 44 || w.DemoEnd != 55 || w.OutroEnd != 62 {
		t.Fatalf("fractional second boundaries: %+v", w)
	}

	for _, d := range []float64{0.6, 1.04, 2.71, 7.2, 33.3} {
		raw := d * 60
		w := Allocate(d)
		want := []int{
			int(math.Round(raw * 0.04)),
			int(math.Round(raw * 0.12)),
			int(math.Round(raw * 0.70)),
			int(math.Round(raw * 0.88)),
			int(math.Round(raw)),
		}
		got := []int{w.HookEnd, w.IntroEnd, w.MainEnd, w.DemoEnd, w.OutroEnd}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("d=%v: boundaries %v, want %v", d, got, want)
			}
		}
	}
}

func TestFormatClock(t *testing.T) {
	cases := map[int]string{0: "0:00", 24: "0:24", 72: "1:12", 600: "10:00", -5: "0:00"}
	for in, want := range cases {
		if got := FormatClock(in); got != want {
			t.Fatalf("FormatClock(%d) = %q, want %q", in, got, want)
		}
	}
}
