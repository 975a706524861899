// Package timing 将目标时长切分为脚本各段的时间窗口
package timing

import (
	"fmt"
	"math"

	"scriptgen-api/internal/domain/entity"
)

// 各段边界占总时长的比例：hook 4%，intro 8%，main 58%，demo 18%，outro 12%
const (
	hookEndRatio  = 0.04
	introEndRatio = 0.12
	mainEndRatio  = 0.70
	demoEndRatio  = 0.88
)

// Allocate 计算时间窗口。每个边界由未取整的总秒数独立取整，段长可能与名义比例相差不超过 1 秒。
// 调用方需保证 durationMinutes > 0。
func Allocate(durationMinutes float64) entity.TimingWindows {
	total := durationMinutes * 60
	boundary := func(ratio float64) int {
		return int(math.Round(total * ratio))
	}

	hookEnd := boundary(hookEndRatio)
	introEnd := boundary(introEndRatio)
	mainEnd := boundary(mainEndRatio)
	demoEnd := boundary(demoEndRatio)

	return entity.TimingWindows{
		HookStart:  0,
		HookEnd:    hookEnd,
		IntroStart: hookEnd,
		IntroEnd:   introEnd,
		MainStart:  introEnd,
		MainEnd:    mainEnd,
		DemoStart:  mainEnd,
		DemoEnd:    demoEnd,
		OutroStart: demoEnd,
		OutroEnd:   int(math.Round(total)),
	}
}

// FormatClock 将秒数格式化为 m:ss
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
