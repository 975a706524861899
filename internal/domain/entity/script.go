package entity

import (
	"fmt"
	"strings"
)

// SectionSeparator 脚本段落之间的分隔符
const SectionSeparator = "\n\n"

// TimingWindows 五段时间窗口（秒）
type TimingWindows struct {
	HookStart  int `json:"hook_start"`
	HookEnd    int `json:"hook_end"`
	IntroStart int `json:"intro_start"`
	IntroEnd   int `json:"intro_end"`
	MainStart  int `json:"main_start"`
	MainEnd    int `json:"main_end"`
	DemoStart  int `json:"demo_start"`
	DemoEnd    int `json:"demo_end"`
	OutroStart int `json:"outro_start"`
	OutroEnd   int `json:"outro_end"`
}

// Total 总时长（秒）
func (w TimingWindows) Total() int {
	return w.OutroEnd
}

// ScriptAssembly 按固定位置保存的脚本段落
type ScriptAssembly struct {
	sections [4]string
}

func sectionIndex(stage Stage) (int, error) {
	for i, st := range ScriptStages {
		if st == stage {
			return i, nil
		}
	}
	return -1, fmt.Errorf("stage %q is not a script section", stage)
}

// AssemblyFromSections 从已保存的段落恢复
func AssemblyFromSections(sections map[Stage]string) ScriptAssembly {
	var a ScriptAssembly
	for i, st := range ScriptStages {
		a.sections[i] = sections[st]
	}
	return a
}

// Set 写入某个段落
func (a *ScriptAssembly) Set(stage Stage, text string) error {
	i, err := sectionIndex(stage)
	if err != nil {
		return err
	}
	a.sections[i] = text
	return nil
}

// Section 按位置取回段落
func (a ScriptAssembly) Section(stage Stage) string {
	i, err := sectionIndex(stage)
	if err != nil {
		return ""
	}
	return a.sections[i]
}

// Splice 返回替换了指定段落的新脚本，其余段落保持不变
func (a ScriptAssembly) Splice(stage Stage, text string) (ScriptAssembly, error) {
	out := a
	if err := out.Set(stage, text); err != nil {
		return a, err
	}
	return out, nil
}

// Sections 导出段落用于持久化
func (a ScriptAssembly) Sections() map[Stage]string {
	out := make(map[Stage]string, len(ScriptStages))
	for i, st := range ScriptStages {
		if a.sections[i] != "" {
			out[st] = a.sections[i]
		}
	}
	return out
}

// Text 拼接后的完整脚本
func (a ScriptAssembly) Text() string {
	parts := make([]string, 0, len(a.sections))
	for _, s := range a.sections {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, SectionSeparator)
}

// PriorText 指定段落之前的所有内容，用作生成上下文
func (a ScriptAssembly) PriorText(stage Stage) string {
	i, err := sectionIndex(stage)
	if err != nil {
		return ""
	}
	parts := make([]string, 0, i)
	for _, s := range a.sections[:i] {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, SectionSeparator)
}
