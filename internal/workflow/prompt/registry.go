package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"scriptgen-api/internal/domain/entity"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// Registry 按阶段缓存已解析的 ChatTemplate
type Registry struct {
	mu    sync.RWMutex
	cache map[entity.Stage]einoprompt.ChatTemplate
}

// NewRegistry 创建模板注册表
func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[entity.Stage]einoprompt.ChatTemplate),
	}
}

// ChatTemplate 获取阶段模板，system/user 两条消息均使用 Go template 语法
func (r *Registry) ChatTemplate(stage entity.Stage) (einoprompt.ChatTemplate, error) {
	r.mu.RLock()
	if tpl, ok := r.cache[stage]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[stage]; ok {
		return tpl, nil
	}

	system, err := readEmbeddedText(fmt.Sprintf("templates/%s.system.txt", stage))
	if err != nil {
		return nil, err
	}
	user, err := readEmbeddedText(fmt.Sprintf("templates/%s.user.txt", stage))
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	r.cache[stage] = tpl
	return tpl, nil
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("prompt template %s: %w", path, err)
	}
	return strings.TrimSpace(string(b)), nil
}
