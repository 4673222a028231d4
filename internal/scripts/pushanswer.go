package scripts

import (
	"context"
	"strings"

	"qxhooks/internal/body"
	"qxhooks/internal/env"
	"qxhooks/internal/hook"
)

const answerTitle = "之江杯答案"

var answerNumbers = []string{"①", "②", "③", "④", "⑤", "⑥", "⑦", "⑧", "⑨", "⑩"}

// PushAnswer 从答题接口的响应里取出答案并通知
type PushAnswer struct{}

func (p *PushAnswer) Name() string    { return "pushanswer" }
func (p *PushAnswer) Kind() hook.Kind { return hook.KindResponse }
func (p *PushAnswer) Pattern() string { return `^https?://[^/]+/.*question` }

// Answers 把前10题的 win_id 格式化为 ①[A] 这种形式
func Answers(obj map[string]any) ([]string, bool) {
	code, _ := obj["code"].(float64)
	if code != 3001 {
		return nil, false
	}

	data, _ := obj["data"].(map[string]any)
	list, _ := data["list"].([]any)

	var out []string
	for i := 0; i < len(answerNumbers) && i < len(list); i++ {
		item, _ := list[i].(map[string]any)
		winID, _ := item["win_id"].(string)
		out = append(out, answerNumbers[i]+"["+winID+"]")
	}
	return out, true
}

func (p *PushAnswer) Handle(ctx context.Context, e *env.Env, msg *hook.Message) (*hook.Result, error) {
	raw := msg.Body
	if raw == "" {
		raw = "{}"
	}

	answers, ok := Answers(body.ParseJSON([]byte(raw), map[string]any{}))
	if ok {
		e.Msg(ctx, answerTitle, "", strings.Join(answers, ","))
	}

	return hook.PassThrough(), nil
}
