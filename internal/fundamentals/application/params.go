package application

import (
	"encoding/json"
	"strconv"
	"strings"
)

// listParams 以逗号分隔的列表参数
var listParams = map[string]bool{
	"loss_ratios":    true,
	"capital_levels": true,
}

// ParamsFromStrings 将字符串形式的参数（查询串、命令行标志）转换为 JSON 对象。
// 数值按 json.Number 原样保留，列表参数按逗号拆分。
func ParamsFromStrings(values map[string]string) (json.RawMessage, error) {
	if len(values) == 0 {
		return nil, nil
	}

	obj := make(map[string]any, len(values))
	for key, raw := range values {
		if listParams[key] {
			items := make([]any, 0)
			for _, part := range strings.Split(raw, ",") {
				if part = strings.TrimSpace(part); part != "" {
					items = append(items, scalar(part))
				}
			}
			obj[key] = items
			continue
		}
		obj[key] = scalar(strings.TrimSpace(raw))
	}
	return json.Marshal(obj)
}

func scalar(s string) any {
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return json.Number(s)
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
