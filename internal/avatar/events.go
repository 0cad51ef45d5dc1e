package avatar

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/anoixa/engi-tracker/utils"
)

// DecodeEventKey 解码通知中的对象键，通知里空格编码为 "+"
func DecodeEventKey(raw string) (string, error) {
	key, err := url.PathUnescape(strings.ReplaceAll(raw, "+", " "))
	if err != nil {
		return "", fmt.Errorf("decode object key %q: %w", raw, err)
	}
	return key, nil
}

// HandleS3Event 处理一个 S3 事件
func (g *Generator) HandleS3Event(ctx context.Context, event events.S3Event) Summary {
	raw := make([]string, 0, len(event.Records))
	for _, record := range event.Records {
		raw = append(raw, record.S3.Object.Key)
	}
	return g.HandleEncodedKeys(ctx, raw)
}

// HandleEncodedKeys 解码并处理通知中的对象键，无法解码的键计入失败
func (g *Generator) HandleEncodedKeys(ctx context.Context, raw []string) Summary {
	keys := make([]string, 0, len(raw))
	var undecodable int
	for _, r := range raw {
		key, err := DecodeEventKey(r)
		if err != nil {
			g.logger.Errorw("Error processing record", "key", utils.SanitizeLogKey(r), "error", err)
			undecodable++
			continue
		}
		keys = append(keys, key)
	}

	summary := g.Process(ctx, keys)
	summary.Failed += undecodable
	return summary
}
