package subtitle

import (
	"context"
	"fmt"

	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	tmt "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tmt/v20180321"

	"github.com/cadrianmae/gencast/internal/config"
	"github.com/cadrianmae/gencast/internal/logger"
)

// Translator 使用腾讯云机器翻译把字幕文本翻译为目标语言，
// 生成与原字幕同步的第二字幕轨。
type Translator struct {
	client *tmt.Client
	target string
}

// NewTranslator 创建字幕翻译器。target 为腾讯云语言代码，如 zh、en、ja。
func NewTranslator(cfg config.TranslateConfig) (*Translator, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("[subtitle] 字幕翻译需要腾讯云 SecretID 和 SecretKey")
	}
	if cfg.Target == "" {
		return nil, fmt.Errorf("[subtitle] 字幕翻译需要目标语言代码")
	}
	region := cfg.Region
	if region == "" {
		region = "ap-guangzhou"
	}

	credential := common.NewCredential(cfg.SecretID, cfg.SecretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = "tmt.tencentcloudapi.com"

	client, err := tmt.NewClient(credential, region, cpf)
	if err != nil {
		return nil, fmt.Errorf("[subtitle] 创建翻译客户端失败: %w", err)
	}

	logger.Debugf("[subtitle] 字幕翻译器已初始化 (target=%s, region=%s)", cfg.Target, region)

	return &Translator{client: client, target: cfg.Target}, nil
}

// TranslateCues 逐条翻译字幕文本，保留原有时间轴和编号。
// 源语言自动检测。任何一条失败都会中止并返回错误，
// 由调用方决定是否放弃翻译轨。
func (t *Translator) TranslateCues(ctx context.Context, cues []Cue) ([]Cue, error) {
	out := make([]Cue, len(cues))
	for i, cue := range cues {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		request := tmt.NewTextTranslateRequest()
		request.SourceText = common.StringPtr(cue.Text)
		request.Source = common.StringPtr("auto")
		request.Target = common.StringPtr(t.target)
		request.ProjectId = common.Int64Ptr(0)

		response, err := t.client.TextTranslate(request)
		if err != nil {
			return nil, fmt.Errorf("[subtitle] 翻译第 %d 条字幕失败: %w", cue.Index, err)
		}
		if response.Response == nil || response.Response.TargetText == nil {
			return nil, fmt.Errorf("[subtitle] 翻译第 %d 条字幕: 响应为空", cue.Index)
		}

		out[i] = cue
		out[i].Text = *response.Response.TargetText
	}

	logger.Infof("[subtitle] 已翻译 %d 条字幕 (target=%s)", len(out), t.target)

	return out, nil
}
