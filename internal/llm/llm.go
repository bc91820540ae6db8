package llm

import (
	"context"
	"strings"

	xerrors "OpenFarm-Chain/internal/errors"
)

// Kind 标识每日任务需要生成的内容类型。
type Kind string

const (
	// KindAgent 生成 agent 的名称与描述。
	KindAgent Kind = "agent"
	// KindRequest 生成 request 的标题与描述。
	KindRequest Kind = "request"
)

// Content 是生成器产出的结构化文本。
// agent 使用 Name/Description，request 使用 Title/Description。
type Content struct {
	Name        string
	Title       string
	Description string
}

// Client 定义了内容生成的统一接口。
type Client interface {
	Generate(ctx context.Context, kind Kind) (*Content, error)
}

// Validate 校验生成结果是否可用于创建对应类型的任务对象。
// 不可用时返回 INVALID_GENERATED_CONTENT，调用方只跳过该项任务。
func Validate(kind Kind, content *Content) error {
	if content == nil {
		return xerrors.New(xerrors.CodeInvalidContent, "生成结果为空")
	}
	if strings.TrimSpace(content.Description) == "" {
		return xerrors.New(xerrors.CodeInvalidContent, "生成结果缺少描述")
	}
	switch kind {
	case KindAgent:
		if strings.TrimSpace(content.Name) == "" {
			return xerrors.New(xerrors.CodeInvalidContent, "生成结果缺少名称")
		}
	case KindRequest:
		if strings.TrimSpace(content.Title) == "" {
			return xerrors.New(xerrors.CodeInvalidContent, "生成结果缺少标题")
		}
	default:
		return xerrors.New(xerrors.CodeInvalidContent, "未知的内容类型")
	}
	return nil
}
