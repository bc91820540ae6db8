// Package llm 封装每日任务内容生成的调用方式，屏蔽具体 provider 的
// API 差异。openai 子包走大模型接口，static 子包在未配置密钥时提供
// 确定性的本地模板。
package llm
