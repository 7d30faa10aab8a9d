package assistant

import (
	"fmt"
	"strings"
)

// 各功能的系统提示词
const (
	translatorSystemPrompt = "你是一个专业的翻译助手。请准确翻译用户的文本，保持原文的语气和风格。"
	summarizerSystemPrompt = "你是一个专业的摘要生成助手。请生成准确、简洁的摘要，突出文本的主要观点。"
	qaSystemPrompt         = "你是一个专业的问答助手。请基于给定的上下文，准确回答用户的问题。"
	chatSystemPrompt       = "你是一个智能助手。请理解用户的需求，提供专业、友好的回答。"
)

// chatSystemPrompts 按 provider 定制的聊天系统提示词，未命中时使用 chatSystemPrompt
var chatSystemPrompts = map[string]string{
	"ollama":         "你是一个由 Ollama 部署的本地 LLM 助手，基于 Qwen2.5 32B 模型。请理解用户的需求，提供专业、友好的回答。",
	"gpt4":           "你是 OpenAI 的 GPT-4 助手。请理解用户的需求，提供专业、友好的回答。",
	"deepseek-v3":    "你是 DeepSeek V3 助手。请理解用户的需求，提供专业、友好的回答。",
	"deepseek-r1":    "你是 DeepSeek R1 推理助手。请理解用户的需求，提供专业、友好的回答。",
	"macstudio-qwen": "你是运行在 MacStudio 上的 Qwen2.5 32B 助手。请理解用户的需求，提供专业、友好的回答。",
}

func chatSystemPromptFor(provider string) string {
	if p, ok := chatSystemPrompts[provider]; ok {
		return p
	}
	return chatSystemPrompt
}

func translatePrompt(text, targetLang, sourceLang string) string {
	if sourceLang != "" {
		return fmt.Sprintf("将以下%s文本翻译成%s：\n%s", sourceLang, targetLang, text)
	}
	return fmt.Sprintf("将以下文本翻译成%s：\n%s", targetLang, text)
}

func summarizePrompt(text string, maxLength int) string {
	prompt := "请生成以下文本的摘要，保持主要信息完整：\n\n" + text
	if maxLength > 0 {
		prompt += fmt.Sprintf("\n\n请将摘要控制在%d字以内。", maxLength)
	}
	return prompt
}

func qaPrompt(context, question string, history []QATurn) string {
	var b strings.Builder
	b.WriteString("请基于以下上下文回答问题。\n\n上下文：\n")
	b.WriteString(context)
	b.WriteString("\n\n")

	if len(history) > 0 {
		b.WriteString("历史对话：\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "问：%s\n", turn.Question)
			if turn.Answer != "" {
				fmt.Fprintf(&b, "答：%s\n", turn.Answer)
			}
		}
	}

	fmt.Fprintf(&b, "\n当前问题：%s\n\n答：", question)
	return b.String()
}

// chatPrompt 将参考资料与对话历史拼成单轮提示词
func chatPrompt(messages []Message, ref *Reference) string {
	var b strings.Builder
	if ref != nil && !ref.empty() {
		b.WriteString("参考资料：\n")
		if ref.Title != "" {
			fmt.Fprintf(&b, "标题：%s\n", ref.Title)
		}
		if ref.URL != "" {
			fmt.Fprintf(&b, "链接：%s\n", ref.URL)
		}
		if ref.Content != "" {
			fmt.Fprintf(&b, "内容：\n%s\n\n", ref.Content)
		}
		b.WriteString("请基于以上参考资料回答问题。\n\n")
	}

	for _, m := range messages {
		speaker := "助手"
		switch m.Role {
		case RoleUser:
			speaker = "用户"
		case RoleSystem:
			speaker = "系统"
		}
		fmt.Fprintf(&b, "%s：%s\n", speaker, m.Content)
	}
	b.WriteString("助手：")
	return b.String()
}
