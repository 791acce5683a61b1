package openai

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oncare-clinic/rag-chatbot/internal/core/domain"
)

const classificationPrompt = `You are a query router for a Korean oncology clinic chatbot.
Classify the user message into exactly one category:
- cancer: cancer supportive care, chemotherapy, radiofrequency hyperthermia, diet for cancer patients
- nerve: autonomic nervous system disorders, dysautonomia, orthostatic symptoms
- general: greetings, small talk, clinic hours, directions, anything else

Reply with the single category word only.`

func buildChatMessages(req domain.GenerationRequest) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.Fallback {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: fallbackSystemPrompt(req.Category),
		})
	} else {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: groundedSystemPrompt(req.Category),
		})
	}

	for _, turn := range req.History {
		role := openai.ChatMessageRoleUser
		if turn.Role == "model" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}

	if req.Fallback {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Query,
		})
	} else {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: buildContextPrompt(req.Query, req.Context),
		})
	}
	return messages
}

func groundedSystemPrompt(category domain.Category) string {
	return fmt.Sprintf(`당신은 서울온케어의원의 AI 상담 전문의입니다.
현재 상담 주제는 %s입니다.

환자(사용자)의 질문에 대해 제공된 [Context]를 바탕으로 친절하고 전문적으로 답변해 주세요.

답변 가이드라인 (필수 준수):
1. 페르소나: 의사 선생님처럼 공감하며 전문적인 어조를 사용합니다. 단, 절대로 확정적인 진단이나 처방을 내려서는 안 됩니다.
2. 안전장치: "진단", "처방", "약물 추천" 요청에는 내원하시어 전문의와 상담이 필요하다는 취지로 안내하세요.
3. 근거 기반: [Context]에 없는 내용은 지어내지 마세요. 모르는 내용은 솔직히 모른다고 하거나 병원 문의를 유도하세요.
4. 출처 표기: 답변 내용이 포함된 영상이나 블로그가 있다면 언급해 주세요.`, category.DisplayName())
}

func fallbackSystemPrompt(category domain.Category) string {
	return fmt.Sprintf(`당신은 서울온케어의원의 AI 상담 전문의입니다.
현재 상담 주제는 %s입니다.

병원 자료에서 질문과 관련된 내용을 찾지 못했습니다. 일반적인 의학 상식을 바탕으로 신중하게 답변해 주세요.

답변 가이드라인 (필수 준수):
1. 확정적인 진단이나 처방은 절대 내리지 않습니다.
2. 답변이 병원 자료가 아닌 일반 의학 상식에 기반함을 감안하여 단정적인 표현을 피하세요.
3. 구체적인 치료 방향은 내원 상담을 권유하세요.`, category.DisplayName())
}

func buildContextPrompt(query string, docs []domain.Document) string {
	var builder strings.Builder
	builder.WriteString("[Context]:\n")
	if len(docs) == 0 {
		builder.WriteString("(관련 자료 없음)\n")
	}
	for _, doc := range docs {
		builder.WriteString(doc.Content)
		builder.WriteString("\n\n")
	}
	builder.WriteString("[Question]:\n")
	builder.WriteString(query)
	return builder.String()
}
