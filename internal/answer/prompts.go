package answer

import (
	"fmt"
	"strings"
)

func systemPreamble(shop string) string {
	if shop == "" {
		return "당신은 카페24 쇼핑몰의 전문 CS 담당자입니다."
	}
	return fmt.Sprintf("당신은 카페24 쇼핑몰 '%s'의 전문 CS 담당자입니다.", shop)
}

// keywordSystemPrompt is used when a keyword template answers the question.
func keywordSystemPrompt(shop string) string {
	return systemPreamble(shop) + `
고객의 문의에 대해 친절하고 자연스러운 답변을 제공해야 합니다.
주어진 답변 템플릿의 내용만 사용하고, 템플릿에 없는 정책이나 수치를 지어내지 마세요.`
}

func keywordUserPrompt(question, template, size string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "고객 문의: %s\n\n답변 템플릿: %s\n", question, template)
	if size != "" {
		fmt.Fprintf(&b, "추천 사이즈: %s\n", size)
	}
	b.WriteString("\n위 답변 템플릿을 바탕으로 고객 문의에 맞게 자연스럽고 친절한 답변을 한국어로 작성해주세요.")
	return b.String()
}

// manualSystemPrompt embeds the manual context.
func manualSystemPrompt(shop, manuals string) string {
	var b strings.Builder
	b.WriteString(systemPreamble(shop))
	b.WriteString("\n고객의 문의에 대해 친절하고 정확한 답변을 제공해야 합니다.\n")
	if manuals != "" {
		b.WriteString("\n다음은 고객 대응 매뉴얼입니다:\n")
		b.WriteString(manuals)
		b.WriteString("\n")
	}
	b.WriteString(`
답변 작성 시 다음 사항을 준수해주세요:
1. 고객에게 친절하고 정중한 어조 사용
2. 매뉴얼의 톤앤매너를 참고하되, 고객 질문에 맞게 자연스럽게 작성
3. 구체적이고 실용적인 해결 방법 제시
4. 필요시 단계별 안내 제공
5. 답변이 불가능한 경우 담당자 연결 안내
6. 한국어로 답변 작성

답변은 간결하면서도 충분한 정보를 제공하도록 작성해주세요.`)
	return b.String()
}

func manualUserPrompt(question, extra string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "고객 문의: %s\n", question)
	if extra != "" {
		fmt.Fprintf(&b, "추가 정보: %s\n", extra)
	}
	b.WriteString("\n위 문의에 대한 전문적이고 친절한 답변을 매뉴얼의 스타일을 참고하여 자연스럽게 작성해주세요.")
	return b.String()
}

func validationPrompt(question, answer string) string {
	return fmt.Sprintf(`다음 고객 문의와 생성된 답변을 검토해주세요:

고객 문의: %s
생성된 답변: %s

다음 기준으로 각각 1-5점으로 평가해주세요:
1. relevance: 문의 내용에 적절히 답변했는가?
2. courtesy: 고객에게 친절하고 정중한가?
3. accuracy: 정보가 정확하고 유용한가?
4. completeness: 답변이 완전하고 구체적인가?

다음 JSON 형식으로만 응답하세요:
{"relevance": 0, "courtesy": 0, "accuracy": 0, "completeness": 0, "feedback": "개선 사항"}`, question, answer)
}
