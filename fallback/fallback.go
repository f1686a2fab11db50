// Package fallback maps internal failure kinds to user-safe messages and
// stable machine codes. The mapping is total: unknown kinds collapse onto
// the response-generation failure entry.
package fallback

import (
	"github.com/carelink-project/carelink-multi-agent/types"
)

// Fallback is one user-facing failure entry.
type Fallback struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

var table = map[types.FailureKind]Fallback{
	types.FailureClassification: {
		Message: "질문의 의도를 파악하지 못했어요. 조금 더 구체적으로 말씀해 주시겠어요?",
		Code:    "E_CLASSIFY",
	},
	types.FailureNonMedicalDomain: {
		Message: "죄송해요, 건강 및 복지와 관련된 질문에만 답변할 수 있어요.",
		Code:    "E_OUT_OF_SCOPE",
	},
	types.FailureContextLimit: {
		Message: "대화가 너무 길어졌어요. 새로운 대화를 시작해 주세요.",
		Code:    "E_CONTEXT_LIMIT",
	},
	types.FailureInvalidSession: {
		Message: "세션이 만료되었거나 찾을 수 없어요. 대화를 다시 시작해 주세요.",
		Code:    "E_SESSION",
	},
	types.FailureUnknownAgentType: {
		Message: "요청하신 기능을 찾을 수 없어요. 다른 질문을 해주시겠어요?",
		Code:    "E_UNKNOWN_AGENT",
	},
	types.FailureResponseGeneration: {
		Message: "답변을 만드는 중 문제가 생겼어요. 잠시 후 다시 시도해 주세요.",
		Code:    "E_GENERATION",
	},
}

// Map returns the entry for a failure kind. Every defined kind has an
// entry; anything else defaults to response-generation failure.
func Map(kind types.FailureKind) Fallback {
	if fb, ok := table[kind]; ok {
		return fb
	}
	return table[types.FailureResponseGeneration]
}

// ForError resolves an arbitrary error to its fallback entry.
func ForError(err error) Fallback {
	return Map(types.KindOf(err))
}
