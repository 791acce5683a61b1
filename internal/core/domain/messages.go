package domain

// Canned Korean-facing messages. These are part of the product contract, not
// configuration.
const (
	MedicalDisclaimer = "본 답변은 병원 콘텐츠를 기반으로 생성된 참고용 정보이며, 실제 진료를 대신할 수 없습니다."

	NoInfoMessage = "죄송합니다. 해당 내용에 대한 병원 공식 자료를 찾을 수 없습니다. 정확한 상담은 병원으로 전화 부탁드립니다."

	DiagnosisWarning = "죄송합니다. 저는 의학적 진단이나 처방을 내려드릴 수 없습니다. 정확한 진단은 병원에 내원하여 전문의와 상담해주세요."

	// FallbackAnswerPrefix marks an answer generated from general medical
	// knowledge instead of clinic content; such answers carry no citations.
	FallbackAnswerPrefix = "[일반 의학 정보 안내]\n\n"

	FallbackDisclaimer = "위 내용은 서울온케어의원의 자료가 아닌 일반적인 의학 상식에 기반한 참고 정보입니다. " +
		"정확한 진단과 치료를 위해 서울온케어의원에 내원하시거나 전화로 상담받으시기 바랍니다."
)
