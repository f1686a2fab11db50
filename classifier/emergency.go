package classifier

import "strings"

// Emergency phrasing is screened before any model call. The check is
// deliberately cheap and errs toward flagging: a flagged query still routes
// normally but carries a safety disclaimer downstream.
var emergencyCues = []string{
	// ko
	"응급", "숨이 안", "숨을 못", "호흡곤란", "가슴 통증", "가슴이 아", "의식이 없",
	"쓰러졌", "피를 토", "토혈", "경련", "심한 출혈", "자살", "죽고 싶",
	// en
	"emergency", "can't breathe", "cannot breathe", "chest pain", "unconscious",
	"collapsed", "coughing blood", "seizure", "severe bleeding", "suicide",
}

// IsEmergency reports whether the query contains urgent-symptom phrasing.
func IsEmergency(text string) bool {
	low := strings.ToLower(text)
	for _, cue := range emergencyCues {
		if strings.Contains(low, cue) {
			return true
		}
	}
	return false
}
