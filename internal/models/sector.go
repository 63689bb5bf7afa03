package models

// SectorCode is the industry code stored in the companies table.
type SectorCode string

const (
	SectorSemiconductor SectorCode = "SEMI"
	SectorBio           SectorCode = "BIO"
	SectorDefense       SectorCode = "DEF"
	SectorAI            SectorCode = "AI"
	SectorNuclear       SectorCode = "NUC"
	SectorPowerGrid     SectorCode = "UTILSVC"
	SectorShipbuilding  SectorCode = "SHP"
)

var sectorOrder = []SectorCode{
	SectorAI,
	SectorSemiconductor,
	SectorPowerGrid,
	SectorNuclear,
	SectorShipbuilding,
	SectorDefense,
	SectorBio,
}

var sectorLabels = map[SectorCode]string{
	SectorSemiconductor: "반도체",
	SectorBio:           "바이오",
	SectorDefense:       "방산",
	SectorAI:            "AI",
	SectorNuclear:       "원자력",
	SectorPowerGrid:     "전력망",
	SectorShipbuilding:  "조선",
}

var industryTrends = map[SectorCode]string{
	SectorAI:            "생성형 AI 확산으로 반도체·클라우드 수요 급증. 기업 간 AI 플랫폼 경쟁 심화로 시장 고성장세 유지.",
	SectorSemiconductor: "AI 반도체 수요 폭발로 고성능 메모리(HBM) 공급 부족 지속. 파운드리와 팹리스 동반 성장세.",
	SectorPowerGrid:     "전력망 현대화 및 전력 인프라 교체 수요 확대. 스마트그리드 및 배전 자동화 관련주 수혜 예상.",
	SectorNuclear:       "탄소중립 기조 속 원전 재평가. 중동·동유럽 프로젝트 수주 본격화로 장기 성장 모멘텀 확보.",
	SectorShipbuilding:  "친환경·LNG선 중심의 수주 호황 지속. 해운 운임 안정화와 글로벌 교체 수요로 업황 긍정적.",
	SectorDefense:       "지정학적 긴장 고조로 국방예산 확대. 유럽·중동 중심의 수출 증가세로 중장기 성장 기대.",
	SectorBio:           "글로벌 바이오시밀러 시장 확대 지속. 미국 FDA 승인 증가와 신약개발 투자 회복세 뚜렷.",
}

// Label returns the Korean display label, or the raw code when unknown.
func (c SectorCode) Label() string {
	if label, ok := sectorLabels[c]; ok {
		return label
	}
	return string(c)
}

// Known reports whether the code is one of the supported sectors.
func (c SectorCode) Known() bool {
	_, ok := sectorLabels[c]
	return ok
}

// IndustryTrend returns the one-line sector outlook used in prompts.
func (c SectorCode) IndustryTrend() string {
	if trend, ok := industryTrends[c]; ok {
		return trend
	}
	return "정보 없음"
}

// SectorCodeForLabel resolves a label such as "반도체". Raw codes are accepted too.
func SectorCodeForLabel(label string) (SectorCode, bool) {
	for code, l := range sectorLabels {
		if l == label || string(code) == label {
			return code, true
		}
	}
	return "", false
}

// AllSectors lists supported sector codes in display order.
func AllSectors() []SectorCode {
	out := make([]SectorCode, len(sectorOrder))
	copy(out, sectorOrder)
	return out
}
