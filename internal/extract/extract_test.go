package extract

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

const samplePayload = `{
  "ai_summary": "반도체 중심의 균형 포트폴리오",
  "portfolio_allocation": [
    {"ticker": "005930.KS", "name": "삼성전자", "weight": 0.6, "amount": 3000000},
    {"ticker": "000660.KS", "name": "SK하이닉스", "weight": 0.4, "amount": 2000000}
  ],
  "performance_metrics": {"expected_return": 12.5, "max_drawdown": -18.2, "sharpe_ratio": 0.9, "benchmark_alpha": 4.5}
}`

func mustDecode(t *testing.T, s string) Payload {
	t.Helper()
	var p Payload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return p
}

func TestExtractRecoversFencedPayload(t *testing.T) {
	want := mustDecode(t, samplePayload)

	tests := map[string]string{
		"json fence":        "분석 결과입니다.\n```json\n" + samplePayload + "\n```\n감사합니다.",
		"uppercase tag":     "```JSON\n" + samplePayload + "\n```",
		"bare fence":        "결과:\n```\n" + samplePayload + "\n```",
		"no fence":          samplePayload,
		"other block first": "```python\nprint('x')\n```\n```json\n" + samplePayload + "\n```",
		"prose around":      "최종 답변은 다음과 같습니다 " + samplePayload + " 이상입니다.",
	}

	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Extract(text)
			if err != nil {
				t.Fatalf("Extract returned error: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("payload mismatch:\n got %v\nwant %v", got, want)
			}
		})
	}
}

func TestExtractRepairsMalformedJSON(t *testing.T) {
	tests := map[string]string{
		"single quotes":    "```json\n{'ai_summary': '요약', 'portfolio_allocation': []}\n```",
		"curly quotes":     "```json\n{“ai_summary”: “요약”, “portfolio_allocation”: []}\n```",
		"trailing commas":  "```json\n{\"ai_summary\": \"요약\", \"portfolio_allocation\": [],}\n```",
		"both":             "{'ai_summary': '요약', 'portfolio_allocation': [1, 2,],}",
		"unfenced trailer": "{\"ai_summary\": \"요약\",\n \"portfolio_allocation\": [\n],\n}",
	}

	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Extract(text)
			if err != nil {
				t.Fatalf("Extract returned error: %v", err)
			}
			if got["ai_summary"] != "요약" {
				t.Errorf("unexpected ai_summary %v", got["ai_summary"])
			}
		})
	}
}

func TestRepairsAreNoOpOnValidJSON(t *testing.T) {
	inputs := []string{
		samplePayload,
		`{"text": "it's a \"quoted\" ‘word’ and “phrase”, ok", "list": [1, 2, {"a": ",}"}]}`,
		`{"nested": {"empty": {}, "arr": [[], [","]]}}`,
	}

	for _, in := range inputs {
		want := mustDecode(t, in)
		for _, r := range Repairs {
			var got Payload
			if err := json.Unmarshal([]byte(r.Apply(in)), &got); err != nil {
				t.Fatalf("%s broke valid json: %v", r.Name, err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("%s changed the parse result of %s", r.Name, in)
			}
		}
	}
}

func TestNormalizeQuotesEscapesInnerDoubleQuotes(t *testing.T) {
	got := NormalizeQuotes(`{'say': 'he said "hi"'}`)
	var p Payload
	if err := json.Unmarshal([]byte(got), &p); err != nil {
		t.Fatalf("normalized text does not parse: %v (%s)", err, got)
	}
	if p["say"] != `he said "hi"` {
		t.Errorf("unexpected value %q", p["say"])
	}
}

func TestStripTrailingCommas(t *testing.T) {
	got := StripTrailingCommas("{\"a\": [1, 2 ,\n ], \"b\": \"x,}\",\n}")
	want := "{\"a\": [1, 2 \n ], \"b\": \"x,}\"\n}"
	if got != want {
		t.Errorf("StripTrailingCommas = %q, want %q", got, want)
	}
}

func TestExtractFailures(t *testing.T) {
	tests := map[string]string{
		"empty":        "   ",
		"no json":      "포트폴리오를 생성할 수 없습니다.",
		"array":        "```json\n[1, 2, 3]\n```",
		"broken fence": "```json\n{\"ai_summary\": \n```",
	}

	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Extract(text)
			var extractErr *ExtractionError
			if !errors.As(err, &extractErr) {
				t.Fatalf("expected ExtractionError, got %v", err)
			}
			if extractErr.Text != text {
				t.Errorf("expected original text to be preserved")
			}
		})
	}
}

func TestFencedBlock(t *testing.T) {
	body, ok := FencedBlock("앞\n```json\n{\"a\": 1}\n```\n뒤")
	if !ok || body != `{"a": 1}` {
		t.Fatalf("FencedBlock = %q, %v", body, ok)
	}
	if _, ok := FencedBlock("```\nnot json\n```"); ok {
		t.Error("bare fence without an object should not match")
	}
	if _, ok := FencedBlock("```json\n{\"a\": 1}"); ok {
		t.Error("unterminated fence should not match")
	}
}

func TestExtractFenceInsideStringValue(t *testing.T) {
	tests := map[string]string{
		"fence in value":         "Template {x} below.\n```json\n{\"ai_summary\": \"use ``` fences\"}\n```",
		"fence and brace prose":  "예시 {a: 1} 참고\n```json\n{\"ai_summary\": \"```json\\n{}\\n```\"}\n```\n끝 }",
		"bare fence with object": "설명 {\n```\n{\"ai_summary\": \"a ``` b\"}\n```",
	}

	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := Extract(text)
			if err != nil {
				t.Fatalf("Extract returned error: %v", err)
			}
			summary, _ := p["ai_summary"].(string)
			if !strings.Contains(summary, "```") {
				t.Errorf("expected summary to keep its fence, got %q", summary)
			}
		})
	}
}

func TestBalancedObjectIgnoresBracesInStrings(t *testing.T) {
	obj, ok := balancedObject(`prefix {"a": "}{", "b": {"c": 1}} suffix }`)
	if !ok || !strings.HasSuffix(obj, `{"c": 1}}`) {
		t.Fatalf("balancedObject = %q, %v", obj, ok)
	}
}
