package genai

import "testing"

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"prose around", "Sure! Here you go:\n{\"a\":1}\nEnjoy.", `{"a":1}`},
		{"code fence", "```json\n{\"move\":{\"from\":\"e2\",\"to\":\"e4\"}}\n```", `{"move":{"from":"e2","to":"e4"}}`},
		{"nested braces", `x {"a":{"b":{"c":3}}} y`, `{"a":{"b":{"c":3}}}`},
		{"brace inside string", `{"chat":"use { and } freely"}`, `{"chat":"use { and } freely"}`},
		{"escaped quote inside string", `{"chat":"he said \"}\" loudly"}`, `{"chat":"he said \"}\" loudly"}`},
		{"first of two objects", `{"a":1} {"b":2}`, `{"a":1}`},
		{"no object", "no json here", ""},
		{"never closes", `{"a": {"b": 1}`, ""},
		{"empty input", "", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ExtractJSONObject(c.in); got != c.want {
				t.Fatalf("got %q want %q", got, c.want)
			}
		})
	}
}
