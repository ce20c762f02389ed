package repair

import "testing"

func TestApply_Rules(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"script stripped", "a<SCRIPT type=\"x\">var x;\n</script >b", "ab"},
		{"script lazy", "<script>1</script>keep<script>2</script>", "keep"},
		{"double quotes", `<a href="x"">t</a>`, `<a href="x">t</a>`},
		{"unclosed tag", `<div class="a"<p>hi</p></div>`, `<div class="a"><p>hi</p></div>`},
		{"unclosed number before attr", `<td width="100 class="x">`, `<td width="100" class="x">`},
		{"unclosed number before close", `<img height="20>`, `<img height="20">`},
		{"unclosed number self-close", `<img height="20/>`, `<img height="20"/>`},
		{"clean markup untouched", `<p class="a">x</p><b>y</b>`, `<p class="a">x</p><b>y</b>`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Apply(c.in); got != c.want {
				t.Fatalf("Apply(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestApply_Idempotent(t *testing.T) {
	inputs := []string{
		`<div class="a"<p>hi</p></div>`,
		`<td width="100 class="x">`,
		`<a href="x""">t</a><script>x</script>`,
	}
	for _, in := range inputs {
		once := Apply(in)
		if twice := Apply(once); twice != once {
			t.Fatalf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestRules_Order(t *testing.T) {
	want := []string{
		"javascript",
		"double double-quoted attributes",
		"unclosed tags",
		"unclosed (numerical) attribute values",
	}
	got := Rules()
	if len(got) != len(want) {
		t.Fatalf("expected %d rules, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Desc != want[i] {
			t.Fatalf("rule %d: got %q want %q", i, got[i].Desc, want[i])
		}
	}
}
