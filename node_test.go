package livediff

import (
	"strings"
	"testing"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b *Node
		want bool
	}{
		{
			name: "identical elements",
			a:    Element("div", Attr{Name: "class", Value: "x"}).Append(Text("hi")),
			b:    Element("div", Attr{Name: "class", Value: "x"}).Append(Text("hi")),
			want: true,
		},
		{
			name: "different tag",
			a:    Element("div"),
			b:    Element("span"),
			want: false,
		},
		{
			name: "different attribute value",
			a:    Element("div", Attr{Name: "class", Value: "x"}),
			b:    Element("div", Attr{Name: "class", Value: "y"}),
			want: false,
		},
		{
			name: "attribute order matters",
			a:    Element("div", Attr{Name: "a", Value: "1"}, Attr{Name: "b", Value: "2"}),
			b:    Element("div", Attr{Name: "b", Value: "2"}, Attr{Name: "a", Value: "1"}),
			want: false,
		},
		{
			name: "deep text difference",
			a:    Element("div").Append(Element("p").Append(Text("one"))),
			b:    Element("div").Append(Element("p").Append(Text("two"))),
			want: false,
		},
		{
			name: "text vs comment",
			a:    Text("x"),
			b:    Comment("x"),
			want: false,
		},
		{
			name: "both nil",
			a:    nil,
			b:    nil,
			want: true,
		},
		{
			name: "one nil",
			a:    Element("div"),
			b:    nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChildAt(t *testing.T) {
	root := Element("div").Append(
		Element("span").Append(Text("a")),
		Element("span").Append(Text("b")),
	)

	node, err := root.ChildAt(NodePath{1, 0})
	if err != nil {
		t.Fatalf("ChildAt failed: %v", err)
	}
	if node.Kind != KindText || node.Data != "b" {
		t.Errorf("got %v %q, want text \"b\"", node.Kind, node.Data)
	}

	if _, err := root.ChildAt(NodePath{5}); err == nil {
		t.Error("expected error for out-of-range path")
	}

	self, err := root.ChildAt(NodePath{})
	if err != nil || self != root {
		t.Error("empty path should resolve to the node itself")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := Element("div", Attr{Name: "class", Value: "x"}).Append(
		Element("p").Append(Text("hello")),
	)
	clone := orig.Clone()
	if !Equal(orig, clone) {
		t.Fatal("clone is not structurally equal to the original")
	}

	clone.SetAttr("class", "changed")
	clone.Children[0].Children[0].Data = "changed"

	if v, _ := orig.Attr("class"); v != "x" {
		t.Error("mutating the clone changed the original's attributes")
	}
	if orig.Children[0].Children[0].Data != "hello" {
		t.Error("mutating the clone changed the original's text")
	}
}

func TestHTMLRoundTrip(t *testing.T) {
	orig := Element("ul", Attr{Name: "class", Value: "items"}).Append(
		Element("li", Attr{Name: "data-key", Value: "a"}).Append(Text("first")),
		Element("li", Attr{Name: "data-key", Value: "b"}).Append(Text("second & <third>")),
	)

	markup, err := orig.HTML()
	if err != nil {
		t.Fatalf("HTML failed: %v", err)
	}
	if !strings.Contains(markup, `data-key="a"`) {
		t.Errorf("serialized markup missing key attribute: %s", markup)
	}

	back, err := ParseWith(markup, ParseOptions{KeepWhitespace: true})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !Equal(orig, back) {
		t.Errorf("round trip not equal:\norig: %+v\nback: %+v", orig, back)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		node    *Node
		wantErr bool
	}{
		{"valid tree", Element("div").Append(Text("x"), Comment("c")), false},
		{"text with children", &Node{Kind: KindText, Data: "x", Children: []*Node{Text("y")}}, true},
		{"comment with attrs", &Node{Kind: KindComment, Data: "c", Attrs: []Attr{{Name: "a", Value: "1"}}}, true},
		{"element without tag", &Node{Kind: KindElement}, true},
		{"nested malformed", Element("div").Append(&Node{Kind: KindText, Children: []*Node{Text("y")}}), true},
		{"adjacent text siblings", Element("div").Append(Text("a"), Text("b")), true},
		{"text siblings separated by an element", Element("div").Append(Text("a"), Element("br"), Text("b")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.node.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeMergesTextRuns(t *testing.T) {
	tree := Element("div").Append(
		Text("a"), Text("b"),
		Element("span").Append(Text("x"), Text("y"), Text("z")),
		Text("c"),
	)
	if err := tree.Validate(); err == nil {
		t.Fatal("expected adjacent text runs to fail validation")
	}

	tree.Normalize()
	if err := tree.Validate(); err != nil {
		t.Fatalf("normalized tree invalid: %v", err)
	}
	want := Element("div").Append(
		Text("ab"),
		Element("span").Append(Text("xyz")),
		Text("c"),
	)
	if !Equal(tree, want) {
		t.Errorf("normalized tree = %+v, want %+v", tree, want)
	}

	// Serialization and normalization now agree on child counts.
	markup, err := tree.HTML()
	if err != nil {
		t.Fatalf("HTML failed: %v", err)
	}
	back, err := ParseWith(markup, ParseOptions{KeepWhitespace: true})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(back.Children) != len(tree.Children) {
		t.Errorf("round trip child count = %d, want %d", len(back.Children), len(tree.Children))
	}
}

func TestNodePathString(t *testing.T) {
	if got := (NodePath{0, 2, 1}).String(); got != "0/2/1" {
		t.Errorf("String() = %q, want \"0/2/1\"", got)
	}
	if got := (NodePath{}).String(); got != "" {
		t.Errorf("String() = %q, want empty", got)
	}
}
