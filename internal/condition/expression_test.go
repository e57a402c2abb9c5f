package condition

import (
	"testing"
)

func doc(kv ...any) Fields {
	payload := make(map[string]any)
	for i := 0; i < len(kv)-1; i += 2 {
		payload[kv[i].(string)] = kv[i+1]
	}
	return Fields{"type": "order_create", "payload": payload}
}

type evalCase struct {
	name    string
	expr    string
	doc     Fields
	want    bool
	wantErr bool
}

func TestEvaluate(t *testing.T) {
	cases := []evalCase{
		{
			name: "gte true",
			expr: "payload.total_amount >= 0",
			doc:  doc("total_amount", 245.0),
			want: true,
		},
		{
			name: "gte negative",
			expr: "payload.total_amount >= 0",
			doc:  doc("total_amount", -1.0),
			want: false,
		},
		{
			name: "negative literal",
			expr: "payload.stock_quantity != -1",
			doc:  doc("stock_quantity", -1.0),
			want: false,
		},
		{
			name: "lt true",
			expr: "payload.quantity < 100",
			doc:  doc("quantity", 5.0),
			want: true,
		},
		{
			name: "envelope field",
			expr: `type == "order_create"`,
			doc:  doc(),
			want: true,
		},
		{
			name: "neq string",
			expr: `payload.status != "cancelled"`,
			doc:  doc("status", "pending"),
			want: true,
		},
		{
			name: "bool eq",
			expr: "payload.is_active == true",
			doc:  doc("is_active", true),
			want: true,
		},
		{
			name: "bool eq false literal",
			expr: "payload.is_active == FALSE",
			doc:  doc("is_active", true),
			want: false,
		},
		{
			name: "AND both true",
			expr: `payload.status == "pending" AND payload.total_amount > 0`,
			doc:  doc("status", "pending", "total_amount", 10.0),
			want: true,
		},
		{
			name: "AND short circuits a type error",
			expr: `payload.status == "shipped" AND payload.status > 0`,
			doc:  doc("status", "pending"),
			want: false,
		},
		{
			name: "OR first true",
			expr: `payload.total_amount == null OR payload.total_amount >= 0`,
			doc:  doc("status", "shipped"),
			want: true,
		},
		{
			name: "OR both false",
			expr: `payload.status == "a" or payload.status == "b"`,
			doc:  doc("status", "c"),
			want: false,
		},
		{
			name: "parentheses",
			expr: `NOT (payload.email contains "INVALID_" OR payload.first_name contains "INVALID_")`,
			doc:  doc("email", "anne@example.com", "first_name", "INVALID_Anne"),
			want: false,
		},
		{
			name: "contains true",
			expr: `payload.email contains "@"`,
			doc:  doc("email", "anne@example.com"),
			want: true,
		},
		{
			name: "matches literal",
			expr: `payload.email matches "^[^@]+@example\\.com$"`,
			doc:  doc("email", "anne@example.com"),
			want: true,
		},
		{
			name: "matches field pattern",
			expr: `payload.sku matches payload.pattern`,
			doc:  doc("sku", "BOO-000123", "pattern", `^[A-Z]{3}-\d{6}$`),
			want: true,
		},
		{
			name: "missing field is null",
			expr: "payload.missing == null",
			doc:  doc(),
			want: true,
		},
		{
			name: "missing field fails ordering",
			expr: "payload.missing > 10",
			doc:  doc(),
			want: false,
		},
		{
			name: "nested object",
			expr: `payload.shipping.city == "Paris"`,
			doc:  doc("shipping", map[string]any{"city": "Paris"}),
			want: true,
		},
		{
			name:    "string ordering is an error",
			expr:    "payload.email > 10",
			doc:     doc("email", "anne@example.com"),
			wantErr: true,
		},
		{
			name:    "contains on a number is an error",
			expr:    `payload.total_amount contains "1"`,
			doc:     doc("total_amount", 1.0),
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ast, err := Parse(tc.expr)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tc.expr, err)
			}
			got, err := Evaluate(ast, tc.doc)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil (result=%v)", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Evaluate error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tc.expr, got, tc.want)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []string{
		`"unterminated`,
		`payload.total 1000`,
		``,
		`payload.a = 1`,
		`(payload.a == 1`,
		`payload.a matches "("`,
		`payload.a matches 3`,
		`AND == 1`,
		`payload.a == 1 payload.b`,
	}
	for _, expr := range cases {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr)
			if err == nil {
				t.Errorf("expected parse error for %q, got nil", expr)
			}
		})
	}
}
