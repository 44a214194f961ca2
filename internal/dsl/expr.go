package dsl

import (
	"fmt"
	"strings"
	"time"
)

// ExprKind identifies what a value expression reads.
type ExprKind int

// Expression kinds.
const (
	ExprLiteral ExprKind = iota
	ExprTargetID
	ExprParam
	ExprRef
	ExprPrincipal
	ExprNow
	ExprToday
	ExprUUID
	ExprSeq
)

// Expr is a parsed value expression. Strings beginning with '$' are
// references; everything else is a literal.
//
//	$target_id            the invocation's target id
//	$param.NAME           a parameter value
//	$ref.ALIAS.FIELD      a field of a resolved ref ("id" is its primary key)
//	$principal.id|name|role
//	$now, $now+48h        execution time (RFC3339), optionally offset
//	$today                execution date (YYYY-MM-DD)
//	$uuid                 a fresh uuid
//	$seq:PREFIX           PREFIX followed by a fresh unique suffix
type Expr struct {
	Kind    ExprKind
	Literal any
	Name    string // param name, ref alias, principal attribute or seq prefix
	Field   string // ref field
	Offset  time.Duration
}

// ParseExpr parses a YAML value into an expression.
func ParseExpr(v any) (Expr, error) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, "$") {
		return Expr{Kind: ExprLiteral, Literal: Normalize(v)}, nil
	}

	switch {
	case s == "$target_id":
		return Expr{Kind: ExprTargetID}, nil
	case s == "$today":
		return Expr{Kind: ExprToday}, nil
	case s == "$uuid":
		return Expr{Kind: ExprUUID}, nil
	case s == "$now":
		return Expr{Kind: ExprNow}, nil
	case strings.HasPrefix(s, "$now+"):
		d, err := time.ParseDuration(strings.TrimPrefix(s, "$now+"))
		if err != nil {
			return Expr{}, fmt.Errorf("invalid offset in %q: %w", s, err)
		}
		return Expr{Kind: ExprNow, Offset: d}, nil
	case strings.HasPrefix(s, "$seq:"):
		return Expr{Kind: ExprSeq, Name: strings.TrimPrefix(s, "$seq:")}, nil
	case strings.HasPrefix(s, "$param."):
		name := strings.TrimPrefix(s, "$param.")
		if name == "" {
			return Expr{}, fmt.Errorf("empty parameter name in %q", s)
		}
		return Expr{Kind: ExprParam, Name: name}, nil
	case strings.HasPrefix(s, "$principal."):
		attr := strings.TrimPrefix(s, "$principal.")
		switch attr {
		case "id", "name", "role":
			return Expr{Kind: ExprPrincipal, Name: attr}, nil
		}
		return Expr{}, fmt.Errorf("unknown principal attribute in %q", s)
	case strings.HasPrefix(s, "$ref."):
		alias, field, ok := strings.Cut(strings.TrimPrefix(s, "$ref."), ".")
		if !ok || alias == "" || field == "" {
			return Expr{}, fmt.Errorf("ref expression %q must be $ref.ALIAS.FIELD", s)
		}
		return Expr{Kind: ExprRef, Name: alias, Field: field}, nil
	}
	return Expr{}, fmt.Errorf("unknown expression %q", s)
}

func (e Expr) String() string {
	switch e.Kind {
	case ExprTargetID:
		return "$target_id"
	case ExprParam:
		return "$param." + e.Name
	case ExprRef:
		return "$ref." + e.Name + "." + e.Field
	case ExprPrincipal:
		return "$principal." + e.Name
	case ExprNow:
		if e.Offset != 0 {
			return "$now+" + e.Offset.String()
		}
		return "$now"
	case ExprToday:
		return "$today"
	case ExprUUID:
		return "$uuid"
	case ExprSeq:
		return "$seq:" + e.Name
	}
	return fmt.Sprint(e.Literal)
}
