package parser

// IsNumber reports whether s is a FSH number literal.
func IsNumber(s string) bool { return numberPattern.MatchString(s) }

// IsDateTime reports whether s is a FSH date or dateTime literal. Bare
// years lex as numbers first.
func IsDateTime(s string) bool { return dateTimePattern.MatchString(s) }

// IsTime reports whether s is a FSH time literal.
func IsTime(s string) bool { return timePattern.MatchString(s) }

// parseValue classifies the value tokens of an assignment or caret rule.
func (rp *ruleParser) parseValue(toks []Token) (*ValueNode, *ruleError) {
	if len(toks) == 0 {
		return nil, rp.errf("Expected a value after '='.")
	}
	span := spanOf(toks)

	for i, t := range toks {
		if t.Kind == TokColon {
			num, rerr := rp.parseQuantity(toks[:i], true)
			if rerr != nil {
				return nil, rerr
			}
			den, rerr := rp.parseQuantity(toks[i+1:], true)
			if rerr != nil {
				return nil, rerr
			}
			return &ValueNode{Kind: ValRatio, Ratio: [2]*QuantityNode{num, den}, Span: span}, nil
		}
	}

	first := toks[0]
	if len(toks) == 1 {
		v := &ValueNode{Token: first, Span: span}
		switch first.Kind {
		case TokString:
			v.Kind = ValString
		case TokMultilineString:
			v.Kind = ValMultilineString
		case TokCode:
			v.Kind = ValCode
		case TokReference:
			v.Kind = ValReference
		case TokCanonical:
			v.Kind = ValCanonical
		case TokRegex:
			v.Kind = ValRegex
		case TokUnit:
			v.Kind = ValQuantity
			v.Quantity = &QuantityNode{Unit: &first}
		case TokWord:
			switch {
			case first.Text == "true" || first.Text == "false":
				v.Kind = ValBool
			case IsNumber(first.Text):
				v.Kind = ValNumber
			case IsDateTime(first.Text):
				v.Kind = ValDateTime
			case IsTime(first.Text):
				v.Kind = ValTime
			default:
				v.Kind = ValName
			}
		default:
			return nil, rp.errAt(first, "Unexpected "+first.Kind.String()+" '"+first.Text+"' where a value was expected.")
		}
		return v, nil
	}

	if len(toks) == 2 && toks[1].Kind == TokString {
		switch first.Kind {
		case TokCode:
			display := toks[1]
			return &ValueNode{Kind: ValCode, Token: first, Display: &display, Span: span}, nil
		case TokReference:
			display := toks[1]
			return &ValueNode{Kind: ValReference, Token: first, Display: &display, Span: span}, nil
		}
	}

	q, rerr := rp.parseQuantity(toks, false)
	if rerr != nil {
		return nil, rerr
	}
	return &ValueNode{Kind: ValQuantity, Quantity: q, Span: span}, nil
}

// parseQuantity reads "number", "number 'unit'", "number system#code" or
// "'unit'", each optionally followed by a display string. Ratio parts
// take no display.
func (rp *ruleParser) parseQuantity(toks []Token, ratioPart bool) (*QuantityNode, *ruleError) {
	q := &QuantityNode{}
	i := 0
	if i < len(toks) && toks[i].Kind == TokWord && IsNumber(toks[i].Text) {
		num := toks[i]
		q.Number = &num
		i++
	}
	if i < len(toks) && (toks[i].Kind == TokUnit || toks[i].Kind == TokCode) {
		unit := toks[i]
		q.Unit = &unit
		i++
	}
	if !ratioPart && q.Unit != nil && i < len(toks) && toks[i].Kind == TokString {
		display := toks[i]
		q.Display = &display
		i++
	}
	if i != len(toks) || (q.Number == nil && q.Unit == nil) || (ratioPart && q.Number == nil) {
		if len(toks) == 0 {
			return nil, rp.errf("Expected a value.")
		}
		return nil, rp.errAt(toks[min(i, len(toks)-1)], "Unable to parse value '"+tokensText(toks)+"'.")
	}
	return q, nil
}

func tokensText(toks []Token) string {
	var s string
	for i, t := range toks {
		if i > 0 {
			s += " "
		}
		s += t.Text
	}
	return s
}
