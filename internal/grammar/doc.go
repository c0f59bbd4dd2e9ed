// Package grammar parses query text into an untyped parse tree.
//
// Two grammars share one lexer. The expression grammar covers a filter:
//
//	expr       = and_expr [ "or" expr ]
//	and_expr   = primary [ "and" and_expr ]
//	primary    = "(" expr ")" | comparison
//	comparison = path op literal
//	           | path ["not"] "in" "(" literal { "," literal } ")"
//	           | path ["not"] "like" string
//	           | path ["not"] "between" literal "and" literal
//	path       = segment { "." segment }        segment = [a-z_][a-z0-9_]*
//	op         = "=" | "!=" | ">" | ">=" | "<" | "<="
//	literal    = int | float | bool | string | date | datetime
//
// The search grammar wraps it with a domain, ordering and a limit:
//
//	search = segment "." segment [ "filter" expr ]
//	         [ "order" term { "," term } ] [ "limit" int ]
//	term   = path [ "asc" | "desc" ]
//
// Keywords are case-insensitive and only reserved where the grammar
// expects them, so an attribute may be called "order" or "limit".
// Repeated and/or chains associate to the right.
package grammar
