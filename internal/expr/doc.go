// Package expr defines the storage-agnostic expression model.
//
// An Expression is either a single comparison (Predicate) or a binary
// and/or combination of expressions (Conjunction). OrderTerm describes one
// sort key. All three carry attribute paths that start relative to a
// domain and become qualified once the owning domain is known:
//
//	id = 6                         relative
//	features.blog.post.id = 6      qualified for feature "blog", basename "post"
//	global.user.id = 6             qualified for global basename "user"
//
// Qualification never rewrites a path that is already qualified. This
// matters for Conjunction: one branch may reference a foreign domain and
// must keep its namespace while the other branch is qualified locally.
//
// Values are immutable. Qualification and negation return new values.
package expr
